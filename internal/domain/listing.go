package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind 资产类型（标签变体，不用继承）
type AssetKind int

const (
	// KindUnique 非同质化资产：一个 id 同一时刻只有一个持有人
	KindUnique AssetKind = iota
	// KindMultiUnit 同 id 可分份额资产：一个账户可以持有若干单位
	KindMultiUnit
)

// String 返回资产类型名称
func (k AssetKind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindMultiUnit:
		return "multi_unit"
	default:
		return "unknown"
	}
}

// AssetRef 资产引用：注册表地址 + token id + 类型
type AssetRef struct {
	Registry common.Address `json:"registry"`
	TokenID  *big.Int       `json:"token_id"`
	Kind     AssetKind      `json:"kind"`
}

// Listing 挂单记录，每个出售批次一条
// id 由创建时分配，永不复用；记录只会被标记结束，不会被删除
type Listing struct {
	ID                uint64         `json:"id"`
	Asset             AssetRef       `json:"asset"`
	Creator           common.Address `json:"creator"`
	Currency          common.Address `json:"currency"`   // 结算用支付币种
	UnitPrice         *big.Int       `json:"unit_price"` // 单价（直售）或每单位底价（拍卖）
	WindowStart       time.Time      `json:"window_start"`
	WindowEnd         time.Time      `json:"window_end"` // 拍卖可被反狙击规则延长
	QuantityRemaining uint64         `json:"quantity_remaining"`
	IsAuction         bool           `json:"is_auction"`
	Ended             bool           `json:"ended"`
}

// Active 判断挂单是否仍可交易
func (l *Listing) Active() bool {
	return l != nil && !l.Ended
}

// Expired 判断挂单窗口是否已过
func (l *Listing) Expired(now time.Time) bool {
	return l != nil && now.After(l.WindowEnd)
}

// TotalPrice 计算给定数量的总价（unitPrice × quantity）
func (l *Listing) TotalPrice(quantity uint64) *big.Int {
	return new(big.Int).Mul(l.UnitPrice, new(big.Int).SetUint64(quantity))
}

// Clone 返回挂单的深拷贝，查询接口返回拷贝避免外部修改内部状态
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	if l.UnitPrice != nil {
		out.UnitPrice = new(big.Int).Set(l.UnitPrice)
	}
	if l.Asset.TokenID != nil {
		out.Asset.TokenID = new(big.Int).Set(l.Asset.TokenID)
	}
	return &out
}
