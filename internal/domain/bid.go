package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bid 出价记录
// 每个挂单的出价历史只追加不修改；每个 (挂单, 出价人) 同一时刻
// 最多有一份在押的 stake，由 store 的 stake 索引单独维护
type Bid struct {
	Bidder    common.Address `json:"bidder"`
	UnitPrice *big.Int       `json:"unit_price"` // 每单位出价
	Quantity  uint64         `json:"quantity"`
	PlacedAt  time.Time      `json:"placed_at"`
}

// Stake 返回总押金（unitPrice × quantity）
func (b *Bid) Stake() *big.Int {
	if b == nil || b.UnitPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(b.UnitPrice, new(big.Int).SetUint64(b.Quantity))
}

// Clone 返回出价的深拷贝
func (b Bid) Clone() Bid {
	out := b
	if b.UnitPrice != nil {
		out.UnitPrice = new(big.Int).Set(b.UnitPrice)
	}
	return out
}

// MeetsReserve 判断首个出价是否达到底价（按总额比较）
// reserve 是挂单的单价底价，按拍卖数量折算成总额
func (b *Bid) MeetsReserve(reserveUnitPrice *big.Int) bool {
	reserve := new(big.Int).Mul(reserveUnitPrice, new(big.Int).SetUint64(b.Quantity))
	return b.Stake().Cmp(reserve) >= 0
}

// BeatsByBuffer 判断出价是否以至少 bufferBps/maxBps 的比例超过当前领先者
// 规则：(candidate − leader) × maxBps / leader ≥ bufferBps
// 整数运算向下取整，与链上 bps 语义一致
func (b *Bid) BeatsByBuffer(leaderStake *big.Int, bufferBps, maxBps uint64) bool {
	cand := b.Stake()
	if cand.Cmp(leaderStake) <= 0 {
		return false
	}
	diff := new(big.Int).Sub(cand, leaderStake)
	diff.Mul(diff, new(big.Int).SetUint64(maxBps))
	diff.Div(diff, leaderStake)
	return diff.Cmp(new(big.Int).SetUint64(bufferBps)) >= 0
}
