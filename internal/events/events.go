package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type 事件类型
type Type string

const (
	TypeListingCreated  Type = "listing_created"
	TypeListingEdited   Type = "listing_edited"
	TypePurchased       Type = "purchased"
	TypeBidPlaced       Type = "bid_placed"
	TypeAuctionClosed   Type = "auction_closed"
	TypeAuctionCanceled Type = "auction_canceled"
	TypeWithdrawn       Type = "withdrawn"
)

// Event 结算事件（供外部索引）
// 每个成功的引擎操作产生一条，带上挂单 id 和本次操作涉及的经济量
type Event struct {
	ID        string         `json:"id"` // uuid
	Type      Type           `json:"type"`
	ListingID uint64         `json:"listing_id"`
	Actor     common.Address `json:"actor"` // 触发操作的账户
	Currency  common.Address `json:"currency"`
	Quantity  uint64         `json:"quantity,omitempty"`
	UnitPrice *big.Int       `json:"unit_price,omitempty"`
	Total     *big.Int       `json:"total,omitempty"`   // 本次成交/押金总额
	Fee       *big.Int       `json:"fee,omitempty"`     // 平台手续费
	Royalty   *big.Int       `json:"royalty,omitempty"` // 版税
	Payout    *big.Int       `json:"payout,omitempty"`  // 创建者所得

	// DisplayTotal 按币种精度折算的可读金额（例如 USDC 6 位小数）
	DisplayTotal string    `json:"display_total,omitempty"`
	At           time.Time `json:"at"`
}

// New 创建事件骨架（分配 uuid 和时间戳）
func New(t Type, listingID uint64, actor common.Address, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		ListingID: listingID,
		Actor:     actor,
		At:        at,
	}
}

// WithAmounts 填充经济量并折算可读金额
func (e Event) WithAmounts(currency common.Address, quantity uint64, unitPrice, total *big.Int, displayDecimals int32) Event {
	e.Currency = currency
	e.Quantity = quantity
	e.UnitPrice = unitPrice
	e.Total = total
	if total != nil {
		e.DisplayTotal = decimal.NewFromBigInt(total, -displayDecimals).String()
	}
	return e
}

// WithPayout 填充分账明细
func (e Event) WithPayout(fee, royalty, payout *big.Int) Event {
	e.Fee = fee
	e.Royalty = royalty
	e.Payout = payout
	return e
}

// Sink 事件接收端（日志库、websocket 推送等）
type Sink interface {
	Publish(Event)
}

// Bus 将事件扇出到多个 Sink
// Publish 不阻塞引擎：各 Sink 自行保证快速返回或内部缓冲
type Bus struct {
	sinks []Sink
}

// NewBus 创建事件总线
func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: sinks}
}

// Attach 追加一个 Sink（启动期调用，不加锁）
func (b *Bus) Attach(sink Sink) {
	if sink != nil {
		b.sinks = append(b.sinks, sink)
	}
}

// Publish 扇出事件
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	for _, s := range b.sinks {
		s.Publish(e)
	}
}
