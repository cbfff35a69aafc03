package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/nftmart/gomart/internal/domain"
	"github.com/nftmart/gomart/internal/events"
)

// BidRequest 拍卖出价请求
type BidRequest struct {
	Bidder    common.Address
	ListingID uint64
	UnitPrice *big.Int
	Quantity  uint64
}

// Bid 拍卖出价
// 接受规则（按总押金比较）：
//   - 没有历史出价时：candidateStake ≥ 底价 × 数量
//   - 已有领先者时：candidateStake 必须以至少 bidBufferBps/maxBps 的
//     比例超过 leaderStake，拦截蚕食式的微小加价
//
// 同一出价人替换自己的押金时旧押金抵扣新押金，只收净增量，不会双重占用。
// 反狙击：剩余时间不超过时间缓冲时，windowEnd 顺延一个缓冲。
func (e *Engine) Bid(ctx context.Context, req BidRequest) (*domain.Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.store.GetListing(req.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsAuction {
		return nil, wrapStatef("listing %d is not an auction", req.ListingID)
	}
	if listing.Ended {
		return nil, wrapStatef("listing %d already ended", req.ListingID)
	}
	now := e.now()
	if !now.Before(listing.WindowEnd) {
		return nil, wrapStatef("auction %d window closed at %s", req.ListingID, listing.WindowEnd.Format(time.RFC3339))
	}
	if req.UnitPrice == nil || req.UnitPrice.Sign() <= 0 {
		return nil, wrapValidationf("bid price must be non-zero")
	}
	quantity := req.Quantity
	if listing.Asset.Kind == domain.KindUnique {
		quantity = 1
	}
	if quantity == 0 {
		return nil, wrapValidationf("quantity must be non-zero")
	}
	if quantity > listing.QuantityRemaining {
		return nil, wrapValidationf("quantity %d exceeds listed %d", quantity, listing.QuantityRemaining)
	}

	bid := domain.Bid{
		Bidder:    req.Bidder,
		UnitPrice: new(big.Int).Set(req.UnitPrice),
		Quantity:  quantity,
		PlacedAt:  now,
	}

	if leader, ok := e.store.Leader(req.ListingID); ok {
		leaderStake := leader.Stake()
		if !bid.BeatsByBuffer(leaderStake, e.cfg.BidBufferBps, e.cfg.MaxBps) {
			return nil, wrapBidf("stake %s must beat leader %s by at least %d/%d",
				bid.Stake(), leaderStake, e.cfg.BidBufferBps, e.cfg.MaxBps)
		}
	} else if !bid.MeetsReserve(listing.UnitPrice) {
		return nil, wrapBidf("stake %s below reserve %s", bid.Stake(), listing.TotalPrice(quantity))
	}

	// 同一出价人最多一份在押押金：旧押金留在托管中抵扣新押金，
	// 余额和授权额度都只需覆盖净增量（货币已被在押押金钉死，见 EditListing）
	prior := e.store.Stake(req.ListingID, req.Bidder)
	delta := new(big.Int).Sub(bid.Stake(), prior)
	if delta.Sign() <= 0 {
		// 接受规则保证新押金严格高于任何在押押金
		return nil, wrapBidf("stake %s does not exceed escrowed %s", bid.Stake(), prior)
	}
	if err := e.validateFunds(ctx, listing.Currency, req.Bidder, delta); err != nil {
		return nil, err
	}

	// 收取净增量进入引擎托管；押金索引由 CommitBid 覆写为新总额，
	// 收款失败时索引仍指向在押的旧押金，不会悬空
	if err := e.ledger.Pull(ctx, listing.Currency, req.Bidder, e.cfg.EngineAccount, delta); err != nil {
		return nil, errors.Wrap(err, "escrow stake")
	}

	// 反狙击：临近截止的出价把窗口顺延一个缓冲
	if remaining := listing.WindowEnd.Sub(now); remaining <= e.cfg.TimeBuffer {
		listing.WindowEnd = listing.WindowEnd.Add(e.cfg.TimeBuffer)
	}

	if err := e.store.CommitBid(listing, bid); err != nil {
		return nil, err
	}

	e.log.WithFields(map[string]interface{}{
		"listing_id": listing.ID,
		"bidder":     req.Bidder.Hex(),
		"stake":      bid.Stake().String(),
		"window_end": listing.WindowEnd.Format(time.RFC3339),
	}).Info("出价已接受")

	e.emit(events.New(events.TypeBidPlaced, listing.ID, req.Bidder, now).
		WithAmounts(listing.Currency, quantity, bid.UnitPrice, bid.Stake(), e.cfg.DisplayDecimals))
	out := bid.Clone()
	return &out, nil
}

// CloseAuction 结算拍卖
// 过期后任何账户都可以调用（结算是机械动作，不限定创建者），且只会成功一次。
// 没有任何出价时把托管资产退回创建者并发出取消事件；否则以领先者押金为
// 成交价：先提交本地状态（结束标记 + 领先者押金清零，防止结算后再作为
// 败者提款），再从引擎托管余额支付手续费/版税/创建者所得，最后把资产从
// 引擎托管转给领先者，剩余数量退回创建者。
func (e *Engine) CloseAuction(ctx context.Context, listingID uint64, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.store.GetListing(listingID)
	if err != nil {
		return err
	}
	if !listing.IsAuction {
		return wrapStatef("listing %d is not an auction", listingID)
	}
	if listing.Ended {
		return wrapStatef("auction %d already closed", listingID)
	}
	now := e.now()
	if !now.After(listing.WindowEnd) {
		return wrapStatef("auction %d still open until %s", listingID, listing.WindowEnd.Format(time.RFC3339))
	}

	leader, hasBids := e.store.Leader(listingID)
	listing.Ended = true

	if !hasBids {
		// 无人出价：状态先提交，再归还托管资产，不动任何资金
		if err := e.store.UpdateListing(listing); err != nil {
			return err
		}
		if err := e.custody.Transfer(ctx, listing.Asset.Registry, e.cfg.EngineAccount, listing.Creator, listing.Asset.TokenID, listing.QuantityRemaining); err != nil {
			e.log.Errorf("流拍归还资产失败: %v", err)
			return errors.Wrap(err, "return asset")
		}
		e.log.WithField("listing_id", listingID).Info("拍卖流拍，已取消")
		e.emit(events.New(events.TypeAuctionCanceled, listingID, caller, now))
		return nil
	}

	winStake := leader.Stake()
	pay := e.computePayout(ctx, listing.Asset, winStake)

	// 状态提交先于一切外部转移：结束标记 + 领先者押金清零
	if err := e.store.ZeroStake(listingID, leader.Bidder, listing); err != nil {
		return err
	}

	// 分账全部来自引擎自身的托管余额
	if pay.fee.Sign() > 0 {
		if err := e.ledger.Push(ctx, listing.Currency, e.cfg.PlatformOwner, pay.fee); err != nil {
			return errors.Wrap(err, "fee leg")
		}
	}
	if pay.royalty.Sign() > 0 {
		if err := e.ledger.Push(ctx, listing.Currency, pay.royaltyRecipient, pay.royalty); err != nil {
			return errors.Wrap(err, "royalty leg")
		}
	}
	if pay.remainder.Sign() > 0 {
		if err := e.ledger.Push(ctx, listing.Currency, listing.Creator, pay.remainder); err != nil {
			return errors.Wrap(err, "proceeds leg")
		}
	}

	// 资产从引擎托管交割给胜者；部分数量拍卖的剩余份额退回创建者
	if err := e.custody.Transfer(ctx, listing.Asset.Registry, e.cfg.EngineAccount, leader.Bidder, listing.Asset.TokenID, leader.Quantity); err != nil {
		e.log.Errorf("拍卖交割资产失败（分账已完成）: %v", err)
		return errors.Wrap(err, "deliver asset")
	}
	if listing.QuantityRemaining > leader.Quantity {
		surplus := listing.QuantityRemaining - leader.Quantity
		if err := e.custody.Transfer(ctx, listing.Asset.Registry, e.cfg.EngineAccount, listing.Creator, listing.Asset.TokenID, surplus); err != nil {
			e.log.Errorf("拍卖剩余份额退回失败: %v", err)
			return errors.Wrap(err, "return surplus")
		}
	}

	e.log.WithFields(map[string]interface{}{
		"listing_id": listingID,
		"winner":     leader.Bidder.Hex(),
		"stake":      winStake.String(),
	}).Info("拍卖已结算")

	e.emit(events.New(events.TypeAuctionClosed, listingID, leader.Bidder, now).
		WithAmounts(listing.Currency, leader.Quantity, leader.UnitPrice, winStake, e.cfg.DisplayDecimals).
		WithPayout(pay.fee, pay.royalty, pay.remainder))
	return nil
}

// Withdraw 败者提回押金
// 只在拍卖结束后有效；押金索引先清零再退款，重复调用会因为
// "押金为零" 前置校验失败而安全拒绝，不可能双重退款
func (e *Engine) Withdraw(ctx context.Context, listingID uint64, bidder common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.store.GetListing(listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsAuction {
		return nil, wrapStatef("listing %d is not an auction", listingID)
	}
	if !listing.Ended {
		return nil, wrapStatef("auction %d not closed yet", listingID)
	}

	stake := e.store.Stake(listingID, bidder)
	if stake.Sign() == 0 {
		return nil, wrapValidationf("no stake to withdraw for %s", bidder.Hex())
	}

	// 先清零索引，后退款
	if err := e.store.ZeroStake(listingID, bidder, nil); err != nil {
		return nil, err
	}
	if err := e.ledger.Push(ctx, listing.Currency, bidder, stake); err != nil {
		e.log.Errorf("押金退款失败（索引已清零）: %v", err)
		return nil, errors.Wrap(err, "refund stake")
	}

	now := e.now()
	e.log.WithFields(map[string]interface{}{
		"listing_id": listingID,
		"bidder":     bidder.Hex(),
		"stake":      stake.String(),
	}).Info("押金已退回")

	e.emit(events.New(events.TypeWithdrawn, listingID, bidder, now).
		WithAmounts(listing.Currency, 0, nil, stake, e.cfg.DisplayDecimals))
	return stake, nil
}
