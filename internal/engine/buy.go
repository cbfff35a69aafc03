package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/nftmart/gomart/internal/domain"
	"github.com/nftmart/gomart/internal/events"
)

// BuyRequest 直售购买请求
type BuyRequest struct {
	Buyer     common.Address
	ListingID uint64
	Quantity  uint64
}

// Buy 直售购买
// 直售不做过期拦截（窗口过期的直售挂单仍可成交，直到数量耗尽或被编辑）。
// 付款（手续费、版税、创建者所得）全部成功后资产才从创建者转给买家；
// 任一支付腿失败则回滚数量扣减，整个购买不生效。
func (e *Engine) Buy(ctx context.Context, req BuyRequest) (*domain.Listing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.store.GetListing(req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Ended {
		return nil, wrapStatef("listing %d already ended", req.ListingID)
	}
	if listing.IsAuction {
		return nil, wrapStatef("listing %d is an auction, use bid", req.ListingID)
	}
	if req.Quantity == 0 {
		return nil, wrapValidationf("quantity must be non-zero")
	}
	if req.Quantity > listing.QuantityRemaining {
		return nil, wrapValidationf("quantity %d exceeds remaining %d", req.Quantity, listing.QuantityRemaining)
	}

	// 直售资产留在创建者手里，成交前重新校验持有与授权
	if err := e.validateAssetSide(ctx, listing.Asset, listing.Creator, req.Quantity); err != nil {
		return nil, err
	}

	total := listing.TotalPrice(req.Quantity)
	pay := e.computePayout(ctx, listing.Asset, total)
	if err := e.validateFunds(ctx, listing.Currency, req.Buyer, total); err != nil {
		return nil, err
	}

	// 先提交状态：数量扣减、可能的结束标记
	prev := listing.Clone()
	listing.QuantityRemaining -= req.Quantity
	if listing.QuantityRemaining == 0 {
		listing.Ended = true
	}
	if err := e.store.UpdateListing(listing); err != nil {
		return nil, err
	}

	// 支付腿：买家 -> 平台 / 版税收款人 / 创建者
	if err := e.payFromBuyer(ctx, listing.Currency, req.Buyer, listing.Creator, pay); err != nil {
		// 回滚数量扣减
		if rerr := e.store.UpdateListing(prev); rerr != nil {
			e.log.Errorf("支付失败后回滚挂单状态失败: %v (原错误: %v)", rerr, err)
		}
		return nil, err
	}

	// 付款成功后资产才易手
	if err := e.custody.Transfer(ctx, listing.Asset.Registry, listing.Creator, req.Buyer, listing.Asset.TokenID, req.Quantity); err != nil {
		// 前置校验保证了持有与授权，走到这里说明注册表适配器违约
		e.log.Errorf("购买的资产转移失败（支付已完成）: %v", err)
		return nil, errors.Wrap(err, "asset transfer")
	}

	now := e.now()
	e.log.WithFields(map[string]interface{}{
		"listing_id": listing.ID,
		"buyer":      req.Buyer.Hex(),
		"quantity":   req.Quantity,
		"total":      total.String(),
	}).Info("直售成交")

	e.emit(events.New(events.TypePurchased, listing.ID, req.Buyer, now).
		WithAmounts(listing.Currency, req.Quantity, listing.UnitPrice, total, e.cfg.DisplayDecimals).
		WithPayout(pay.fee, pay.royalty, pay.remainder))
	return listing.Clone(), nil
}

// payFromBuyer 执行三条拉取支付腿；任何一条失败都返回错误由调用方回滚
func (e *Engine) payFromBuyer(ctx context.Context, currency common.Address, buyer, creator common.Address, pay payout) error {
	if pay.fee.Sign() > 0 {
		if err := e.ledger.Pull(ctx, currency, buyer, e.cfg.PlatformOwner, pay.fee); err != nil {
			return errors.Wrap(err, "fee leg")
		}
	}
	if pay.royalty.Sign() > 0 {
		if err := e.ledger.Pull(ctx, currency, buyer, pay.royaltyRecipient, pay.royalty); err != nil {
			return errors.Wrap(err, "royalty leg")
		}
	}
	if pay.remainder.Sign() > 0 {
		if err := e.ledger.Pull(ctx, currency, buyer, creator, pay.remainder); err != nil {
			return errors.Wrap(err, "proceeds leg")
		}
	}
	return nil
}
