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

// CreateListingRequest 创建挂单请求
type CreateListingRequest struct {
	Creator   common.Address
	Registry  common.Address
	TokenID   *big.Int
	Currency  common.Address
	UnitPrice *big.Int      // 单价（直售）或每单位底价（拍卖）
	Duration  time.Duration // 窗口时长
	Quantity  uint64
	IsAuction bool
}

// EditListingRequest 编辑挂单请求（只有创建者可以调用）
type EditListingRequest struct {
	Caller    common.Address
	ListingID uint64
	UnitPrice *big.Int // 拍卖挂单忽略此值（价格钉死在原价）
	Duration  time.Duration
	Quantity  uint64
	Currency  common.Address
}

// CreateListing 创建挂单
// 拍卖挂单在创建时立即把资产转入引擎托管，结算时无需创建者二次授权；
// 直售挂单资产留在创建者手里，购买时再次校验
func (e *Engine) CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.UnitPrice == nil || req.UnitPrice.Sign() <= 0 {
		return nil, wrapValidationf("unit price must be non-zero")
	}
	if req.Duration <= 0 {
		return nil, wrapValidationf("duration must be non-zero")
	}
	if req.Quantity == 0 {
		return nil, wrapValidationf("quantity must be non-zero")
	}
	if req.Currency == (common.Address{}) {
		return nil, wrapValidationf("payment currency is required")
	}
	if req.TokenID == nil {
		return nil, wrapValidationf("token id is required")
	}

	kind, err := e.custody.KindOf(ctx, req.Registry)
	if err != nil {
		return nil, wrapValidation(err, "registry capability probe failed")
	}
	quantity := req.Quantity
	if kind == domain.KindUnique {
		quantity = 1
	}
	asset := domain.AssetRef{Registry: req.Registry, TokenID: new(big.Int).Set(req.TokenID), Kind: kind}

	if err := e.validateAssetSide(ctx, asset, req.Creator, quantity); err != nil {
		return nil, err
	}

	// 拍卖：立即接管资产托管
	if req.IsAuction {
		if err := e.custody.Transfer(ctx, req.Registry, req.Creator, e.cfg.EngineAccount, asset.TokenID, quantity); err != nil {
			return nil, errors.Wrap(err, "take custody")
		}
	}

	now := e.now()
	listing := &domain.Listing{
		Asset:             asset,
		Creator:           req.Creator,
		Currency:          req.Currency,
		UnitPrice:         new(big.Int).Set(req.UnitPrice),
		WindowStart:       now,
		WindowEnd:         now.Add(req.Duration),
		QuantityRemaining: quantity,
		IsAuction:         req.IsAuction,
	}
	id, err := e.store.AppendListing(listing)
	if err != nil {
		// 落盘失败时归还已接管的资产，保持无部分生效
		if req.IsAuction {
			if rerr := e.custody.Transfer(ctx, req.Registry, e.cfg.EngineAccount, req.Creator, asset.TokenID, quantity); rerr != nil {
				e.log.Errorf("挂单落盘失败后归还资产也失败: %v (原错误: %v)", rerr, err)
			}
		}
		return nil, err
	}

	e.log.WithFields(map[string]interface{}{
		"listing_id": id,
		"creator":    req.Creator.Hex(),
		"kind":       kind.String(),
		"auction":    req.IsAuction,
	}).Info("挂单已创建")

	e.emit(events.New(events.TypeListingCreated, id, req.Creator, now).
		WithAmounts(req.Currency, quantity, listing.UnitPrice, listing.TotalPrice(quantity), e.cfg.DisplayDecimals))
	return listing.Clone(), nil
}

// EditListing 编辑挂单
// 拍卖挂单先把已托管的资产退回创建者，按新数量重新校验并重新接管，
// 允许数量在两次编辑之间安全地增减；价格钉死在原价（可能已有人按原价出价）。
// 已有押金在押时数量不能缩到领先出价之下，货币也不可更换
func (e *Engine) EditListing(ctx context.Context, req EditListingRequest) (*domain.Listing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.store.GetListing(req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Creator != req.Caller {
		return nil, wrapAuthf("only the creator may edit listing %d", req.ListingID)
	}
	if listing.Ended {
		return nil, wrapStatef("listing %d already ended", req.ListingID)
	}
	if req.UnitPrice == nil || req.UnitPrice.Sign() <= 0 {
		return nil, wrapValidationf("unit price must be non-zero")
	}
	if req.Duration <= 0 {
		return nil, wrapValidationf("duration must be non-zero")
	}
	if req.Quantity == 0 {
		return nil, wrapValidationf("quantity must be non-zero")
	}
	if req.Currency == (common.Address{}) {
		return nil, wrapValidationf("payment currency is required")
	}

	quantity := req.Quantity
	if listing.Asset.Kind == domain.KindUnique {
		quantity = 1
	}

	unitPrice := new(big.Int).Set(req.UnitPrice)
	if listing.IsAuction {
		// 价格不可回改
		unitPrice = new(big.Int).Set(listing.UnitPrice)

		// 已有押金在押时编辑受限：数量不能低于领先出价的数量
		// （否则落槌时无货可交割），结算货币也被押金钉死
		if leader, ok := e.store.Leader(listing.ID); ok {
			if quantity < leader.Quantity {
				return nil, wrapStatef("quantity %d below leading bid quantity %d", quantity, leader.Quantity)
			}
			if req.Currency != listing.Currency {
				return nil, wrapStatef("currency is pinned while bids are escrowed on listing %d", listing.ID)
			}
		}

		// 退回原托管数量，重新校验后按新数量接管
		if err := e.custody.Transfer(ctx, listing.Asset.Registry, e.cfg.EngineAccount, listing.Creator, listing.Asset.TokenID, listing.QuantityRemaining); err != nil {
			return nil, errors.Wrap(err, "return custody")
		}
		if err := e.validateAssetSide(ctx, listing.Asset, listing.Creator, quantity); err != nil {
			// 校验失败：重新接管原数量，维持原状
			if rerr := e.custody.Transfer(ctx, listing.Asset.Registry, listing.Creator, e.cfg.EngineAccount, listing.Asset.TokenID, listing.QuantityRemaining); rerr != nil {
				e.log.Errorf("编辑校验失败后恢复托管失败: %v", rerr)
			}
			return nil, err
		}
		if err := e.custody.Transfer(ctx, listing.Asset.Registry, listing.Creator, e.cfg.EngineAccount, listing.Asset.TokenID, quantity); err != nil {
			return nil, errors.Wrap(err, "retake custody")
		}
	} else {
		if err := e.validateAssetSide(ctx, listing.Asset, listing.Creator, quantity); err != nil {
			return nil, err
		}
	}

	now := e.now()
	listing.UnitPrice = unitPrice
	listing.Currency = req.Currency
	listing.QuantityRemaining = quantity
	listing.WindowEnd = now.Add(req.Duration)
	if err := e.store.UpdateListing(listing); err != nil {
		return nil, err
	}

	e.log.WithFields(map[string]interface{}{
		"listing_id": listing.ID,
		"quantity":   quantity,
	}).Info("挂单已更新")

	e.emit(events.New(events.TypeListingEdited, listing.ID, req.Caller, now).
		WithAmounts(listing.Currency, quantity, listing.UnitPrice, listing.TotalPrice(quantity), e.cfg.DisplayDecimals))
	return listing.Clone(), nil
}
