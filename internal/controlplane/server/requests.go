package server

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nftmart/gomart/internal/engine"
)

// 把 HTTP 请求体换算成引擎请求

func engineCreateRequest(creator, registry common.Address, tokenID *big.Int, currency common.Address, unitPrice *big.Int, req createListingRequest) engine.CreateListingRequest {
	return engine.CreateListingRequest{
		Creator:   creator,
		Registry:  registry,
		TokenID:   tokenID,
		Currency:  currency,
		UnitPrice: unitPrice,
		Duration:  time.Duration(req.DurationSeconds) * time.Second,
		Quantity:  req.Quantity,
		IsAuction: req.IsAuction,
	}
}

func engineEditRequest(id uint64, caller, currency common.Address, unitPrice *big.Int, req editListingRequest) engine.EditListingRequest {
	return engine.EditListingRequest{
		Caller:    caller,
		ListingID: id,
		UnitPrice: unitPrice,
		Duration:  time.Duration(req.DurationSeconds) * time.Second,
		Quantity:  req.Quantity,
		Currency:  currency,
	}
}

func engineBuyRequest(id uint64, buyer common.Address, quantity uint64) engine.BuyRequest {
	return engine.BuyRequest{Buyer: buyer, ListingID: id, Quantity: quantity}
}

func engineBidRequest(id uint64, bidder common.Address, unitPrice *big.Int, quantity uint64) engine.BidRequest {
	return engine.BidRequest{Bidder: bidder, ListingID: id, UnitPrice: unitPrice, Quantity: quantity}
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
