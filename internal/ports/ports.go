package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nftmart/gomart/internal/domain"
)

// Narrow capability interfaces over the external collaborators.
// The engine only ever talks to asset registries and the payment ledger
// through these two ports; everything else is out of scope.

// AssetCustody moves unique or multi-unit assets between parties and
// answers ownership/approval questions for a given registry.
type AssetCustody interface {
	// KindOf probes the registry's declared capability.
	KindOf(ctx context.Context, registry common.Address) (domain.AssetKind, error)

	// OwnerOf returns the current owner of a unique asset.
	OwnerOf(ctx context.Context, registry common.Address, tokenID *big.Int) (common.Address, error)

	// BalanceOf returns how many units of tokenID the account holds (multi-unit).
	BalanceOf(ctx context.Context, registry common.Address, owner common.Address, tokenID *big.Int) (uint64, error)

	// IsApproved reports whether operator may move owner's assets on this registry.
	IsApproved(ctx context.Context, registry common.Address, owner, operator common.Address) (bool, error)

	// Transfer moves quantity units of tokenID from one party to another.
	Transfer(ctx context.Context, registry common.Address, from, to common.Address, tokenID *big.Int, quantity uint64) error

	// RoyaltyOf looks up the royalty for a sale at the given price.
	// Registries are not required to support this: any error (or a zero
	// amount) is treated by callers as "no royalty".
	RoyaltyOf(ctx context.Context, registry common.Address, tokenID *big.Int, salePrice *big.Int) (common.Address, *big.Int, error)
}

// PaymentLedger moves fungible funds between accounts.
// Pull requires the payer to have pre-authorized the engine; Push spends
// from the engine's own custody balance.
type PaymentLedger interface {
	BalanceOf(ctx context.Context, currency common.Address, account common.Address) (*big.Int, error)

	// AllowanceOf returns how much spender may pull from owner.
	AllowanceOf(ctx context.Context, currency common.Address, owner, spender common.Address) (*big.Int, error)

	// Pull moves amount from payer to recipient using the engine's allowance.
	Pull(ctx context.Context, currency common.Address, from, to common.Address, amount *big.Int) error

	// Push moves amount from the engine's custody balance to recipient.
	Push(ctx context.Context, currency common.Address, to common.Address, amount *big.Int) error
}
