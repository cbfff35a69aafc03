// Package memassets is an in-memory AssetCustody implementation used by the
// sandbox server, the simulator, and tests. A production deployment replaces
// it with an adapter over the real asset registries.
package memassets

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nftmart/gomart/internal/domain"
)

type registry struct {
	kind domain.AssetKind

	// owners: unique 资产 tokenID -> 持有人
	owners map[string]common.Address
	// balances: multi-unit 资产 tokenID -> 持有人 -> 数量
	balances map[string]map[common.Address]uint64
	// approvals: owner -> operator -> 是否授权
	approvals map[common.Address]map[common.Address]bool

	royaltyRecipient common.Address
	royaltyBps       uint64
}

// Custody holds a set of in-memory registries keyed by address.
type Custody struct {
	mu         sync.RWMutex
	registries map[common.Address]*registry
}

// NewCustody creates an empty in-memory custody adapter.
func NewCustody() *Custody {
	return &Custody{registries: make(map[common.Address]*registry)}
}

func tokenKey(tokenID *big.Int) string {
	if tokenID == nil {
		return "0"
	}
	return tokenID.String()
}

// RegisterRegistry declares a registry and its asset kind. royaltyBps may be
// zero for registries without royalty support.
func (c *Custody) RegisterRegistry(addr common.Address, kind domain.AssetKind, royaltyRecipient common.Address, royaltyBps uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registries[addr] = &registry{
		kind:             kind,
		owners:           make(map[string]common.Address),
		balances:         make(map[string]map[common.Address]uint64),
		approvals:        make(map[common.Address]map[common.Address]bool),
		royaltyRecipient: royaltyRecipient,
		royaltyBps:       royaltyBps,
	}
}

// Mint creates quantity units of tokenID owned by to. For unique registries
// quantity must be 1 and the token must not exist yet.
func (c *Custody) Mint(registryAddr common.Address, to common.Address, tokenID *big.Int, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	key := tokenKey(tokenID)
	switch reg.kind {
	case domain.KindUnique:
		if quantity != 1 {
			return fmt.Errorf("memassets: unique mint quantity must be 1")
		}
		if _, exists := reg.owners[key]; exists {
			return fmt.Errorf("memassets: token %s already minted", key)
		}
		reg.owners[key] = to
	case domain.KindMultiUnit:
		if reg.balances[key] == nil {
			reg.balances[key] = make(map[common.Address]uint64)
		}
		reg.balances[key][to] += quantity
	default:
		return fmt.Errorf("memassets: unknown kind %d", reg.kind)
	}
	return nil
}

// SetApproval grants or revokes operator's right to move owner's assets.
func (c *Custody) SetApproval(registryAddr common.Address, owner, operator common.Address, approved bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	if reg.approvals[owner] == nil {
		reg.approvals[owner] = make(map[common.Address]bool)
	}
	reg.approvals[owner][operator] = approved
	return nil
}

// KindOf implements ports.AssetCustody.
func (c *Custody) KindOf(_ context.Context, registryAddr common.Address) (domain.AssetKind, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return 0, fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	return reg.kind, nil
}

// OwnerOf implements ports.AssetCustody.
func (c *Custody) OwnerOf(_ context.Context, registryAddr common.Address, tokenID *big.Int) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return common.Address{}, fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	if reg.kind != domain.KindUnique {
		return common.Address{}, fmt.Errorf("memassets: OwnerOf on non-unique registry")
	}
	owner, ok := reg.owners[tokenKey(tokenID)]
	if !ok {
		return common.Address{}, fmt.Errorf("memassets: token %s not minted", tokenKey(tokenID))
	}
	return owner, nil
}

// BalanceOf implements ports.AssetCustody.
func (c *Custody) BalanceOf(_ context.Context, registryAddr common.Address, owner common.Address, tokenID *big.Int) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return 0, fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	key := tokenKey(tokenID)
	switch reg.kind {
	case domain.KindUnique:
		if reg.owners[key] == owner {
			return 1, nil
		}
		return 0, nil
	case domain.KindMultiUnit:
		return reg.balances[key][owner], nil
	}
	return 0, fmt.Errorf("memassets: unknown kind %d", reg.kind)
}

// IsApproved implements ports.AssetCustody.
func (c *Custody) IsApproved(_ context.Context, registryAddr common.Address, owner, operator common.Address) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return false, fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	return reg.approvals[owner][operator], nil
}

// Transfer implements ports.AssetCustody.
func (c *Custody) Transfer(_ context.Context, registryAddr common.Address, from, to common.Address, tokenID *big.Int, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	key := tokenKey(tokenID)
	switch reg.kind {
	case domain.KindUnique:
		if quantity != 1 {
			return fmt.Errorf("memassets: unique transfer quantity must be 1")
		}
		if reg.owners[key] != from {
			return fmt.Errorf("memassets: %s does not own token %s", from.Hex(), key)
		}
		reg.owners[key] = to
	case domain.KindMultiUnit:
		if reg.balances[key] == nil {
			reg.balances[key] = make(map[common.Address]uint64)
		}
		if reg.balances[key][from] < quantity {
			return fmt.Errorf("memassets: %s holds %d of token %s, need %d", from.Hex(), reg.balances[key][from], key, quantity)
		}
		reg.balances[key][from] -= quantity
		reg.balances[key][to] += quantity
	default:
		return fmt.Errorf("memassets: unknown kind %d", reg.kind)
	}
	return nil
}

// RoyaltyOf implements ports.AssetCustody. Registries registered with zero
// royaltyBps answer with a zero amount, which callers treat as no royalty.
func (c *Custody) RoyaltyOf(_ context.Context, registryAddr common.Address, tokenID *big.Int, salePrice *big.Int) (common.Address, *big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.registries[registryAddr]
	if !ok {
		return common.Address{}, nil, fmt.Errorf("memassets: unknown registry %s", registryAddr.Hex())
	}
	if reg.royaltyBps == 0 {
		return common.Address{}, new(big.Int), nil
	}
	amount := new(big.Int).Mul(salePrice, new(big.Int).SetUint64(reg.royaltyBps))
	amount.Div(amount, big.NewInt(10000))
	return reg.royaltyRecipient, amount, nil
}
