// Package memledger is an in-memory PaymentLedger implementation used by the
// sandbox server, the simulator, and tests.
package memledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger keeps per-currency balances and pull allowances in memory.
// The engine account is fixed at construction; Push always spends from it.
type Ledger struct {
	mu     sync.RWMutex
	engine common.Address

	// balances: currency -> account -> balance
	balances map[common.Address]map[common.Address]*big.Int
	// allowances: currency -> owner -> spender -> remaining allowance
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
}

// NewLedger creates an empty ledger whose Push operations debit engine.
func NewLedger(engine common.Address) *Ledger {
	return &Ledger{
		engine:     engine,
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) balance(currency, account common.Address) *big.Int {
	if l.balances[currency] == nil {
		l.balances[currency] = make(map[common.Address]*big.Int)
	}
	if l.balances[currency][account] == nil {
		l.balances[currency][account] = new(big.Int)
	}
	return l.balances[currency][account]
}

func (l *Ledger) allowance(currency, owner, spender common.Address) *big.Int {
	if l.allowances[currency] == nil {
		l.allowances[currency] = make(map[common.Address]map[common.Address]*big.Int)
	}
	if l.allowances[currency][owner] == nil {
		l.allowances[currency][owner] = make(map[common.Address]*big.Int)
	}
	if l.allowances[currency][owner][spender] == nil {
		l.allowances[currency][owner][spender] = new(big.Int)
	}
	return l.allowances[currency][owner][spender]
}

// Deposit credits amount to account (sandbox seeding helper).
func (l *Ledger) Deposit(currency, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(currency, account).Add(l.balance(currency, account), amount)
}

// Approve sets owner's pull allowance for spender (overwrite semantics).
func (l *Ledger) Approve(currency, owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowance(currency, owner, spender).Set(amount)
}

// BalanceOf implements ports.PaymentLedger.
func (l *Ledger) BalanceOf(_ context.Context, currency, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(currency, account)), nil
}

// AllowanceOf implements ports.PaymentLedger.
func (l *Ledger) AllowanceOf(_ context.Context, currency, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(currency, owner, spender)), nil
}

// Pull implements ports.PaymentLedger. It consumes the payer's allowance
// granted to the engine account regardless of the recipient.
func (l *Ledger) Pull(_ context.Context, currency, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("memledger: invalid pull amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	allowance := l.allowance(currency, from, l.engine)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("memledger: allowance of %s is %s, need %s", from.Hex(), allowance, amount)
	}
	bal := l.balance(currency, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("memledger: balance of %s is %s, need %s", from.Hex(), bal, amount)
	}
	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	l.balance(currency, to).Add(l.balance(currency, to), amount)
	return nil
}

// Push implements ports.PaymentLedger, moving amount from the engine account.
func (l *Ledger) Push(_ context.Context, currency, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("memledger: invalid push amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(currency, l.engine)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("memledger: engine custody balance is %s, need %s", bal, amount)
	}
	bal.Sub(bal, amount)
	l.balance(currency, to).Add(l.balance(currency, to), amount)
	return nil
}
