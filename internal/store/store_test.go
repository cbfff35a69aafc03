package store

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nftmart/gomart/internal/domain"
)

var (
	seller = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	buyer  = common.HexToAddress("0x0000000000000000000000000000000000000B02")
	rival  = common.HexToAddress("0x0000000000000000000000000000000000000C03")
	usdc   = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
)

func sampleListing(auction bool) *domain.Listing {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Listing{
		Asset: domain.AssetRef{
			Registry: common.HexToAddress("0x0000000000000000000000000000000000001001"),
			TokenID:  big.NewInt(7),
			Kind:     domain.KindUnique,
		},
		Creator:           seller,
		Currency:          usdc,
		UnitPrice:         big.NewInt(10_000),
		WindowStart:       start,
		WindowEnd:         start.Add(time.Hour),
		QuantityRemaining: 1,
		IsAuction:         auction,
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s, err := NewMarketStore(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if got := s.NextID(); got != 0 {
		t.Fatalf("next id %d, want 0", got)
	}
	id, err := s.AppendListing(sampleListing(true))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id != 0 {
		t.Fatalf("first id %d, want 0", id)
	}
	id2, _ := s.AppendListing(sampleListing(false))
	if id2 != 1 {
		t.Fatalf("second id %d, want 1", id2)
	}

	if _, err := s.GetListing(5); !errors.Is(err, domain.ErrListingNotFound) {
		t.Fatalf("got %v, want ErrListingNotFound", err)
	}
	if got := len(s.ListListings()); got != 2 {
		t.Fatalf("listings %d, want 2", got)
	}
}

func TestCommitBidUpdatesLeaderAndStake(t *testing.T) {
	s, _ := NewMarketStore(nil)
	id, _ := s.AppendListing(sampleListing(true))
	l, _ := s.GetListing(id)

	if _, ok := s.Leader(id); ok {
		t.Fatalf("fresh listing should have no leader")
	}

	first := domain.Bid{Bidder: buyer, UnitPrice: big.NewInt(10_000), Quantity: 1}
	if err := s.CommitBid(l, first); err != nil {
		t.Fatalf("commit first: %v", err)
	}
	second := domain.Bid{Bidder: rival, UnitPrice: big.NewInt(11_000), Quantity: 1}
	if err := s.CommitBid(l, second); err != nil {
		t.Fatalf("commit second: %v", err)
	}

	leader, ok := s.Leader(id)
	if !ok || leader.Bidder != rival {
		t.Fatalf("leader %v, want rival", leader.Bidder)
	}
	if got := s.Stake(id, buyer); got.Int64() != 10_000 {
		t.Fatalf("buyer stake %s, want 10000", got)
	}
	if got := len(s.Bids(id)); got != 2 {
		t.Fatalf("history length %d, want 2", got)
	}

	if err := s.ZeroStake(id, buyer, nil); err != nil {
		t.Fatalf("zero stake: %v", err)
	}
	if got := s.Stake(id, buyer); got.Sign() != 0 {
		t.Fatalf("stake after zero %s, want 0", got)
	}
	// 历史不受押金清零影响
	if got := len(s.Bids(id)); got != 2 {
		t.Fatalf("history mutated by ZeroStake")
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	s, _ := NewMarketStore(nil)
	id, _ := s.AppendListing(sampleListing(false))

	got, _ := s.GetListing(id)
	got.UnitPrice.SetInt64(1)
	got.Ended = true

	again, _ := s.GetListing(id)
	if again.UnitPrice.Int64() != 10_000 || again.Ended {
		t.Fatalf("query leaked internal state: %+v", again)
	}
}

func TestBadgerPersistenceRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "marketdb")

	db, err := OpenDB(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := NewMarketStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	id, err := s.AppendListing(sampleListing(true))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	l, _ := s.GetListing(id)
	bid := domain.Bid{Bidder: buyer, UnitPrice: big.NewInt(12_345), Quantity: 1, PlacedAt: l.WindowStart}
	if err := s.CommitBid(l, bid); err != nil {
		t.Fatalf("commit bid: %v", err)
	}
	l.Ended = true
	if err := s.UpdateListing(l); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// 重新打开并恢复
	db2, err := OpenDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	restored, err := NewMarketStore(db2)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := restored.GetListing(id)
	if err != nil {
		t.Fatalf("get restored: %v", err)
	}
	if !got.Ended || got.UnitPrice.Int64() != 10_000 || !got.IsAuction {
		t.Fatalf("restored listing %+v", got)
	}
	leader, ok := restored.Leader(id)
	if !ok || leader.Bidder != buyer || leader.UnitPrice.Int64() != 12_345 {
		t.Fatalf("restored leader %+v ok=%v", leader, ok)
	}
	if stake := restored.Stake(id, buyer); stake.Int64() != 12_345 {
		t.Fatalf("restored stake %s, want 12345", stake)
	}
	if next := restored.NextID(); next != 1 {
		t.Fatalf("restored next id %d, want 1", next)
	}
}

func TestOpenDBRequiresPath(t *testing.T) {
	if _, err := OpenDB("  "); err == nil {
		t.Fatalf("blank path should fail")
	}
}
