package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestListingTotalPrice(t *testing.T) {
	l := Listing{UnitPrice: big.NewInt(2500)}
	if got := l.TotalPrice(4); got.Int64() != 10000 {
		t.Fatalf("total %s, want 10000", got)
	}
	if got := l.TotalPrice(0); got.Sign() != 0 {
		t.Fatalf("zero quantity total %s, want 0", got)
	}
}

func TestListingExpired(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Listing{WindowEnd: end}
	if l.Expired(end) {
		t.Fatalf("window end instant should not count as expired")
	}
	if !l.Expired(end.Add(time.Second)) {
		t.Fatalf("past window end should be expired")
	}
}

func TestListingActive(t *testing.T) {
	l := &Listing{}
	if !l.Active() {
		t.Fatalf("fresh listing should be active")
	}
	l.Ended = true
	if l.Active() {
		t.Fatalf("ended listing should not be active")
	}
	var nilListing *Listing
	if nilListing.Active() {
		t.Fatalf("nil listing should not be active")
	}
}

func TestListingCloneIndependence(t *testing.T) {
	l := &Listing{
		ID:        3,
		Asset:     AssetRef{Registry: common.HexToAddress("0x1"), TokenID: big.NewInt(7), Kind: KindUnique},
		UnitPrice: big.NewInt(100),
	}
	c := l.Clone()
	c.UnitPrice.SetInt64(999)
	c.Asset.TokenID.SetInt64(8)
	if l.UnitPrice.Int64() != 100 || l.Asset.TokenID.Int64() != 7 {
		t.Fatalf("clone shares big.Int state")
	}
}

func TestAssetKindString(t *testing.T) {
	if KindUnique.String() != "unique" || KindMultiUnit.String() != "multi_unit" {
		t.Fatalf("unexpected kind names %q %q", KindUnique, KindMultiUnit)
	}
	if AssetKind(99).String() != "unknown" {
		t.Fatalf("unknown kind should stringify as unknown")
	}
}
