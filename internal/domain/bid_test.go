package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBidStake(t *testing.T) {
	b := Bid{Bidder: common.HexToAddress("0x1"), UnitPrice: big.NewInt(250), Quantity: 4}
	if got := b.Stake(); got.Int64() != 1000 {
		t.Fatalf("stake %s, want 1000", got)
	}
	var nilBid *Bid
	if got := nilBid.Stake(); got.Sign() != 0 {
		t.Fatalf("nil bid stake %s, want 0", got)
	}
}

func TestBidMeetsReserve(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		quantity  uint64
		reserve   int64
		want      bool
	}{
		{"exactly reserve", 100, 1, 100, true},
		{"above reserve", 101, 1, 100, true},
		{"below reserve", 99, 1, 100, false},
		{"multi unit exact", 100, 5, 100, true},
		{"multi unit below", 99, 5, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bid{UnitPrice: big.NewInt(tt.unitPrice), Quantity: tt.quantity}
			if got := b.MeetsReserve(big.NewInt(tt.reserve)); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBidBeatsByBuffer(t *testing.T) {
	tests := []struct {
		name   string
		cand   int64
		leader int64
		buffer uint64
		want   bool
	}{
		{"equal stake", 10000, 10000, 500, false},
		{"below leader", 9000, 10000, 500, false},
		{"sub-buffer raise", 10400, 10000, 500, false},
		{"exact buffer", 10500, 10000, 500, true},
		{"above buffer", 12000, 10000, 500, true},
		{"zero buffer any raise", 10001, 10000, 0, true},
		{"floor rounding stays below", 10999, 10000, 1000, false},
		{"floor rounding reaches", 11000, 10000, 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bid{UnitPrice: big.NewInt(tt.cand), Quantity: 1}
			if got := b.BeatsByBuffer(big.NewInt(tt.leader), tt.buffer, 10000); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBidCloneIndependence(t *testing.T) {
	b := Bid{Bidder: common.HexToAddress("0x1"), UnitPrice: big.NewInt(100), Quantity: 2}
	c := b.Clone()
	c.UnitPrice.SetInt64(999)
	if b.UnitPrice.Int64() != 100 {
		t.Fatalf("clone shares unit price")
	}
}
