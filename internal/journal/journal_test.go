package journal

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/nftmart/gomart/internal/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestPublishAndQuery(t *testing.T) {
	j := openTestJournal(t)

	actor := common.HexToAddress("0x0000000000000000000000000000000000000B02")
	usdc := common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	j.Publish(events.New(events.TypeListingCreated, 0, actor, base).
		WithAmounts(usdc, 1, big.NewInt(10_000_000), big.NewInt(10_000_000), 6))
	j.Publish(events.New(events.TypePurchased, 0, actor, base.Add(time.Minute)).
		WithAmounts(usdc, 1, big.NewInt(10_000_000), big.NewInt(10_000_000), 6).
		WithPayout(big.NewInt(250_000), big.NewInt(1_000_000), big.NewInt(8_750_000)))
	j.Publish(events.New(events.TypeListingCreated, 1, actor, base.Add(2*time.Minute)))

	ctx := context.Background()

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// 最新在前
	require.Equal(t, uint64(1), recent[0].ListingID)
	require.Equal(t, events.TypePurchased, recent[1].Type)

	byListing, err := j.ByListing(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, byListing, 2)
	// 时间正序
	require.Equal(t, events.TypeListingCreated, byListing[0].Type)
	require.Equal(t, events.TypePurchased, byListing[1].Type)

	purchased := byListing[1]
	require.Equal(t, "10000000", purchased.Total.String())
	require.Equal(t, "250000", purchased.Fee.String())
	require.Equal(t, "1000000", purchased.Royalty.String())
	require.Equal(t, "8750000", purchased.Payout.String())
	require.Equal(t, "10", purchased.DisplayTotal)
	require.Equal(t, actor, purchased.Actor)
	require.Equal(t, usdc, purchased.Currency)
}

func TestOrderingStableWithinSameSecond(t *testing.T) {
	j := openTestJournal(t)
	actor := common.HexToAddress("0x0000000000000000000000000000000000000B02")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 整秒时间戳序列化后没有小数部分，按文本比较会排在同一秒的
	// 小数时间戳之后；按写入序号排序不受格式影响
	j.Publish(events.New(events.TypeListingCreated, 3, actor, base))
	j.Publish(events.New(events.TypeBidPlaced, 3, actor, base.Add(500*time.Millisecond)))

	byListing, err := j.ByListing(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, byListing, 2)
	require.Equal(t, events.TypeListingCreated, byListing[0].Type)
	require.Equal(t, events.TypeBidPlaced, byListing[1].Type)

	recent, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, events.TypeBidPlaced, recent[0].Type)
}

func TestRecentLimitClamped(t *testing.T) {
	j := openTestJournal(t)
	actor := common.HexToAddress("0x0000000000000000000000000000000000000B02")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		j.Publish(events.New(events.TypeBidPlaced, uint64(i), actor, base.Add(time.Duration(i)*time.Second)))
	}

	evs, err := j.Recent(context.Background(), -1)
	require.NoError(t, err)
	require.Len(t, evs, 5)

	evs, err = j.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, evs, 2)
}
