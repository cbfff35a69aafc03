package royaltyhttp

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/nftmart/gomart/internal/adapters/memassets"
	"github.com/nftmart/gomart/internal/domain"
)

var (
	reg       = common.HexToAddress("0x0000000000000000000000000000000000001001")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000000D04")
)

func newOracle(t *testing.T, handler http.HandlerFunc) *Oracle {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := memassets.NewCustody()
	base.RegisterRegistry(reg, domain.KindUnique, common.Address{}, 0)
	return New(base, Config{
		BaseURL:  srv.URL,
		CacheTTL: time.Minute,
		Timeout:  2 * time.Second,
	})
}

func TestRoyaltyOfFetchesAndCaches(t *testing.T) {
	var hits atomic.Int64
	o := newOracle(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/royalty", r.URL.Path)
		require.Equal(t, reg.Hex(), r.URL.Query().Get("registry"))
		require.Equal(t, "7", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"recipient":%q,"royalty_bps":500}`, recipient.Hex())
	})

	ctx := context.Background()
	got, amount, err := o.RoyaltyOf(ctx, reg, big.NewInt(7), big.NewInt(10_000))
	require.NoError(t, err)
	require.Equal(t, recipient, got)
	require.Equal(t, int64(500), amount.Int64())

	// 第二次走缓存，金额随成交价重新折算
	_, amount, err = o.RoyaltyOf(ctx, reg, big.NewInt(7), big.NewInt(20_000))
	require.NoError(t, err)
	require.Equal(t, int64(1000), amount.Int64())
	require.Equal(t, int64(1), hits.Load())
}

func TestRoyaltyOfSurfacesServerError(t *testing.T) {
	o := newOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, _, err := o.RoyaltyOf(context.Background(), reg, big.NewInt(7), big.NewInt(10_000))
	require.Error(t, err)
}

func TestRoyaltyOfRejectsBadRecipient(t *testing.T) {
	o := newOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"recipient":"not-an-address","royalty_bps":500}`)
	})
	_, _, err := o.RoyaltyOf(context.Background(), reg, big.NewInt(7), big.NewInt(10_000))
	require.Error(t, err)
}

func TestDecoratorDelegatesOtherCalls(t *testing.T) {
	o := newOracle(t, func(w http.ResponseWriter, r *http.Request) {})
	kind, err := o.KindOf(context.Background(), reg)
	require.NoError(t, err)
	require.Equal(t, domain.KindUnique, kind)
}
