package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/nftmart/gomart/internal/adapters/memassets"
	"github.com/nftmart/gomart/internal/adapters/memledger"
	"github.com/nftmart/gomart/internal/engine"
	"github.com/nftmart/gomart/internal/events"
	"github.com/nftmart/gomart/internal/journal"
	"github.com/nftmart/gomart/internal/store"
)

var (
	engineAcct = "0x00000000000000000000000000000000000000E1"
	platform   = "0x00000000000000000000000000000000000000Fe"
	usdcAddr   = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	nftRegAddr = "0x0000000000000000000000000000000000001001"
	aliceAddr  = "0x0000000000000000000000000000000000000A01"
	bobAddr    = "0x0000000000000000000000000000000000000B02"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	now     time.Time
	eng     *engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.NewMarketStore(nil)
	require.NoError(t, err)
	jnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })

	custody := memassets.NewCustody()
	ledger := memledger.NewLedger(common.HexToAddress(engineAcct))

	ts := &testServer{t: t, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	bus := events.NewBus(jnl)
	ts.eng = engine.New(engine.Config{
		EngineAccount: common.HexToAddress(engineAcct),
		PlatformOwner: common.HexToAddress(platform),
		FeeBps:        250,
		BidBufferBps:  500,
		TimeBuffer:    15 * time.Minute,
	}, st, custody, ledger, bus)
	ts.eng.SetClock(func() time.Time { return ts.now })

	srv := New(Config{
		Engine:      ts.eng,
		Journal:     jnl,
		Custody:     custody,
		Ledger:      ledger,
		EnableAdmin: true,
	})
	t.Cleanup(func() { _ = srv.Close() })
	ts.handler = srv.Router()
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) mustDo(method, path string, body any, wantStatus int) map[string]any {
	ts.t.Helper()
	w := ts.do(method, path, body)
	require.Equal(ts.t, wantStatus, w.Code, "%s %s: %s", method, path, w.Body.String())
	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return out
}

// seedMarket 用 admin 接口铺底：unique 注册表、token 7 给 alice、bob 入金并授权
func (ts *testServer) seedMarket() {
	ts.t.Helper()
	ts.mustDo("POST", "/api/admin/registries", map[string]any{
		"registry": nftRegAddr, "kind": "unique", "royalty_bps": 0,
	}, 201)
	ts.mustDo("POST", "/api/admin/mint", map[string]any{
		"registry": nftRegAddr, "to": aliceAddr, "token_id": "7", "quantity": 1,
	}, 201)
	ts.mustDo("POST", "/api/admin/approve-assets", map[string]any{
		"registry": nftRegAddr, "owner": aliceAddr, "operator": engineAcct, "approved": true,
	}, 201)
	ts.mustDo("POST", "/api/admin/deposit", map[string]any{
		"currency": usdcAddr, "to": bobAddr, "amount": "1000000",
	}, 201)
	ts.mustDo("POST", "/api/admin/approve-funds", map[string]any{
		"currency": usdcAddr, "owner": bobAddr, "spender": engineAcct, "amount": "1000000",
	}, 201)
}

func createBody(isAuction bool) map[string]any {
	return map[string]any{
		"creator":          aliceAddr,
		"registry":         nftRegAddr,
		"token_id":         "7",
		"currency":         usdcAddr,
		"unit_price":       "10000",
		"duration_seconds": 3600,
		"quantity":         1,
		"is_auction":       isAuction,
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do("GET", "/healthz", nil)
	require.Equal(t, 200, w.Code)
}

func TestDirectSaleFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedMarket()

	out := ts.mustDo("POST", "/api/listings/", createBody(false), 201)
	listing := out["listing"].(map[string]any)
	id := uint64(listing["id"].(float64))

	out = ts.mustDo("GET", fmt.Sprintf("/api/listings/%d/", id), nil, 200)
	require.Equal(t, false, out["listing"].(map[string]any)["is_auction"])

	ts.now = ts.now.Add(time.Minute)
	out = ts.mustDo("POST", fmt.Sprintf("/api/listings/%d/buy", id), map[string]any{
		"buyer": bobAddr, "quantity": 1,
	}, 200)
	require.Equal(t, true, out["listing"].(map[string]any)["ended"])

	// 事件日志记录了创建和成交
	out = ts.mustDo("GET", fmt.Sprintf("/api/listings/%d/events", id), nil, 200)
	evs := out["events"].([]any)
	require.Len(t, evs, 2)
	require.Equal(t, "listing_created", evs[0].(map[string]any)["type"])
	require.Equal(t, "purchased", evs[1].(map[string]any)["type"])
}

func TestAuctionFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedMarket()

	out := ts.mustDo("POST", "/api/listings/", createBody(true), 201)
	id := uint64(out["listing"].(map[string]any)["id"].(float64))

	// 低于底价的出价 422
	w := ts.do("POST", fmt.Sprintf("/api/listings/%d/bids", id), map[string]any{
		"bidder": bobAddr, "unit_price": "9999", "quantity": 1,
	})
	require.Equal(t, 422, w.Code)

	ts.mustDo("POST", fmt.Sprintf("/api/listings/%d/bids", id), map[string]any{
		"bidder": bobAddr, "unit_price": "10000", "quantity": 1,
	}, 201)

	out = ts.mustDo("GET", fmt.Sprintf("/api/listings/%d/stake/%s", id, bobAddr), nil, 200)
	require.Equal(t, "10000", out["stake"])

	// 窗口未过不能落槌
	w = ts.do("POST", fmt.Sprintf("/api/listings/%d/close", id), map[string]any{"caller": bobAddr})
	require.Equal(t, 409, w.Code)

	ts.now = ts.now.Add(2 * time.Hour)
	ts.mustDo("POST", fmt.Sprintf("/api/listings/%d/close", id), map[string]any{"caller": bobAddr}, 200)

	out = ts.mustDo("GET", fmt.Sprintf("/api/listings/%d/bids", id), nil, 200)
	require.Len(t, out["bids"].([]any), 1)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.seedMarket()

	// 不存在的挂单 404
	w := ts.do("GET", "/api/listings/42/", nil)
	require.Equal(t, 404, w.Code)

	// 坏 id 400
	w = ts.do("GET", "/api/listings/abc/", nil)
	require.Equal(t, 400, w.Code)

	out := ts.mustDo("POST", "/api/listings/", createBody(false), 201)
	id := uint64(out["listing"].(map[string]any)["id"].(float64))

	// 非创建者编辑 403
	w = ts.do("PUT", fmt.Sprintf("/api/listings/%d/", id), map[string]any{
		"caller": bobAddr, "unit_price": "10000", "duration_seconds": 3600, "quantity": 1, "currency": usdcAddr,
	})
	require.Equal(t, 403, w.Code)

	// 直售上出价 409
	w = ts.do("POST", fmt.Sprintf("/api/listings/%d/bids", id), map[string]any{
		"bidder": bobAddr, "unit_price": "10000", "quantity": 1,
	})
	require.Equal(t, 409, w.Code)

	// 坏地址 400
	w = ts.do("POST", fmt.Sprintf("/api/listings/%d/buy", id), map[string]any{
		"buyer": "nope", "quantity": 1,
	})
	require.Equal(t, 400, w.Code)
}

func TestRecentEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.seedMarket()
	ts.mustDo("POST", "/api/listings/", createBody(false), 201)

	out := ts.mustDo("GET", "/api/events?limit=10", nil, 200)
	require.NotEmpty(t, out["events"])
}

func TestAdminDisabled(t *testing.T) {
	st, err := store.NewMarketStore(nil)
	require.NoError(t, err)
	eng := engine.New(engine.Config{
		EngineAccount: common.HexToAddress(engineAcct),
		PlatformOwner: common.HexToAddress(platform),
	}, st, memassets.NewCustody(), memledger.NewLedger(common.HexToAddress(engineAcct)), nil)
	srv := New(Config{Engine: eng})
	handler := srv.Router()

	req := httptest.NewRequest("POST", "/api/admin/mint", bytes.NewBufferString("{}"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, 404, w.Code)
}
