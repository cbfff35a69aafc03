package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nftmart/gomart/internal/adapters/memassets"
	"github.com/nftmart/gomart/internal/adapters/memledger"
	"github.com/nftmart/gomart/internal/engine"
	"github.com/nftmart/gomart/internal/journal"
)

// Config wires the marketplace HTTP surface.
type Config struct {
	Engine  *engine.Engine
	Journal *journal.Journal

	// Sandbox adapters; admin endpoints are exposed only when both are set
	// and EnableAdmin is true.
	Custody *memassets.Custody
	Ledger  *memledger.Ledger

	EnableWS    bool
	EnableAdmin bool
}

// Server is the marketplace control plane.
type Server struct {
	cfg Config
	hub *Hub
}

// New creates the control plane server. The returned *Hub (if WS is enabled)
// must be attached to the engine's event bus by the caller.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	if cfg.EnableWS {
		s.hub = NewHub()
	}
	return s
}

// Hub returns the websocket event hub (nil when WS is disabled).
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close stops background workers.
func (s *Server) Close() error {
	if s.hub != nil {
		s.hub.Close()
	}
	return nil
}

// Router builds the gin handler tree.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")

	listings := api.Group("/listings")
	listings.GET("/", s.wrap(s.handleListingsList))
	listings.POST("/", s.wrap(s.handleListingCreate))
	listingID := listings.Group("/:listingID")
	listingID.GET("/", s.wrap(s.handleListingGet))
	listingID.PUT("/", s.wrap(s.handleListingEdit))
	listingID.POST("/buy", s.wrap(s.handleBuy))
	listingID.GET("/bids", s.wrap(s.handleBidsList))
	listingID.POST("/bids", s.wrap(s.handleBidPlace))
	listingID.POST("/close", s.wrap(s.handleClose))
	listingID.POST("/withdraw", s.wrap(s.handleWithdraw))
	listingID.GET("/stake/:bidder", s.wrap(s.handleStakeGet))
	listingID.GET("/events", s.wrap(s.handleListingEvents))

	api.GET("/events", s.wrap(s.handleEventsRecent))

	if s.cfg.EnableAdmin && s.cfg.Custody != nil && s.cfg.Ledger != nil {
		admin := api.Group("/admin")
		admin.POST("/registries", s.wrap(s.handleAdminRegistry))
		admin.POST("/mint", s.wrap(s.handleAdminMint))
		admin.POST("/deposit", s.wrap(s.handleAdminDeposit))
		admin.POST("/approve-funds", s.wrap(s.handleAdminApproveFunds))
		admin.POST("/approve-assets", s.wrap(s.handleAdminApproveAssets))
	}

	if s.hub != nil {
		r.GET("/ws", s.handleWS)
	}
	return r
}

type paramsKeyType string

const paramsKey paramsKeyType = "gomart_path_params"

// wrap adapts plain http handlers to gin, stashing path params in the context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}

func urlParam(r *http.Request, key string) string {
	if m, ok := r.Context().Value(paramsKey).(map[string]string); ok {
		return m[key]
	}
	return ""
}
