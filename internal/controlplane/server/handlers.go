package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type createListingRequest struct {
	Creator         string `json:"creator"`
	Registry        string `json:"registry"`
	TokenID         string `json:"token_id"`
	Currency        string `json:"currency"`
	UnitPrice       string `json:"unit_price"`
	DurationSeconds int64  `json:"duration_seconds"`
	Quantity        uint64 `json:"quantity"`
	IsAuction       bool   `json:"is_auction"`
}

func (s *Server) handleListingCreate(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	creator, err := parseAddress(req.Creator)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	registry, err := parseAddress(req.Registry)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	currency, err := parseAddress(req.Currency)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	tokenID, err := parseAmount(req.TokenID)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	listing, err := s.cfg.Engine.CreateListing(r.Context(), engineCreateRequest(creator, registry, tokenID, currency, unitPrice, req))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 201, map[string]any{"listing": listing})
}

func (s *Server) handleListingsList(w http.ResponseWriter, r *http.Request) {
	listings := s.cfg.Engine.ListListings()
	writeJSON(w, 200, map[string]any{"listings": listings})
}

func (s *Server) handleListingGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	listing, err := s.cfg.Engine.GetListing(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"listing": listing})
}

type editListingRequest struct {
	Caller          string `json:"caller"`
	UnitPrice       string `json:"unit_price"`
	DurationSeconds int64  `json:"duration_seconds"`
	Quantity        uint64 `json:"quantity"`
	Currency        string `json:"currency"`
}

func (s *Server) handleListingEdit(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var req editListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	currency, err := parseAddress(req.Currency)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	listing, err := s.cfg.Engine.EditListing(r.Context(), engineEditRequest(id, caller, currency, unitPrice, req))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"listing": listing})
}

type buyRequest struct {
	Buyer    string `json:"buyer"`
	Quantity uint64 `json:"quantity"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	buyer, err := parseAddress(req.Buyer)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	listing, err := s.cfg.Engine.Buy(r.Context(), engineBuyRequest(id, buyer, req.Quantity))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"listing": listing})
}

type bidRequest struct {
	Bidder    string `json:"bidder"`
	UnitPrice string `json:"unit_price"`
	Quantity  uint64 `json:"quantity"`
}

func (s *Server) handleBidPlace(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	bidder, err := parseAddress(req.Bidder)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	bid, err := s.cfg.Engine.Bid(r.Context(), engineBidRequest(id, bidder, unitPrice, req.Quantity))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 201, map[string]any{"bid": bid})
}

func (s *Server) handleBidsList(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	bids, err := s.cfg.Engine.GetListingBids(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"bids": bids})
}

type closeRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if err := s.cfg.Engine.CloseAuction(r.Context(), id, caller); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

type withdrawRequest struct {
	Bidder string `json:"bidder"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	bidder, err := parseAddress(req.Bidder)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	stake, err := s.cfg.Engine.Withdraw(r.Context(), id, bidder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"refunded": stake.String()})
}

func (s *Server) handleStakeGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	bidder, err := parseAddress(urlParam(r, "bidder"))
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	stake, err := s.cfg.Engine.GetStake(id, bidder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"stake": stake.String()})
}

func (s *Server) handleEventsRecent(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeError(w, 404, "event journal disabled")
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()
	evs, err := s.cfg.Journal.Recent(ctx, limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"events": evs})
}

func (s *Server) handleListingEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeError(w, 404, "event journal disabled")
		return
	}
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()
	evs, err := s.cfg.Journal.ByListing(ctx, id, 200)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"events": evs})
}
