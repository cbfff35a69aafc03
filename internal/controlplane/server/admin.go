package server

import (
	"encoding/json"
	"net/http"

	"github.com/nftmart/gomart/internal/domain"
)

// Sandbox seeding endpoints for the in-memory adapters. A real deployment
// talks to on-chain registries and has no use for these; they exist so the
// server is demoable end to end without external infrastructure.

type adminRegistryRequest struct {
	Registry         string `json:"registry"`
	Kind             string `json:"kind"` // "unique" | "multi_unit"
	RoyaltyRecipient string `json:"royalty_recipient"`
	RoyaltyBps       uint64 `json:"royalty_bps"`
}

func (s *Server) handleAdminRegistry(w http.ResponseWriter, r *http.Request) {
	var req adminRegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	registry, err := parseAddress(req.Registry)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var kind domain.AssetKind
	switch req.Kind {
	case "unique":
		kind = domain.KindUnique
	case "multi_unit":
		kind = domain.KindMultiUnit
	default:
		writeError(w, 400, "kind must be unique or multi_unit")
		return
	}
	var recipient = registry
	if req.RoyaltyRecipient != "" {
		recipient, err = parseAddress(req.RoyaltyRecipient)
		if err != nil {
			writeError(w, 400, err.Error())
			return
		}
	}
	s.cfg.Custody.RegisterRegistry(registry, kind, recipient, req.RoyaltyBps)
	writeJSON(w, 201, map[string]any{"ok": true})
}

type adminMintRequest struct {
	Registry string `json:"registry"`
	To       string `json:"to"`
	TokenID  string `json:"token_id"`
	Quantity uint64 `json:"quantity"`
}

func (s *Server) handleAdminMint(w http.ResponseWriter, r *http.Request) {
	var req adminMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	registry, err := parseAddress(req.Registry)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	tokenID, err := parseAmount(req.TokenID)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if err := s.cfg.Custody.Mint(registry, to, tokenID, req.Quantity); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, 201, map[string]any{"ok": true})
}

type adminDepositRequest struct {
	Currency string `json:"currency"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
}

func (s *Server) handleAdminDeposit(w http.ResponseWriter, r *http.Request) {
	var req adminDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	currency, err := parseAddress(req.Currency)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	s.cfg.Ledger.Deposit(currency, to, amount)
	writeJSON(w, 201, map[string]any{"ok": true})
}

type adminApproveFundsRequest struct {
	Currency string `json:"currency"`
	Owner    string `json:"owner"`
	Spender  string `json:"spender"`
	Amount   string `json:"amount"`
}

func (s *Server) handleAdminApproveFunds(w http.ResponseWriter, r *http.Request) {
	var req adminApproveFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	currency, err := parseAddress(req.Currency)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	spender, err := parseAddress(req.Spender)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	s.cfg.Ledger.Approve(currency, owner, spender, amount)
	writeJSON(w, 201, map[string]any{"ok": true})
}

type adminApproveAssetsRequest struct {
	Registry string `json:"registry"`
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

func (s *Server) handleAdminApproveAssets(w http.ResponseWriter, r *http.Request) {
	var req adminApproveAssetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	registry, err := parseAddress(req.Registry)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	operator, err := parseAddress(req.Operator)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if err := s.cfg.Custody.SetApproval(registry, owner, operator, req.Approved); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, 201, map[string]any{"ok": true})
}
