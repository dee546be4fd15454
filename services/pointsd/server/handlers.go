package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pointsvault/core/pricing"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/partner"
	"pointsvault/native/points"
	"pointsvault/services/pointsd/indexer"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	acct, debt, err := s.node.Balance(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(addr, acct, debt))
}

type amountRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

func (s *Server) handlePointsOp(w http.ResponseWriter, r *http.Request) {
	auth, addr, amount, err := s.amountRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var op func(*nativecommon.Authority, [20]byte, uint64) error
	switch chi.URLParam(r, "op") {
	case "earn":
		op = ignoreAccount(s.node.Earn)
	case "spend":
		op = ignoreAccount(s.node.Spend)
	case "lock":
		op = ignoreAccount(s.node.Lock)
	case "unlock":
		op = ignoreAccount(s.node.Unlock)
	default:
		http.NotFound(w, r)
		return
	}
	if err := op(auth, addr, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondBalance(w, addr)
}

func (s *Server) handleBadDebt(w http.ResponseWriter, r *http.Request) {
	auth, addr, amount, err := s.amountRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch chi.URLParam(r, "op") {
	case "add":
		_, err = s.node.AddBadDebt(auth, addr, amount)
	case "remove":
		_, err = s.node.RemoveBadDebt(auth, addr, amount)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondBalance(w, addr)
}

func (s *Server) amountRequest(r *http.Request) (*nativecommon.Authority, [20]byte, uint64, error) {
	auth, err := authority(r)
	if err != nil {
		return nil, [20]byte{}, 0, err
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, [20]byte{}, 0, err
	}
	addr, err := parseAddress(req.Account)
	if err != nil {
		return nil, [20]byte{}, 0, err
	}
	return auth, addr, req.Amount, nil
}

func (s *Server) respondBalance(w http.ResponseWriter, addr [20]byte) {
	acct, debt, err := s.node.Balance(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(addr, acct, debt))
}

type priceRequest struct {
	Asset       string `json:"asset"`
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
	Window      uint64 `json:"window"`
}

func (s *Server) handlePriceUpdate(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		http.NotFound(w, r)
		return
	}
	auth, err := authority(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := nativecommon.RequireAdmin(auth); err != nil {
		s.writeError(w, err)
		return
	}
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	quote := pricing.Quote{Asset: req.Asset, Numerator: req.Numerator, Denominator: req.Denominator, Window: req.Window}
	if err := s.prices.Update(quote); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("price updated", "asset", strings.ToUpper(req.Asset), "window", req.Window)
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.NotFound(w, r)
		return
	}
	filter := indexer.Filter{
		Type:    strings.TrimSpace(r.URL.Query().Get("type")),
		Subject: strings.TrimSpace(r.URL.Query().Get("subject")),
	}
	if r.URL.Query().Has("after") {
		after, err := queryUint(r, "after")
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.AfterSeq = after
	}
	if r.URL.Query().Has("limit") {
		limit, err := queryUint(r, "limit")
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.Limit = int(min(limit, 1_000))
	}
	records, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	type eventView struct {
		Seq        uint64            `json:"seq"`
		ID         string            `json:"id"`
		Type       string            `json:"type"`
		Window     uint64            `json:"window"`
		Attributes map[string]string `json:"attributes"`
	}
	out := make([]eventView, 0, len(records))
	for _, rec := range records {
		evt, err := rec.Decode()
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, eventView{Seq: rec.Seq, ID: rec.ID, Type: rec.Type, Window: rec.Window, Attributes: evt.Attributes})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type exportRequest struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.events == nil || s.exportDir == "" {
		http.NotFound(w, r)
		return
	}
	auth, err := authority(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := nativecommon.RequireAdmin(auth); err != nil {
		s.writeError(w, err)
		return
	}
	var req exportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	result, err := s.events.Export(r.Context(), s.exportDir, indexer.Filter{Type: req.Type, Subject: req.Subject})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseCollateralKey(class, asset string) (partner.CollateralKey, error) {
	c, err := partner.ParseAssetClass(class)
	if err != nil {
		return partner.CollateralKey{}, err
	}
	return partner.CollateralKey{Class: c, Asset: strings.ToUpper(strings.TrimSpace(asset))}, nil
}

func ignoreAccount(fn func(*nativecommon.Authority, [20]byte, uint64) (*points.Account, error)) func(*nativecommon.Authority, [20]byte, uint64) error {
	return func(auth *nativecommon.Authority, addr [20]byte, amount uint64) error {
		_, err := fn(auth, addr, amount)
		return err
	}
}
