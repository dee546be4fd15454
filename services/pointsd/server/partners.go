package server

import (
	"net/http"

	nativecommon "pointsvault/native/common"
	"pointsvault/native/partner"
)

type issueRequest struct {
	Partner string `json:"partner"`
	Window  uint64 `json:"window"`
}

func (s *Server) handleIssueCapability(w http.ResponseWriter, r *http.Request) {
	auth, err := authority(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	addr, err := parseAddress(req.Partner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.node.IssueCapability(auth, addr, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCapabilityView(c))
}

func (s *Server) handlePartner(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.node.Partner(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if view.Capability == nil {
		s.writeError(w, partner.ErrCapabilityNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newPartnerView(view))
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleCapabilityPause(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.node.SetCapabilityPaused(auth, addr, req.Paused)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCapabilityView(c))
}

type windowRequest struct {
	Window uint64 `json:"window"`
}

// handleResetQuota is permissionless: resetting only applies the window
// rollover any mint would apply.
func (s *Server) handleResetQuota(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req windowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.node.ResetQuota(addr, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCapabilityView(c))
}

type collateralRequest struct {
	Class  string `json:"class"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
	Window uint64 `json:"window"`
}

func (s *Server) handleAddCollateral(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req collateralRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	class, err := partner.ParseAssetClass(req.Class)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.node.AddCollateral(auth, addr, partner.Deposit{Class: class, Asset: req.Asset, Amount: req.Amount}, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCapabilityView(c))
}

type mintRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Window    uint64 `json:"window"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.node.MintPoints(auth, addr, recipient, req.Amount, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCapabilityView(c))
}

type reinvestRequest struct {
	Revenue uint64 `json:"revenue"`
	Window  uint64 `json:"window"`
}

func (s *Server) handleReinvest(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req reinvestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.node.ReinvestRevenue(auth, addr, req.Revenue, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCapabilityView(c))
}

func (s *Server) handleWithdrawable(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	window, err := queryUint(r, "window")
	if err != nil {
		s.writeError(w, err)
		return
	}
	class := r.URL.Query().Get("class")
	if class == "" {
		class = partner.ClassStable.String()
	}
	key, err := parseCollateralKey(class, r.URL.Query().Get("asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := s.node.MaxWithdrawable(addr, key, window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"class":           key.Class.String(),
		"asset":           key.Asset,
		"window":          window,
		"maxWithdrawable": limit,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req collateralRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	key, err := parseCollateralKey(req.Class, req.Asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.node.WithdrawCollateral(auth, addr, key, req.Amount, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWithdrawalView(res))
}

type releaseRequest struct {
	Collection string `json:"collection"`
	Window     uint64 `json:"window"`
}

func (s *Server) handleReleaseNFT(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req releaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.node.ReleaseNFT(auth, addr, req.Collection, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWithdrawalView(res))
}

func (s *Server) handleWithdrawalPause(w http.ResponseWriter, r *http.Request) {
	auth, addr, err := s.partnerRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	control, err := s.node.SetWithdrawalPaused(auth, addr, req.Paused)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newControlView(control))
}

// partnerRequest resolves the caller and the partner named in the path.
// Authorisation against the partner happens in the engine.
func (s *Server) partnerRequest(r *http.Request) (*nativecommon.Authority, [20]byte, error) {
	auth, err := authority(r)
	if err != nil {
		return nil, [20]byte{}, err
	}
	addr, err := urlAddress(r)
	if err != nil {
		return nil, [20]byte{}, err
	}
	return auth, addr, nil
}
