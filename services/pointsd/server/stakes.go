package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pointsvault/native/stake"
)

type openStakeRequest struct {
	Owner     string `json:"owner"`
	Principal uint64 `json:"principal"`
	Duration  uint64 `json:"duration"`
	Window    uint64 `json:"window"`
}

func (s *Server) handleOpenStake(w http.ResponseWriter, r *http.Request) {
	auth, err := authority(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req openStakeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.node.OpenStake(auth, owner, req.Principal, req.Duration, req.Window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.positionAt(p, req.Window, 0))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	id, err := parseStakeID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	window, err := queryUint(r, "window")
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, pending, err := s.node.StakePosition(id, window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.positionAt(p, window, pending))
}

func (s *Server) handleOwnerStakes(w http.ResponseWriter, r *http.Request) {
	owner, err := urlAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	positions, err := s.node.StakePositions(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]*positionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, newPositionView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}

type stakeActionResponse struct {
	Position *positionView `json:"position,omitempty"`
	Claimed  uint64        `json:"claimed"`
	Ticket   string        `json:"ticket,omitempty"`
}

func (s *Server) handleStakeAction(w http.ResponseWriter, r *http.Request) {
	auth, err := authority(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := parseStakeID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req windowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	var resp stakeActionResponse
	switch chi.URLParam(r, "action") {
	case "claim":
		var p *stake.Position
		resp.Claimed, p, err = s.node.ClaimStake(auth, id, req.Window)
		if err == nil {
			resp.Position = s.positionAt(p, req.Window, 0)
		}
	case "redeem":
		resp.Ticket, resp.Claimed, err = s.node.RedeemStake(auth, id, req.Window)
	case "forfeit":
		resp.Ticket, err = s.node.ForfeitStake(auth, id, req.Window)
	case "encumber":
		var p *stake.Position
		p, err = s.node.EncumberStake(auth, id, req.Window)
		if err == nil {
			resp.Position = s.positionAt(p, req.Window, 0)
		}
	case "release":
		var p *stake.Position
		p, err = s.node.ReleaseStake(auth, id)
		if err == nil {
			resp.Position = s.positionAt(p, req.Window, 0)
		}
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) positionAt(p *stake.Position, window, pending uint64) *positionView {
	view := newPositionView(p)
	if view == nil {
		return nil
	}
	view.Status = p.Status(window, s.node.StakeParams().GraceWindows).String()
	view.Pending = pending
	return view
}
