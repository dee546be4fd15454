// Package server exposes the points node over HTTP.
package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pointsvault/core"
	"pointsvault/core/pricing"
	"pointsvault/crypto"
	"pointsvault/gateway/middleware"
	nativecommon "pointsvault/native/common"
	"pointsvault/services/pointsd/indexer"
)

const maxBodyBytes = 64 << 10

// EventStore serves the indexed audit trail.
type EventStore interface {
	List(ctx context.Context, f indexer.Filter) ([]indexer.EventRecord, error)
	Export(ctx context.Context, dir string, f indexer.Filter) (indexer.ExportResult, error)
}

// PriceUpdater accepts administrator price observations.
type PriceUpdater interface {
	Update(q pricing.Quote) error
}

// Options wires the server's collaborators. Nil optional fields disable the
// routes that need them.
type Options struct {
	Node          *core.Node
	Prices        PriceUpdater
	Events        EventStore
	ExportDir     string
	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          *middleware.CORSConfig
	Logger        *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	node      *core.Node
	prices    PriceUpdater
	events    EventStore
	exportDir string
	auth      *middleware.Authenticator
	limiter   *middleware.RateLimiter
	obs       *middleware.Observability
	cors      *middleware.CORSConfig
	logger    *slog.Logger
}

// New builds a server around opts.Node.
func New(opts Options) (*Server, error) {
	if opts.Node == nil {
		return nil, errors.New("server: node required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := opts.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, logger)
	}
	return &Server{
		node:      opts.Node,
		prices:    opts.Prices,
		events:    opts.Events,
		exportDir: opts.ExportDir,
		auth:      opts.Auth,
		limiter:   limiter,
		obs:       opts.Observability,
		cors:      opts.CORS,
		logger:    logger,
	}, nil
}

// Router returns the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if s.cors != nil {
		r.Use(middleware.CORS(*s.cors))
	}
	if s.obs != nil {
		r.Use(s.obs.Middleware)
	}
	if s.auth != nil {
		r.Use(s.auth.Middleware)
	}
	r.Get("/healthz", s.handleHealth)
	if s.obs != nil {
		r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	}

	r.Route("/v1", func(api chi.Router) {
		api.With(s.limiter.Middleware("views")).Get("/accounts/{addr}", s.handleBalance)

		api.Group(func(ledger chi.Router) {
			ledger.Use(s.limiter.Middleware("points"))
			ledger.Post("/points/{op}", s.handlePointsOp)
			ledger.Post("/baddebt/{op}", s.handleBadDebt)
		})

		api.Route("/partners", func(pr chi.Router) {
			pr.Use(s.limiter.Middleware("partner"))
			pr.Post("/", s.handleIssueCapability)
			pr.Get("/{addr}", s.handlePartner)
			pr.Post("/{addr}/pause", s.handleCapabilityPause)
			pr.Post("/{addr}/reset", s.handleResetQuota)
			pr.Post("/{addr}/collateral", s.handleAddCollateral)
			pr.Post("/{addr}/mint", s.handleMint)
			pr.Post("/{addr}/reinvest", s.handleReinvest)
			pr.Get("/{addr}/withdrawable", s.handleWithdrawable)
			pr.Post("/{addr}/withdraw", s.handleWithdraw)
			pr.Post("/{addr}/nft/release", s.handleReleaseNFT)
			pr.Post("/{addr}/withdrawal-pause", s.handleWithdrawalPause)
		})

		api.Route("/stakes", func(st chi.Router) {
			st.Use(s.limiter.Middleware("stake"))
			st.Post("/", s.handleOpenStake)
			st.Get("/{id}", s.handleStake)
			st.Post("/{id}/{action}", s.handleStakeAction)
		})
		api.Get("/owners/{addr}/stakes", s.handleOwnerStakes)

		api.Post("/prices", s.handlePriceUpdate)
		api.Get("/events", s.handleEvents)
		api.Post("/events/export", s.handleExport)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authority returns the verified caller or errMissingAuthority.
func authority(r *http.Request) (*nativecommon.Authority, error) {
	auth := middleware.AuthorityFromContext(r.Context())
	if auth == nil {
		return nil, errMissingAuthority
	}
	return auth, nil
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return badRequest{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseAddress(raw string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, badRequest{msg: "invalid address " + strconv.Quote(raw)}
	}
	return addr.Raw(), nil
}

func urlAddress(r *http.Request) ([20]byte, error) {
	return parseAddress(chi.URLParam(r, "addr"))
}

func parseStakeID(raw string) ([32]byte, error) {
	var id [32]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(decoded) != len(id) {
		return id, badRequest{msg: "invalid stake id " + strconv.Quote(raw)}
	}
	copy(id[:], decoded)
	return id, nil
}

func queryUint(r *http.Request, key string) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, badRequest{msg: key + " is required"}
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest{msg: "invalid " + key}
	}
	return v, nil
}
