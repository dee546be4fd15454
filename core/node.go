package core

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pointsvault/core/events"
	"pointsvault/core/pricing"
	"pointsvault/core/state"
	"pointsvault/core/types"
	"pointsvault/crypto"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/partner"
	"pointsvault/native/points"
	"pointsvault/native/stake"
	"pointsvault/storage"
)

var (
	ErrNilDatabase = errors.New("core: database not configured")
)

// Options configures the engines wired into a node.
type Options struct {
	Partner  partner.Params
	Stake    stake.Params
	Treasury [20]byte
	Pauses   nativecommon.PauseView

	Prices       partner.PriceService
	Custodian    partner.Custodian
	StakeBackend stake.Backend
	Emitter      events.Emitter
	Logger       *slog.Logger
	Observer     OperationObserver
	// AllowMigrate tolerates an on-disk schema version mismatch.
	AllowMigrate bool
}

// OperationObserver records the latency and outcome of every mutating
// operation.
type OperationObserver interface {
	Observe(op string, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) Observe(string, time.Duration, error) {}

// windowedPrices is implemented by price services that judge quote freshness
// against the caller's window.
type windowedPrices interface {
	At(window uint64) *pricing.View
}

// Node is the central controller, wiring the ledger, partner and stake engines
// to persistent state. Every mutating call runs as one transaction: writes are
// journaled, committed in a single batch, and events are published only after
// the commit succeeds.
type Node struct {
	db       storage.Database
	state    *state.Manager
	ledger   *points.Ledger
	partners *partner.Engine
	stakes   *stake.Engine
	prices   partner.PriceService
	emitter  events.Emitter
	logger   *slog.Logger
	observer OperationObserver
	locks    *keyLocks
}

// NewNode opens the state at db and builds the engines.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	manager := state.NewManager(db)
	if err := manager.EnsureStateVersion(opts.AllowMigrate); err != nil {
		return nil, err
	}
	if err := opts.Stake.Schedule.Validate(); err != nil {
		return nil, err
	}

	ledger := points.NewLedger()
	ledger.SetPauses(opts.Pauses)

	partners := partner.NewEngine(opts.Partner, opts.Prices)
	partners.SetCustodian(opts.Custodian)
	partners.SetPauses(opts.Pauses)

	stakes := stake.NewEngine(opts.Stake, ledger, opts.StakeBackend)
	stakes.SetTreasury(opts.Treasury)
	stakes.SetPauses(opts.Pauses)

	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Node{
		db:       db,
		state:    manager,
		ledger:   ledger,
		partners: partners,
		stakes:   stakes,
		prices:   opts.Prices,
		emitter:  emitter,
		logger:   logger,
		observer: observer,
		locks:    newKeyLocks(),
	}, nil
}

// PartnerParams returns the active partner parameters.
func (n *Node) PartnerParams() partner.Params { return n.partners.Params() }

// StakeParams returns the active stake parameters.
func (n *Node) StakeParams() stake.Params { return n.stakes.Params() }

func accountLock(addr [20]byte) string { return "account/" + hex.EncodeToString(addr[:]) }

func capabilityLock(addr [20]byte) string { return "partner/" + hex.EncodeToString(addr[:]) }

func stakeLock(id [32]byte) string { return "stake/" + hex.EncodeToString(id[:]) }

func formatAddr(addr [20]byte) string { return crypto.FromRaw(addr).String() }

// partnersAt returns the partner engine pricing as seen from window. Nothing
// shared is mutated, so any caller may pass any window.
func (n *Node) partnersAt(window uint64) *partner.Engine {
	if feed, ok := n.prices.(windowedPrices); ok && window > 0 {
		return n.partners.WithPrices(feed.At(window))
	}
	return n.partners
}

// update runs fn in a transaction holding the given record locks. Custody
// transfers the engines deferred run once the commit succeeded; a failure
// there leaves committed state in place and is logged for replay.
func (n *Node) update(op string, keys []string, fn func(tx *state.Tx) error) (err error) {
	start := time.Now()
	defer func() { n.observer.Observe(op, time.Since(start), err) }()

	release := n.locks.acquire(keys...)
	defer release()

	tx := n.state.Begin()
	if err = fn(tx); err != nil {
		tx.Discard()
		n.logger.Debug("operation rejected", slog.String("op", op), slog.Any("error", err))
		return err
	}
	if err = tx.Commit(); err != nil {
		n.logger.Error("commit failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	n.publish(tx.Events())
	if serr := tx.Settle(); serr != nil {
		n.logger.Error("custody settlement failed", slog.String("op", op), slog.Any("error", serr))
	}
	return nil
}

// view runs fn against uncommitted state without taking locks.
func (n *Node) view(fn func(tx *state.Tx) error) error {
	return n.state.View(fn)
}

func (n *Node) publish(evts []*types.Event) {
	for _, evt := range evts {
		n.emitter.Emit(evt)
	}
}

// --- Points ledger ---

// Balance returns the account and its outstanding bad debt.
func (n *Node) Balance(addr [20]byte) (*points.Account, uint64, error) {
	var (
		account *points.Account
		debt    uint64
	)
	err := n.view(func(tx *state.Tx) error {
		var err error
		if account, err = n.ledger.Balance(tx, addr); err != nil {
			return err
		}
		debt, err = n.ledger.BadDebt(tx, addr)
		return err
	})
	return account, debt, err
}

// Earn credits points to addr. Only administrators mint directly.
func (n *Node) Earn(auth *nativecommon.Authority, addr [20]byte, amount uint64) (*points.Account, error) {
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return nil, err
	}
	return n.ledgerOp("points.earn", addr, func(tx *state.Tx) (*points.Account, error) {
		return n.ledger.Earn(tx, addr, amount)
	})
}

// Spend debits available points on behalf of the account holder.
func (n *Node) Spend(auth *nativecommon.Authority, addr [20]byte, amount uint64) (*points.Account, error) {
	if err := nativecommon.RequireSubject(auth, addr); err != nil {
		return nil, err
	}
	return n.ledgerOp("points.spend", addr, func(tx *state.Tx) (*points.Account, error) {
		return n.ledger.Spend(tx, addr, amount)
	})
}

// Lock moves available points into the locked bucket.
func (n *Node) Lock(auth *nativecommon.Authority, addr [20]byte, amount uint64) (*points.Account, error) {
	if err := nativecommon.RequireSubject(auth, addr); err != nil {
		return nil, err
	}
	return n.ledgerOp("points.lock", addr, func(tx *state.Tx) (*points.Account, error) {
		return n.ledger.Lock(tx, addr, amount)
	})
}

// Unlock returns locked points to the available bucket.
func (n *Node) Unlock(auth *nativecommon.Authority, addr [20]byte, amount uint64) (*points.Account, error) {
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return nil, err
	}
	return n.ledgerOp("points.unlock", addr, func(tx *state.Tx) (*points.Account, error) {
		return n.ledger.Unlock(tx, addr, amount)
	})
}

func (n *Node) ledgerOp(op string, addr [20]byte, fn func(tx *state.Tx) (*points.Account, error)) (*points.Account, error) {
	var account *points.Account
	err := n.update(op, []string{accountLock(addr)}, func(tx *state.Tx) error {
		var err error
		account, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// AddBadDebt records an obligation against addr.
func (n *Node) AddBadDebt(auth *nativecommon.Authority, addr [20]byte, amount uint64) (uint64, error) {
	return n.badDebtOp(auth, "points.badDebt.add", addr, func(tx *state.Tx) (uint64, error) {
		return n.ledger.AddBadDebt(tx, addr, amount)
	})
}

// RemoveBadDebt records a repayment against addr.
func (n *Node) RemoveBadDebt(auth *nativecommon.Authority, addr [20]byte, amount uint64) (uint64, error) {
	return n.badDebtOp(auth, "points.badDebt.remove", addr, func(tx *state.Tx) (uint64, error) {
		return n.ledger.RemoveBadDebt(tx, addr, amount)
	})
}

func (n *Node) badDebtOp(auth *nativecommon.Authority, op string, addr [20]byte, fn func(tx *state.Tx) (uint64, error)) (uint64, error) {
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return 0, err
	}
	var outstanding uint64
	err := n.update(op, []string{accountLock(addr)}, func(tx *state.Tx) error {
		var err error
		outstanding, err = fn(tx)
		return err
	})
	return outstanding, err
}
