package stake

import (
	"github.com/google/uuid"

	"pointsvault/core/events"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/points"
)

const moduleName = "stake"

// Backend is the native staking system holding the principal. Receipts and
// tickets are opaque. RequestUnlock runs after the closing transaction
// commits, under a ticket the engine assigns, and must be idempotent per
// ticket.
type Backend interface {
	Deposit(owner [20]byte, amount uint64) (string, error)
	RequestUnlock(ticket, receipt string, recipient [20]byte) error
}

// State persists positions and shares the points ledger records so claims
// land in the same transaction.
type State interface {
	points.State
	GetStakePosition(id [32]byte) (*Position, error)
	PutStakePosition(p *Position) error
	DeleteStakePosition(id [32]byte) error
	GetStakeNonce(owner [20]byte) (uint64, error)
	PutStakeNonce(owner [20]byte, nonce uint64) error
	AfterCommit(fn func() error)
}

// Engine runs the stake position lifecycle and pays accrued points through
// the ledger.
type Engine struct {
	params   Params
	ledger   *points.Ledger
	backend  Backend
	treasury [20]byte
	pauses   nativecommon.PauseView
}

// NewEngine builds a lifecycle engine crediting through ledger.
func NewEngine(params Params, ledger *points.Ledger, backend Backend) *Engine {
	if params.MinDuration == 0 {
		params.MinDuration = DefaultMinDuration
	}
	if ledger == nil {
		ledger = points.NewLedger()
	}
	return &Engine{params: params, ledger: ledger, backend: backend}
}

// SetTreasury sets the recipient of forfeited principal. When unset the
// forfeiting administrator receives it.
func (e *Engine) SetTreasury(addr [20]byte) { e.treasury = addr }

// SetPauses wires the pause view consulted before mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) guard(st State) error {
	if st == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) load(st State, id [32]byte) (*Position, error) {
	p, err := st.GetStakePosition(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPositionNotFound
	}
	return p.Clone(), nil
}

// Open locks principal with the native backend for duration windows.
func (e *Engine) Open(st State, auth *nativecommon.Authority, owner [20]byte, principal, duration, window uint64) (*Position, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireSubject(auth, owner); err != nil {
		return nil, err
	}
	if principal == 0 {
		return nil, ErrInvalidAmount
	}
	if duration < e.params.MinDuration {
		return nil, ErrInvalidDuration
	}
	unlock, err := nativecommon.AddUint64(window, duration)
	if err != nil {
		return nil, ErrOverflow
	}
	if e.backend == nil {
		return nil, ErrBackendMissing
	}
	nonce, err := st.GetStakeNonce(owner)
	if err != nil {
		return nil, err
	}
	receipt, err := e.backend.Deposit(owner, principal)
	if err != nil {
		return nil, err
	}
	p := &Position{
		ID:               PositionID(owner, nonce),
		Owner:            owner,
		Principal:        principal,
		Duration:         duration,
		StartWindow:      window,
		UnlockWindow:     unlock,
		LastClaimWindow:  window,
		NativeReceiptRef: receipt,
	}
	if err := st.PutStakeNonce(owner, nonce+1); err != nil {
		return nil, err
	}
	if err := st.PutStakePosition(p); err != nil {
		return nil, err
	}
	st.AppendEvent(events.StakeOpened{
		ID:           p.ID,
		Owner:        owner,
		Principal:    principal,
		Duration:     duration,
		StartWindow:  window,
		UnlockWindow: unlock,
		Receipt:      receipt,
	}.Event())
	return p, nil
}

// Pending reports the points a claim at window would pay.
func (e *Engine) Pending(p *Position, window uint64) (uint64, error) {
	horizon := min(window, p.UnlockWindow)
	return e.params.Schedule.Accrued(p.Principal, p.LastClaimWindow, horizon)
}

func (e *Engine) claim(st State, p *Position, window uint64) (uint64, error) {
	amount, err := e.Pending(p, window)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}
	account, err := e.ledger.Earn(st, p.Owner, amount)
	if err != nil {
		return 0, err
	}
	p.LastClaimWindow = min(window, p.UnlockWindow)
	st.AppendEvent(events.StakeClaimed{
		ID:              p.ID,
		Owner:           p.Owner,
		Points:          amount,
		LastClaimWindow: p.LastClaimWindow,
		Available:       account.Available,
	}.Event())
	return amount, nil
}

// Claim pays accrued points to the owner. Accrual stops at the unlock window.
func (e *Engine) Claim(st State, auth *nativecommon.Authority, id [32]byte, window uint64) (uint64, *Position, error) {
	if err := e.guard(st); err != nil {
		return 0, nil, err
	}
	p, err := e.load(st, id)
	if err != nil {
		return 0, nil, err
	}
	if err := nativecommon.RequireSubject(auth, p.Owner); err != nil {
		return 0, nil, err
	}
	if p.Status(window, e.params.GraceWindows) == StatusExpired {
		return 0, nil, ErrExpired
	}
	amount, err := e.claim(st, p, window)
	if err != nil {
		return 0, nil, err
	}
	if amount > 0 {
		if err := st.PutStakePosition(p); err != nil {
			return 0, nil, err
		}
	}
	return amount, p, nil
}

// Redeem closes a mature, unencumbered position within the grace window.
// Outstanding accrual is claimed first.
func (e *Engine) Redeem(st State, auth *nativecommon.Authority, id [32]byte, window uint64) (string, uint64, error) {
	if err := e.guard(st); err != nil {
		return "", 0, err
	}
	p, err := e.load(st, id)
	if err != nil {
		return "", 0, err
	}
	if err := nativecommon.RequireSubject(auth, p.Owner); err != nil {
		return "", 0, err
	}
	switch p.Status(window, e.params.GraceWindows) {
	case StatusActive:
		return "", 0, ErrNotMature
	case StatusExpired:
		return "", 0, ErrExpired
	}
	if p.Encumbered {
		return "", 0, ErrEncumbered
	}
	if e.backend == nil {
		return "", 0, ErrBackendMissing
	}
	claimed, err := e.claim(st, p, window)
	if err != nil {
		return "", 0, err
	}
	ticket := e.unlock(st, p.NativeReceiptRef, p.Owner)
	if err := st.DeleteStakePosition(id); err != nil {
		return "", 0, err
	}
	st.AppendEvent(events.StakeClosed{
		Kind:      events.TypeStakeRedeemed,
		ID:        id,
		Owner:     p.Owner,
		Caller:    auth.Caller(),
		Principal: p.Principal,
		Ticket:    ticket,
		Window:    window,
	}.Event())
	return ticket, claimed, nil
}

// Forfeit lets an administrator close a position whose grace window has
// elapsed. Unclaimed accrual is dropped and the principal goes to the
// treasury.
func (e *Engine) Forfeit(st State, auth *nativecommon.Authority, id [32]byte, window uint64) (string, error) {
	if err := e.guard(st); err != nil {
		return "", err
	}
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return "", err
	}
	p, err := e.load(st, id)
	if err != nil {
		return "", err
	}
	if p.Status(window, e.params.GraceWindows) != StatusExpired {
		return "", ErrNotForfeitable
	}
	if p.Encumbered {
		return "", ErrEncumbered
	}
	if e.backend == nil {
		return "", ErrBackendMissing
	}
	recipient := e.treasury
	if recipient == ([20]byte{}) {
		recipient = auth.Caller()
	}
	ticket := e.unlock(st, p.NativeReceiptRef, recipient)
	if err := st.DeleteStakePosition(id); err != nil {
		return "", err
	}
	st.AppendEvent(events.StakeClosed{
		Kind:      events.TypeStakeForfeited,
		ID:        id,
		Owner:     p.Owner,
		Caller:    auth.Caller(),
		Principal: p.Principal,
		Ticket:    ticket,
		Window:    window,
	}.Event())
	return ticket, nil
}

// unlock assigns the payout ticket and asks the backend to release the
// principal once the close has committed.
func (e *Engine) unlock(st State, receipt string, recipient [20]byte) string {
	backend := e.backend
	ticket := uuid.NewString()
	st.AfterCommit(func() error {
		return backend.RequestUnlock(ticket, receipt, recipient)
	})
	return ticket
}

// Encumber pledges the position as loan collateral. The owner must consent.
func (e *Engine) Encumber(st State, auth *nativecommon.Authority, id [32]byte, window uint64) (*Position, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	p, err := e.load(st, id)
	if err != nil {
		return nil, err
	}
	if err := nativecommon.RequireSubject(auth, p.Owner); err != nil {
		return nil, err
	}
	if p.Encumbered {
		return nil, ErrEncumbered
	}
	if p.Status(window, e.params.GraceWindows) == StatusExpired {
		return nil, ErrExpired
	}
	p.Encumbered = true
	if err := e.putEncumbrance(st, p, events.TypeStakeEncumbered); err != nil {
		return nil, err
	}
	return p, nil
}

// Release lifts a pledge. Only an administrator acting for the lender may do
// so.
func (e *Engine) Release(st State, auth *nativecommon.Authority, id [32]byte) (*Position, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return nil, err
	}
	p, err := e.load(st, id)
	if err != nil {
		return nil, err
	}
	if !p.Encumbered {
		return nil, ErrNotEncumbered
	}
	p.Encumbered = false
	if err := e.putEncumbrance(st, p, events.TypeStakeReleased); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) putEncumbrance(st State, p *Position, kind string) error {
	if err := st.PutStakePosition(p); err != nil {
		return err
	}
	st.AppendEvent(events.StakeEncumbrance{Kind: kind, ID: p.ID, Owner: p.Owner}.Event())
	return nil
}

// Position returns a stored position.
func (e *Engine) Position(st State, id [32]byte) (*Position, error) {
	if st == nil {
		return nil, ErrNilState
	}
	return e.load(st, id)
}
