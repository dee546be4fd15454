package stake

import (
	"errors"
	"fmt"
	"testing"

	"pointsvault/core/events"
	"pointsvault/core/types"
	"pointsvault/native/accrual"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/points"
)

type mockState struct {
	accounts  map[[20]byte]*points.Account
	debts     map[[20]byte]uint64
	positions map[[32]byte]*Position
	nonces    map[[20]byte]uint64
	events    []*types.Event
	deferred  []func() error
}

func newMockState() *mockState {
	return &mockState{
		accounts:  make(map[[20]byte]*points.Account),
		debts:     make(map[[20]byte]uint64),
		positions: make(map[[32]byte]*Position),
		nonces:    make(map[[20]byte]uint64),
	}
}

func (m *mockState) GetPointAccount(addr [20]byte) (*points.Account, error) {
	return m.accounts[addr].Clone(), nil
}

func (m *mockState) PutPointAccount(addr [20]byte, account *points.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) GetBadDebt(addr [20]byte) (uint64, error) { return m.debts[addr], nil }

func (m *mockState) PutBadDebt(addr [20]byte, amount uint64) error {
	m.debts[addr] = amount
	return nil
}

func (m *mockState) DeleteBadDebt(addr [20]byte) error {
	delete(m.debts, addr)
	return nil
}

func (m *mockState) GetStakePosition(id [32]byte) (*Position, error) {
	return m.positions[id].Clone(), nil
}

func (m *mockState) PutStakePosition(p *Position) error {
	m.positions[p.ID] = p.Clone()
	return nil
}

func (m *mockState) DeleteStakePosition(id [32]byte) error {
	delete(m.positions, id)
	return nil
}

func (m *mockState) GetStakeNonce(owner [20]byte) (uint64, error) { return m.nonces[owner], nil }

func (m *mockState) PutStakeNonce(owner [20]byte, nonce uint64) error {
	m.nonces[owner] = nonce
	return nil
}

func (m *mockState) AppendEvent(evt *types.Event) { m.events = append(m.events, evt) }

func (m *mockState) AfterCommit(fn func() error) { m.deferred = append(m.deferred, fn) }

func (m *mockState) commit(t *testing.T) {
	t.Helper()
	for _, fn := range m.deferred {
		if err := fn(); err != nil {
			t.Fatalf("deferred: %v", err)
		}
	}
	m.deferred = nil
}

type mockBackend struct {
	deposits int
	unlocks  map[string][20]byte
	tickets  map[string]string
}

func (b *mockBackend) Deposit(owner [20]byte, amount uint64) (string, error) {
	b.deposits++
	return fmt.Sprintf("receipt-%d", b.deposits), nil
}

func (b *mockBackend) RequestUnlock(ticket, receipt string, recipient [20]byte) error {
	if b.unlocks == nil {
		b.unlocks = make(map[string][20]byte)
		b.tickets = make(map[string]string)
	}
	b.unlocks[receipt] = recipient
	b.tickets[receipt] = ticket
	return nil
}

var (
	owner     = [20]byte{0x01}
	ownerAuth = &nativecommon.Authority{Subject: owner, Role: nativecommon.RoleUser}
	admin     = &nativecommon.Authority{Subject: [20]byte{0xAD}, Role: nativecommon.RoleAdmin}
)

func newTestEngine() (*Engine, *mockState, *mockBackend) {
	backend := &mockBackend{}
	params := DefaultParams()
	params.GraceWindows = 5
	return NewEngine(params, points.NewLedger(), backend), newMockState(), backend
}

func TestOpenAssignsDistinctIDs(t *testing.T) {
	engine, st, _ := newTestEngine()
	first, err := engine.Open(st, ownerAuth, owner, 1_000_000_000, 10, 100)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := engine.Open(st, ownerAuth, owner, 1_000_000_000, 10, 100)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("position ids collide")
	}
	if first.ID != PositionID(owner, 0) || first.UnlockWindow != 110 || first.NativeReceiptRef != "receipt-1" {
		t.Fatalf("unexpected position: %+v", first)
	}
	if _, err := engine.Open(st, ownerAuth, owner, 0, 10, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := engine.Open(st, ownerAuth, owner, 1, 0, 100); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration, got %v", err)
	}
	if _, err := engine.Open(st, ownerAuth, [20]byte{0x02}, 1, 1, 100); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestClaimCreditsLedger(t *testing.T) {
	engine, st, _ := newTestEngine()
	p, err := engine.Open(st, ownerAuth, owner, 1_000_000_000, 10, 100)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	paid, p, err := engine.Claim(st, ownerAuth, p.ID, 107)
	if err != nil || paid != 700 {
		t.Fatalf("claim = %d, err %v", paid, err)
	}
	if p.LastClaimWindow != 107 || st.accounts[owner].Available != 700 {
		t.Fatalf("unexpected state after claim: %+v %+v", p, st.accounts[owner])
	}
	paid, _, err = engine.Claim(st, ownerAuth, p.ID, 107)
	if err != nil || paid != 0 {
		t.Fatalf("second claim = %d, err %v", paid, err)
	}
	// Accrual stops at the unlock window.
	paid, p, err = engine.Claim(st, ownerAuth, p.ID, 114)
	if err != nil || paid != 300 || p.LastClaimWindow != 110 {
		t.Fatalf("capped claim = %d (%+v), err %v", paid, p, err)
	}
	if _, _, err := engine.Claim(st, ownerAuth, p.ID, 116); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestAnnualizedSchedule(t *testing.T) {
	backend := &mockBackend{}
	params := DefaultParams()
	params.Schedule = accrual.Schedule{Mode: accrual.ModeAnnualized, AprBps: 500, WindowsPerYear: 365}
	engine := NewEngine(params, points.NewLedger(), backend)
	st := newMockState()
	p, err := engine.Open(st, ownerAuth, owner, 1_000_000_000, 365, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	paid, _, err := engine.Claim(st, ownerAuth, p.ID, 365)
	if err != nil || paid != 50_000_000 {
		t.Fatalf("annual claim = %d, err %v", paid, err)
	}
}

func TestRedeemLifecycle(t *testing.T) {
	engine, st, backend := newTestEngine()
	p, err := engine.Open(st, ownerAuth, owner, 1_000_000_000, 10, 100)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := engine.Redeem(st, ownerAuth, p.ID, 109); !errors.Is(err, ErrNotMature) {
		t.Fatalf("expected not mature, got %v", err)
	}
	if _, err := engine.Encumber(st, ownerAuth, p.ID, 109); err != nil {
		t.Fatalf("encumber: %v", err)
	}
	if _, _, err := engine.Redeem(st, ownerAuth, p.ID, 110); !errors.Is(err, ErrEncumbered) {
		t.Fatalf("expected encumbered, got %v", err)
	}
	if _, err := engine.Release(st, ownerAuth, p.ID); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("owner must not lift pledge, got %v", err)
	}
	if _, err := engine.Release(st, admin, p.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	ticket, claimed, err := engine.Redeem(st, ownerAuth, p.ID, 112)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if ticket == "" || claimed != 1_000 {
		t.Fatalf("unexpected redeem: %s %d", ticket, claimed)
	}
	if _, ok := backend.unlocks["receipt-1"]; ok {
		t.Fatalf("unlock requested before commit")
	}
	st.commit(t)
	if backend.unlocks["receipt-1"] != owner || backend.tickets["receipt-1"] != ticket {
		t.Fatalf("unexpected unlock: %x %s", backend.unlocks["receipt-1"], backend.tickets["receipt-1"])
	}
	if _, err := engine.Position(st, p.ID); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("position not destroyed: %v", err)
	}
	var redeemed int
	for _, evt := range st.events {
		if evt.Type == events.TypeStakeRedeemed {
			redeemed++
		}
	}
	if redeemed != 1 {
		t.Fatalf("expected redeemed event")
	}
}

func TestForfeitAfterGrace(t *testing.T) {
	engine, st, backend := newTestEngine()
	treasury := [20]byte{0x7E}
	engine.SetTreasury(treasury)
	p, err := engine.Open(st, ownerAuth, owner, 1_000_000_000, 10, 100)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.Forfeit(st, admin, p.ID, 115); !errors.Is(err, ErrNotForfeitable) {
		t.Fatalf("expected not forfeitable inside grace, got %v", err)
	}
	if _, _, err := engine.Redeem(st, ownerAuth, p.ID, 116); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired redeem, got %v", err)
	}
	if _, err := engine.Forfeit(st, ownerAuth, p.ID, 116); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	ticket, err := engine.Forfeit(st, admin, p.ID, 116)
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	st.commit(t)
	if backend.unlocks["receipt-1"] != treasury || backend.tickets["receipt-1"] != ticket {
		t.Fatalf("principal not sent to treasury")
	}
	if acc := st.accounts[owner]; acc != nil && acc.Available != 0 {
		t.Fatalf("forfeit credited owner: %+v", acc)
	}
}
