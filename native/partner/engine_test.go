package partner

import (
	"errors"
	"fmt"
	"testing"

	"pointsvault/core/events"
	"pointsvault/core/types"
	nativecommon "pointsvault/native/common"
)

type mockState struct {
	capabilities map[[20]byte]*Capability
	collateral   map[[20]byte]map[CollateralKey]Collateral
	controls     map[[20]byte]*WithdrawalControl
	events       []*types.Event
	deferred     []func() error
}

func newMockState() *mockState {
	return &mockState{
		capabilities: make(map[[20]byte]*Capability),
		collateral:   make(map[[20]byte]map[CollateralKey]Collateral),
		controls:     make(map[[20]byte]*WithdrawalControl),
	}
}

func (m *mockState) GetCapability(partner [20]byte) (*Capability, error) {
	return m.capabilities[partner].Clone(), nil
}

func (m *mockState) PutCapability(c *Capability) error {
	m.capabilities[c.Partner] = c.Clone()
	return nil
}

func (m *mockState) GetCollateral(partner [20]byte, key CollateralKey) (Collateral, error) {
	rec, ok := m.collateral[partner][key]
	if !ok {
		return nil, nil
	}
	return CloneCollateral(rec), nil
}

func (m *mockState) PutCollateral(partner [20]byte, rec Collateral) error {
	if m.collateral[partner] == nil {
		m.collateral[partner] = make(map[CollateralKey]Collateral)
	}
	m.collateral[partner][rec.Key()] = CloneCollateral(rec)
	return nil
}

func (m *mockState) DeleteCollateral(partner [20]byte, key CollateralKey) error {
	delete(m.collateral[partner], key)
	return nil
}

func (m *mockState) GetWithdrawalControl(partner [20]byte) (*WithdrawalControl, error) {
	return m.controls[partner].Clone(), nil
}

func (m *mockState) PutWithdrawalControl(partner [20]byte, control *WithdrawalControl) error {
	m.controls[partner] = control.Clone()
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

func (m *mockState) count(kind string) int {
	n := 0
	for _, evt := range m.events {
		if evt.Type == kind {
			n++
		}
	}
	return n
}

// fixedPrices quotes each asset at a whole number of stable units per unit.
type fixedPrices map[string]uint64

func (p fixedPrices) PriceInStableUnit(asset string, amount uint64) (uint64, error) {
	price, ok := p[asset]
	if !ok {
		return 0, fmt.Errorf("no price for %s", asset)
	}
	return nativecommon.MulDiv(amount, price, 1)
}

func (p fixedPrices) StableUnitToAsset(asset string, value uint64) (uint64, error) {
	price, ok := p[asset]
	if !ok || price == 0 {
		return 0, fmt.Errorf("no price for %s", asset)
	}
	return value / price, nil
}

type recordingCustodian struct {
	locked   map[CollateralKey]uint64
	released []uint64
	tickets  []string
}

func (r *recordingCustodian) Lock(_ [20]byte, key CollateralKey, amount uint64) (string, error) {
	if r.locked == nil {
		r.locked = make(map[CollateralKey]uint64)
	}
	r.locked[key] += amount
	return fmt.Sprintf("receipt-%s-%d", key, r.locked[key]), nil
}

func (r *recordingCustodian) Release(ticket string, _ [20]byte, key CollateralKey, amount uint64) error {
	r.locked[key] -= amount
	r.released = append(r.released, amount)
	r.tickets = append(r.tickets, ticket)
	return nil
}

// debitFrom returns a debit that draws on a fixed revenue balance.
func debitFrom(balance *uint64) func(uint64) error {
	return func(points uint64) error {
		if points > *balance {
			return errInsufficientRevenue
		}
		*balance -= points
		return nil
	}
}

var errInsufficientRevenue = errors.New("insufficient revenue")

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

var (
	admin       = &nativecommon.Authority{Subject: addr(0xAD), Role: nativecommon.RoleAdmin}
	partnerAddr = addr(0x01)
	partnerAuth = &nativecommon.Authority{Subject: partnerAddr, Role: nativecommon.RolePartner}
	stableKey   = CollateralKey{Class: ClassStable, Asset: "USDX"}
)

func newTestEngine(t *testing.T, params Params) (*Engine, *mockState, *recordingCustodian) {
	t.Helper()
	params.ReinvestAsset = "GEM"
	engine := NewEngine(params, fixedPrices{"GEM": 2})
	custodian := &recordingCustodian{}
	engine.SetCustodian(custodian)
	st := newMockState()
	if _, err := engine.IssueCapability(st, admin, partnerAddr, 10); err != nil {
		t.Fatalf("issue: %v", err)
	}
	return engine, st, custodian
}

func depositStable(t *testing.T, engine *Engine, st *mockState, amount uint64) *Capability {
	t.Helper()
	c, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassStable, Asset: "usdx", Amount: amount}, 10)
	if err != nil {
		t.Fatalf("add stable: %v", err)
	}
	return c
}

func TestStableCollateralDerivesQuotas(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	c := depositStable(t, engine, st, 500)
	if c.CurrentEffectiveValue != 500 {
		t.Fatalf("effective value = %d, want 500", c.CurrentEffectiveValue)
	}
	if c.TotalLifetimeQuota != 500_000 {
		t.Fatalf("lifetime quota = %d, want 500000", c.TotalLifetimeQuota)
	}
	if c.DailyThrottle != 15_000 {
		t.Fatalf("daily throttle = %d, want 15000", c.DailyThrottle)
	}
	if st.count(events.TypePartnerCollateralAdded) != 1 {
		t.Fatalf("expected collateral added event")
	}
}

func TestNFTFloorAppliesLTV(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	c, rec, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNFT, Asset: "punks", Amount: 1_000}, 10)
	if err != nil {
		t.Fatalf("add nft: %v", err)
	}
	if rec.EffectiveValue() != 700 || c.CurrentEffectiveValue != 700 {
		t.Fatalf("effective value = %d/%d, want 700", rec.EffectiveValue(), c.CurrentEffectiveValue)
	}
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNFT, Asset: "PUNKS", Amount: 900}, 10); !errors.Is(err, ErrDuplicateNFTCollateral) {
		t.Fatalf("expected duplicate nft error, got %v", err)
	}
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNFT, Asset: "apes", Amount: 0}, 10); !errors.Is(err, ErrInvalidFloorValue) {
		t.Fatalf("expected invalid floor error, got %v", err)
	}
}

func TestEffectiveValueSumsRecords(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 500)
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNative, Asset: "gem", Amount: 50}, 10); err != nil {
		t.Fatalf("add native: %v", err)
	}
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNFT, Asset: "punks", Amount: 1_000}, 10); err != nil {
		t.Fatalf("add nft: %v", err)
	}
	total, err := engine.TotalEffectiveValue(st, partnerAddr)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	c, _ := engine.Capability(st, partnerAddr)
	if total != 500+100+700 || c.CurrentEffectiveValue != total {
		t.Fatalf("total = %d, capability = %d", total, c.CurrentEffectiveValue)
	}
	records, err := engine.Collateral(st, partnerAddr)
	if err != nil || len(records) != 3 {
		t.Fatalf("records = %d, err %v", len(records), err)
	}
}

func TestCollateralRequiresPartnerAuthority(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	stranger := &nativecommon.Authority{Subject: addr(0x09), Role: nativecommon.RolePartner}
	if _, _, err := engine.AddCollateral(st, stranger, partnerAddr, Deposit{Class: ClassStable, Asset: "USDX", Amount: 1}, 10); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := engine.IssueCapability(st, partnerAuth, addr(0x02), 10); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized issue, got %v", err)
	}
	if _, err := engine.IssueCapability(st, admin, partnerAddr, 10); !errors.Is(err, ErrCapabilityExists) {
		t.Fatalf("expected capability exists, got %v", err)
	}
}

func TestDailyThrottleResetsNextWindow(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 500)
	recipient := addr(0x42)

	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, recipient, 15_000, 10); err != nil {
		t.Fatalf("mint full throttle: %v", err)
	}
	before, _ := engine.Capability(st, partnerAddr)
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, recipient, 1, 10); !errors.Is(err, ErrInsufficientDailyQuota) {
		t.Fatalf("expected daily quota error, got %v", err)
	}
	after, _ := engine.Capability(st, partnerAddr)
	if after.MintedToday != before.MintedToday || after.TotalMintedLifetime != before.TotalMintedLifetime {
		t.Fatalf("failed mint mutated capability: %+v", after)
	}
	c, err := engine.RecordMint(st, partnerAuth, partnerAddr, recipient, 1, 11)
	if err != nil {
		t.Fatalf("mint after reset: %v", err)
	}
	if c.MintedToday != 1 || c.TotalMintedLifetime != 15_001 || c.LastResetWindow != 11 {
		t.Fatalf("unexpected capability after reset: %+v", c)
	}
	if st.count(events.TypePartnerQuotaReset) != 1 {
		t.Fatalf("expected one reset event, got %d", st.count(events.TypePartnerQuotaReset))
	}
}

func TestResetIfNewWindowIdempotent(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 500)
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 100, 10); err != nil {
		t.Fatalf("mint: %v", err)
	}
	first, err := engine.ResetIfNewWindow(st, partnerAddr, 12)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	second, err := engine.ResetIfNewWindow(st, partnerAddr, 12)
	if err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if first.MintedToday != 0 || second.MintedToday != 0 || second.LastResetWindow != 12 {
		t.Fatalf("unexpected reset state: %+v %+v", first, second)
	}
	if st.count(events.TypePartnerQuotaReset) != 1 {
		t.Fatalf("reset emitted %d events", st.count(events.TypePartnerQuotaReset))
	}
}

func TestLifetimeQuotaAndPause(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 100)
	// 100 units of value: lifetime 100_000, daily 3_000.
	for w := uint64(10); w < 43; w++ {
		if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 3_000, w); err != nil {
			t.Fatalf("mint window %d: %v", w, err)
		}
	}
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 3_000, 43); !errors.Is(err, ErrLifetimeQuotaExceeded) {
		t.Fatalf("expected lifetime quota error, got %v", err)
	}
	if _, err := engine.SetCapabilityPaused(st, admin, partnerAddr, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 1, 44); !errors.Is(err, ErrCapabilityPaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
}

func TestQuotasNeverDropBelowConsumption(t *testing.T) {
	engine, st, _ := newTestEngine(t, Params{MinimumAgingWindows: 1})
	depositStable(t, engine, st, 500)
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 15_000, 10); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 485, 11); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	c, _ := engine.Capability(st, partnerAddr)
	if c.CurrentEffectiveValue != 15 {
		t.Fatalf("effective value = %d, want 15", c.CurrentEffectiveValue)
	}
	if c.TotalLifetimeQuota < c.TotalMintedLifetime || c.DailyThrottle < c.MintedToday {
		t.Fatalf("quota dropped below consumption: %+v", c)
	}
}

func TestFlashSequenceCannotWithdraw(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 500)
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 15_000, 10); err != nil {
		t.Fatalf("mint: %v", err)
	}
	limit, err := engine.MaxWithdrawable(st, partnerAddr, stableKey, 10)
	if err != nil || limit != 0 {
		t.Fatalf("max withdrawable = %d, err %v", limit, err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 1, 10); !errors.Is(err, ErrPointsTooYoung) {
		t.Fatalf("expected too young, got %v", err)
	}
	if st.count(events.TypePartnerWithdrawalInitialized) != 1 {
		t.Fatalf("control not attached on first attempt")
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 1, 16); !errors.Is(err, ErrPointsTooYoung) {
		t.Fatalf("expected too young one window early, got %v", err)
	}
}

func TestAgingGateIgnoresVaultValue(t *testing.T) {
	c := &Capability{HasMinted: true, FirstMintWindow: 100}
	control := &WithdrawalControl{FirstMintWindow: 100, MinimumAgingWindows: 7, MaxWithdrawalPerWindow: 1 << 40}
	for _, value := range []uint64{0, 1, 1_000_000, 1 << 60} {
		for w := uint64(95); w < 107; w++ {
			limit, err := CalculateMaxWithdrawable(c, value, control, w, "USDX", stableParity{})
			if err != nil || limit != 0 {
				t.Fatalf("value %d window %d: limit %d err %v", value, w, limit, err)
			}
		}
	}
	limit, err := CalculateMaxWithdrawable(c, 50, control, 107, "USDX", stableParity{})
	if err != nil || limit != 50 {
		t.Fatalf("aged limit = %d, err %v", limit, err)
	}
}

func TestWithdrawPartialKeepsBacking(t *testing.T) {
	engine, st, custodian := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 500)
	// The control is attached before the first mint and must still measure
	// aging from the mint.
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 1, 10); !errors.Is(err, ErrPointsTooYoung) {
		t.Fatalf("expected too young, got %v", err)
	}
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 15_000, 12); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if limit, err := engine.MaxWithdrawable(st, partnerAddr, stableKey, 17); err != nil || limit != 0 {
		t.Fatalf("aging not anchored on first mint: %d %v", limit, err)
	}

	limit, err := engine.MaxWithdrawable(st, partnerAddr, stableKey, 19)
	if err != nil || limit != 485 {
		t.Fatalf("max withdrawable = %d, err %v", limit, err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 486, 19); !errors.Is(err, ErrWithdrawalExceedsLimit) {
		t.Fatalf("expected exceeds limit, got %v", err)
	}
	res, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 485, 19)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Remaining == nil || res.Remaining.EffectiveValue() < res.Capability.RequiredBacking() {
		t.Fatalf("withdrawal left record under-backed: %+v", res.Remaining)
	}
	if res.Control.TotalWithdrawnLifetime != 485 || res.Control.WithdrawnThisWindow != 485 || res.Control.LastWithdrawalWindow != 19 {
		t.Fatalf("unexpected control: %+v", res.Control)
	}
	if res.Ticket == "" || len(custodian.released) != 0 {
		t.Fatalf("release ran before commit: %+v", custodian.released)
	}
	st.commit(t)
	if len(custodian.released) != 1 || custodian.released[0] != 485 || custodian.tickets[0] != res.Ticket {
		t.Fatalf("custodian not invoked: %+v %v", custodian.released, custodian.tickets)
	}
	if custodian.locked[stableKey] != 15 {
		t.Fatalf("custody holds %d", custodian.locked[stableKey])
	}
	if limit, _ := engine.MaxWithdrawable(st, partnerAddr, stableKey, 20); limit != 0 {
		t.Fatalf("fully backed record should not be withdrawable, got %d", limit)
	}
}

func TestWithdrawalWindowCap(t *testing.T) {
	engine, st, _ := newTestEngine(t, Params{MinimumAgingWindows: 0, MaxWithdrawalPerWindow: 100})
	depositStable(t, engine, st, 500)
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 60, 10); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 41, 10); !errors.Is(err, ErrWithdrawalExceedsLimit) {
		t.Fatalf("expected window cap, got %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 40, 10); err != nil {
		t.Fatalf("fill window: %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 1, 10); !errors.Is(err, ErrPointsTooYoung) {
		t.Fatalf("expected zero limit, got %v", err)
	}
	res, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 100, 11)
	if err != nil {
		t.Fatalf("next window: %v", err)
	}
	if res.Control.TotalWithdrawnLifetime != 200 || res.Capability.CurrentEffectiveValue != 300 {
		t.Fatalf("unexpected result: %+v %+v", res.Control, res.Capability)
	}
}

func TestWithdrawNativeUsesFreshPrice(t *testing.T) {
	engine, st, _ := newTestEngine(t, Params{MaxWithdrawalPerWindow: 1_000})
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNative, Asset: "GEM", Amount: 100}, 10); err != nil {
		t.Fatalf("add native: %v", err)
	}
	// 100 GEM at 2 = 200 value; 6_000 points need 6 of backing.
	if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 6_000, 10); err != nil {
		t.Fatalf("mint: %v", err)
	}
	limit, err := engine.MaxWithdrawable(st, partnerAddr, CollateralKey{Class: ClassNative, Asset: "GEM"}, 10)
	if err != nil || limit != 97 {
		t.Fatalf("limit = %d, err %v", limit, err)
	}
	res, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, CollateralKey{Class: ClassNative, Asset: "gem"}, 97, 10)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	vault := res.Remaining.(*NativeVault)
	if vault.LockedBalance != 3 || vault.Value != 6 || res.Capability.CurrentEffectiveValue != 6 {
		t.Fatalf("unexpected vault: %+v", vault)
	}
}

func TestWithdrawalPauseAndUnsupported(t *testing.T) {
	engine, st, _ := newTestEngine(t, Params{MinimumAgingWindows: 0})
	depositStable(t, engine, st, 500)
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, CollateralKey{Class: ClassNFT, Asset: "PUNKS"}, 1, 10); !errors.Is(err, ErrUnsupportedWithdrawal) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, CollateralKey{Class: ClassStable, Asset: "DAI"}, 1, 10); !errors.Is(err, ErrCollateralNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := engine.SetWithdrawalPaused(st, partnerAuth, partnerAddr, true); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("partner must not toggle pause, got %v", err)
	}
	if _, err := engine.SetWithdrawalPaused(st, admin, partnerAddr, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 1, 10); !errors.Is(err, ErrWithdrawalPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if _, err := engine.SetWithdrawalPaused(st, admin, partnerAddr, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := engine.WithdrawPartial(st, partnerAuth, partnerAddr, stableKey, 1, 10); err != nil {
		t.Fatalf("withdraw after resume: %v", err)
	}
	if st.count(events.TypePartnerWithdrawalPaused) != 1 || st.count(events.TypePartnerWithdrawalResumed) != 1 {
		t.Fatalf("missing toggle events")
	}
}

func TestReleaseNFT(t *testing.T) {
	engine, st, _ := newTestEngine(t, Params{MinimumAgingWindows: 2})
	depositStable(t, engine, st, 10)
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNFT, Asset: "punks", Amount: 1_000}, 10); err != nil {
		t.Fatalf("add nft: %v", err)
	}
	// Backing of 20 exceeds the stable record once the NFT is gone.
	for w := uint64(10); w < 12; w++ {
		if _, err := engine.RecordMint(st, partnerAuth, partnerAddr, addr(0x42), 10_000, w); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if _, err := engine.ReleaseNFT(st, partnerAuth, partnerAddr, "punks", 11); !errors.Is(err, ErrPointsTooYoung) {
		t.Fatalf("expected too young, got %v", err)
	}
	if _, err := engine.ReleaseNFT(st, partnerAuth, partnerAddr, "punks", 12); !errors.Is(err, ErrWithdrawalExceedsLimit) {
		t.Fatalf("expected exceeds limit, got %v", err)
	}
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassStable, Asset: "USDX", Amount: 10}, 12); err != nil {
		t.Fatalf("top up: %v", err)
	}
	res, err := engine.ReleaseNFT(st, partnerAuth, partnerAddr, "PUNKS", 12)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Capability.CurrentEffectiveValue != 20 {
		t.Fatalf("effective value = %d, want 20", res.Capability.CurrentEffectiveValue)
	}
	if rec, _ := st.GetCollateral(partnerAddr, CollateralKey{Class: ClassNFT, Asset: "PUNKS"}); rec != nil {
		t.Fatalf("nft record not deleted")
	}
}

func TestReinvestRevenue(t *testing.T) {
	engine, st, custodian := newTestEngine(t, DefaultParams())
	revenue := uint64(20_000)
	// 10% of 5_000 points = 500 points, below one stable unit.
	c, spent, err := engine.ReinvestRevenue(st, partnerAuth, partnerAddr, 5_000, debitFrom(&revenue))
	if err != nil {
		t.Fatalf("reinvest small: %v", err)
	}
	if c.CurrentEffectiveValue != 0 || spent != 0 || revenue != 20_000 || st.count(events.TypePartnerRevenueReinvested) != 1 {
		t.Fatalf("expected zero-delta reinvest, got %+v spent %d", c, spent)
	}
	gem := CollateralKey{Class: ClassNative, Asset: "GEM"}
	if rec, _ := st.GetCollateral(partnerAddr, gem); rec != nil {
		t.Fatalf("zero reinvest created a vault")
	}
	// 10% of 200_000 = 20_000 points = 20 units = 10 GEM at price 2.
	c, spent, err = engine.ReinvestRevenue(st, partnerAuth, partnerAddr, 200_000, debitFrom(&revenue))
	if err != nil {
		t.Fatalf("reinvest: %v", err)
	}
	if c.CurrentEffectiveValue != 20 || c.TotalLifetimeQuota != 20_000 {
		t.Fatalf("unexpected capability: %+v", c)
	}
	if spent != 20_000 || revenue != 0 || custodian.locked[gem] != 10 {
		t.Fatalf("spent %d, left %d, locked %d", spent, revenue, custodian.locked[gem])
	}
	last := st.events[len(st.events)-1]
	if last.Attributes["reinvestedPoints"] != "20000" || last.Attributes["receipt"] == "" {
		t.Fatalf("unexpected reinvest event: %+v", last.Attributes)
	}
}

func TestReinvestRevenueRequiresFunds(t *testing.T) {
	engine, st, custodian := newTestEngine(t, DefaultParams())
	revenue := uint64(19_999)
	if _, _, err := engine.ReinvestRevenue(st, partnerAuth, partnerAddr, 200_000, debitFrom(&revenue)); !errors.Is(err, errInsufficientRevenue) {
		t.Fatalf("expected insufficient revenue, got %v", err)
	}
	if len(custodian.locked) != 0 {
		t.Fatalf("unfunded reinvest reached custody: %v", custodian.locked)
	}
	if _, _, err := engine.ReinvestRevenue(st, partnerAuth, partnerAddr, 200_000, nil); !errors.Is(err, ErrDebitMissing) {
		t.Fatalf("expected missing debit, got %v", err)
	}
}

func TestCollateralEntersCustody(t *testing.T) {
	engine, st, custodian := newTestEngine(t, DefaultParams())
	depositStable(t, engine, st, 500)
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassNFT, Asset: "punks", Amount: 1_000}, 10); err != nil {
		t.Fatalf("add nft: %v", err)
	}
	if custodian.locked[stableKey] != 500 || custodian.locked[CollateralKey{Class: ClassNFT, Asset: "PUNKS"}] != 1 {
		t.Fatalf("custody = %v", custodian.locked)
	}
	for _, evt := range st.events {
		if evt.Type == events.TypePartnerCollateralAdded && evt.Attributes["receipt"] == "" {
			t.Fatalf("collateral event without receipt: %+v", evt.Attributes)
		}
	}

	bare := NewEngine(DefaultParams(), fixedPrices{"GEM": 2})
	other := newMockState()
	if _, err := bare.IssueCapability(other, admin, partnerAddr, 10); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := bare.AddCollateral(other, partnerAuth, partnerAddr, Deposit{Class: ClassStable, Asset: "USDX", Amount: 1}, 10); !errors.Is(err, ErrCustodianMissing) {
		t.Fatalf("expected missing custodian, got %v", err)
	}
	if c, _ := other.GetCapability(partnerAddr); c.CurrentEffectiveValue != 0 {
		t.Fatalf("collateral credited without custody")
	}
}

func TestModulePauseGuard(t *testing.T) {
	engine, st, _ := newTestEngine(t, DefaultParams())
	engine.SetPauses(nativecommon.NewStaticPauses([]string{"partner"}))
	if _, _, err := engine.AddCollateral(st, partnerAuth, partnerAddr, Deposit{Class: ClassStable, Asset: "USDX", Amount: 1}, 10); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
	if _, err := engine.RecordMint(nil, partnerAuth, partnerAddr, addr(0x42), 1, 10); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected nil state, got %v", err)
	}
}
