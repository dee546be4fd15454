package points

import (
	"math"

	"pointsvault/core/events"
	"pointsvault/core/types"
	nativecommon "pointsvault/native/common"
)

const moduleName = "points"

// State is the persistence surface the ledger needs. Accounts that were never
// credited are reported as nil.
type State interface {
	GetPointAccount(addr [20]byte) (*Account, error)
	PutPointAccount(addr [20]byte, account *Account) error
	GetBadDebt(addr [20]byte) (uint64, error)
	PutBadDebt(addr [20]byte, amount uint64) error
	DeleteBadDebt(addr [20]byte) error
	AppendEvent(evt *types.Event)
}

// Ledger applies balance mutations for user point accounts.
type Ledger struct {
	pauses nativecommon.PauseView
}

// NewLedger constructs a ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

func (l *Ledger) guard(st State) error {
	if st == nil {
		return ErrNilState
	}
	if l == nil {
		return nil
	}
	return nativecommon.Guard(l.pauses, moduleName)
}

func loadAccount(st State, addr [20]byte) (*Account, error) {
	account, err := st.GetPointAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &Account{}, nil
	}
	return account.Clone(), nil
}

func emit(st State, kind string, addr [20]byte, amount uint64, account *Account) {
	st.AppendEvent(events.PointsBalanceChanged{
		Kind:      kind,
		Account:   addr,
		Amount:    amount,
		Available: account.Available,
		Locked:    account.Locked,
	}.Event())
}

// Balance returns the account for addr, or a zero account if none exists.
func (l *Ledger) Balance(st State, addr [20]byte) (*Account, error) {
	if st == nil {
		return nil, ErrNilState
	}
	return loadAccount(st, addr)
}

// Earn credits amount to the available balance, creating the account on first
// credit. A zero amount is a no-op.
func (l *Ledger) Earn(st State, addr [20]byte, amount uint64) (*Account, error) {
	if err := l.guard(st); err != nil {
		return nil, err
	}
	account, err := loadAccount(st, addr)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return account, nil
	}
	if account.Available > math.MaxUint64-amount {
		return nil, ErrOverflow
	}
	account.Available += amount
	if err := st.PutPointAccount(addr, account); err != nil {
		return nil, err
	}
	emit(st, events.TypePointsEarned, addr, amount, account)
	return account, nil
}

// Spend debits amount from the available balance.
func (l *Ledger) Spend(st State, addr [20]byte, amount uint64) (*Account, error) {
	if err := l.guard(st); err != nil {
		return nil, err
	}
	account, err := loadAccount(st, addr)
	if err != nil {
		return nil, err
	}
	if account.Available < amount {
		return nil, ErrInsufficientAvailableBalance
	}
	if amount == 0 {
		return account, nil
	}
	account.Available -= amount
	if err := st.PutPointAccount(addr, account); err != nil {
		return nil, err
	}
	emit(st, events.TypePointsSpent, addr, amount, account)
	return account, nil
}

// Lock moves amount from available to locked. The sum of both buckets is
// unchanged.
func (l *Ledger) Lock(st State, addr [20]byte, amount uint64) (*Account, error) {
	if err := l.guard(st); err != nil {
		return nil, err
	}
	account, err := loadAccount(st, addr)
	if err != nil {
		return nil, err
	}
	if account.Available < amount {
		return nil, ErrInsufficientAvailableBalance
	}
	if account.Locked > math.MaxUint64-amount {
		return nil, ErrOverflow
	}
	if amount == 0 {
		return account, nil
	}
	account.Available -= amount
	account.Locked += amount
	if err := st.PutPointAccount(addr, account); err != nil {
		return nil, err
	}
	emit(st, events.TypePointsLocked, addr, amount, account)
	return account, nil
}

// Unlock moves amount from locked back to available.
func (l *Ledger) Unlock(st State, addr [20]byte, amount uint64) (*Account, error) {
	if err := l.guard(st); err != nil {
		return nil, err
	}
	account, err := loadAccount(st, addr)
	if err != nil {
		return nil, err
	}
	if account.Locked < amount {
		return nil, ErrInsufficientLockedBalance
	}
	// available+locked never exceeds MaxUint64 because lock checked the same sum.
	if account.Available > math.MaxUint64-amount {
		return nil, ErrOverflow
	}
	if amount == 0 {
		return account, nil
	}
	account.Locked -= amount
	account.Available += amount
	if err := st.PutPointAccount(addr, account); err != nil {
		return nil, err
	}
	emit(st, events.TypePointsUnlocked, addr, amount, account)
	return account, nil
}

// BadDebt returns the outstanding obligation for addr.
func (l *Ledger) BadDebt(st State, addr [20]byte) (uint64, error) {
	if st == nil {
		return 0, ErrNilState
	}
	return st.GetBadDebt(addr)
}

// AddBadDebt records an obligation that is not covered by the available
// balance.
func (l *Ledger) AddBadDebt(st State, addr [20]byte, amount uint64) (uint64, error) {
	if err := l.guard(st); err != nil {
		return 0, err
	}
	current, err := st.GetBadDebt(addr)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return current, nil
	}
	if current > math.MaxUint64-amount {
		return 0, ErrOverflow
	}
	next := current + amount
	if err := st.PutBadDebt(addr, next); err != nil {
		return 0, err
	}
	st.AppendEvent(events.BadDebtChanged{
		Kind:        events.TypeBadDebtAdded,
		Account:     addr,
		Amount:      amount,
		Outstanding: next,
	}.Event())
	return next, nil
}

// RemoveBadDebt records a repayment. The entry is deleted once the debt
// reaches zero.
func (l *Ledger) RemoveBadDebt(st State, addr [20]byte, amount uint64) (uint64, error) {
	if err := l.guard(st); err != nil {
		return 0, err
	}
	current, err := st.GetBadDebt(addr)
	if err != nil {
		return 0, err
	}
	if amount > current {
		return 0, ErrRepaymentExceedsDebt
	}
	if amount == 0 {
		return current, nil
	}
	next := current - amount
	if next == 0 {
		err = st.DeleteBadDebt(addr)
	} else {
		err = st.PutBadDebt(addr, next)
	}
	if err != nil {
		return 0, err
	}
	st.AppendEvent(events.BadDebtChanged{
		Kind:        events.TypeBadDebtRepaid,
		Account:     addr,
		Amount:      amount,
		Outstanding: next,
	}.Event())
	return next, nil
}
