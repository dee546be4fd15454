package points

// Account holds a user's point balances. Both buckets are unsigned so a
// negative balance cannot be represented.
type Account struct {
	Available uint64
	Locked    uint64
}

// Total returns available plus locked, saturating at the uint64 ceiling.
func (a *Account) Total() uint64 {
	if a == nil {
		return 0
	}
	if a.Available > ^uint64(0)-a.Locked {
		return ^uint64(0)
	}
	return a.Available + a.Locked
}

// Clone returns a copy safe for mutation.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
