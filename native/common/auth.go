package common

import "errors"

var (
	// ErrUnauthorized is returned when a privileged call is made without the
	// required capability.
	ErrUnauthorized = errors.New("unauthorized")
)

// Role identifies the kind of capability an authority carries.
type Role uint8

const (
	RoleUser Role = iota
	RolePartner
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RolePartner:
		return "partner"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// Authority is an identity verified outside the core. Its presence is trusted;
// its provenance is the caller's responsibility.
type Authority struct {
	Subject [20]byte
	Role    Role
}

// RequireAdmin ensures the authority carries the administrator role.
func RequireAdmin(auth *Authority) error {
	if auth == nil || auth.Role != RoleAdmin {
		return ErrUnauthorized
	}
	return nil
}

// RequireSubject ensures the authority acts for subject, either directly or as
// an administrator.
func RequireSubject(auth *Authority, subject [20]byte) error {
	if auth == nil {
		return ErrUnauthorized
	}
	if auth.Role == RoleAdmin {
		return nil
	}
	if auth.Subject != subject {
		return ErrUnauthorized
	}
	return nil
}

// RequirePartner ensures the authority is the partner itself (or an admin).
func RequirePartner(auth *Authority, partner [20]byte) error {
	if auth == nil {
		return ErrUnauthorized
	}
	if auth.Role == RoleAdmin {
		return nil
	}
	if auth.Role != RolePartner || auth.Subject != partner {
		return ErrUnauthorized
	}
	return nil
}

// Caller returns the subject for event attribution, or the zero address.
func (a *Authority) Caller() [20]byte {
	if a == nil {
		return [20]byte{}
	}
	return a.Subject
}
