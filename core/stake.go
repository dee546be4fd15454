package core

import (
	"pointsvault/core/state"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/stake"
)

// OpenStake deposits principal with the native backend and opens a position.
func (n *Node) OpenStake(auth *nativecommon.Authority, owner [20]byte, principal, duration, window uint64) (*stake.Position, error) {
	var p *stake.Position
	// The per-owner nonce lives next to the account, so the account lock
	// serialises position IDs.
	err := n.update("stake.open", []string{accountLock(owner)}, func(tx *state.Tx) error {
		var err error
		p, err = n.stakes.Open(tx, auth, owner, principal, duration, window)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ClaimStake pays accrued points to the position owner.
func (n *Node) ClaimStake(auth *nativecommon.Authority, id [32]byte, window uint64) (uint64, *stake.Position, error) {
	owner, err := n.stakeOwner(id)
	if err != nil {
		return 0, nil, err
	}
	var (
		paid uint64
		p    *stake.Position
	)
	err = n.update("stake.claim", []string{stakeLock(id), accountLock(owner)}, func(tx *state.Tx) error {
		var err error
		paid, p, err = n.stakes.Claim(tx, auth, id, window)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return paid, p, nil
}

// RedeemStake closes a mature position and returns the unlock ticket and the
// points claimed on the way out.
func (n *Node) RedeemStake(auth *nativecommon.Authority, id [32]byte, window uint64) (string, uint64, error) {
	owner, err := n.stakeOwner(id)
	if err != nil {
		return "", 0, err
	}
	var (
		ticket  string
		claimed uint64
	)
	err = n.update("stake.redeem", []string{stakeLock(id), accountLock(owner)}, func(tx *state.Tx) error {
		var err error
		ticket, claimed, err = n.stakes.Redeem(tx, auth, id, window)
		return err
	})
	return ticket, claimed, err
}

// ForfeitStake closes an expired position on behalf of the treasury.
func (n *Node) ForfeitStake(auth *nativecommon.Authority, id [32]byte, window uint64) (string, error) {
	owner, err := n.stakeOwner(id)
	if err != nil {
		return "", err
	}
	var ticket string
	err = n.update("stake.forfeit", []string{stakeLock(id), accountLock(owner)}, func(tx *state.Tx) error {
		var err error
		ticket, err = n.stakes.Forfeit(tx, auth, id, window)
		return err
	})
	return ticket, err
}

// EncumberStake pledges a position as loan collateral.
func (n *Node) EncumberStake(auth *nativecommon.Authority, id [32]byte, window uint64) (*stake.Position, error) {
	return n.stakeOp("stake.encumber", id, func(tx *state.Tx) (*stake.Position, error) {
		return n.stakes.Encumber(tx, auth, id, window)
	})
}

// ReleaseStake lifts a pledge.
func (n *Node) ReleaseStake(auth *nativecommon.Authority, id [32]byte) (*stake.Position, error) {
	return n.stakeOp("stake.release", id, func(tx *state.Tx) (*stake.Position, error) {
		return n.stakes.Release(tx, auth, id)
	})
}

// StakePosition returns a position and the points a claim at window would
// pay.
func (n *Node) StakePosition(id [32]byte, window uint64) (*stake.Position, uint64, error) {
	var (
		p       *stake.Position
		pending uint64
	)
	err := n.view(func(tx *state.Tx) error {
		var err error
		if p, err = n.stakes.Position(tx, id); err != nil {
			return err
		}
		pending, err = n.stakes.Pending(p, window)
		return err
	})
	return p, pending, err
}

// StakePositions lists the open positions of owner.
func (n *Node) StakePositions(owner [20]byte) ([]*stake.Position, error) {
	var out []*stake.Position
	err := n.view(func(tx *state.Tx) error {
		var err error
		out, err = tx.StakePositionsByOwner(owner)
		return err
	})
	return out, err
}

func (n *Node) stakeOwner(id [32]byte) ([20]byte, error) {
	var owner [20]byte
	err := n.view(func(tx *state.Tx) error {
		p, err := n.stakes.Position(tx, id)
		if err != nil {
			return err
		}
		owner = p.Owner
		return nil
	})
	return owner, err
}

func (n *Node) stakeOp(op string, id [32]byte, fn func(tx *state.Tx) (*stake.Position, error)) (*stake.Position, error) {
	var p *stake.Position
	err := n.update(op, []string{stakeLock(id)}, func(tx *state.Tx) error {
		var err error
		p, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
