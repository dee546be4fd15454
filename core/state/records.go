package state

import (
	"bytes"
	"fmt"

	"pointsvault/native/partner"
	"pointsvault/native/points"
	"pointsvault/native/stake"
)

// collateralRecord is the stored form of every collateral variant.
type collateralRecord struct {
	Class uint8
	Asset string
	Raw   uint64
	Value uint64
}

func encodeCollateral(rec partner.Collateral) (*collateralRecord, error) {
	switch r := rec.(type) {
	case *partner.NativeVault:
		return &collateralRecord{Class: uint8(partner.ClassNative), Asset: r.Asset, Raw: r.LockedBalance, Value: r.Value}, nil
	case *partner.StableAsset:
		return &collateralRecord{Class: uint8(partner.ClassStable), Asset: r.Asset, Raw: r.Amount}, nil
	case *partner.NFTFloor:
		return &collateralRecord{Class: uint8(partner.ClassNFT), Asset: r.Collection, Raw: r.EstimatedFloorValue}, nil
	default:
		return nil, fmt.Errorf("state: unsupported collateral %T", rec)
	}
}

func (r *collateralRecord) decode() (partner.Collateral, error) {
	switch partner.AssetClass(r.Class) {
	case partner.ClassNative:
		return &partner.NativeVault{Asset: r.Asset, LockedBalance: r.Raw, Value: r.Value}, nil
	case partner.ClassStable:
		return &partner.StableAsset{Asset: r.Asset, Amount: r.Raw}, nil
	case partner.ClassNFT:
		return &partner.NFTFloor{Collection: r.Asset, EstimatedFloorValue: r.Raw}, nil
	default:
		return nil, fmt.Errorf("%w: %d", partner.ErrUnknownCollateralClass, r.Class)
	}
}

// GetPointAccount implements points.State.
func (tx *Tx) GetPointAccount(addr [20]byte) (*points.Account, error) {
	account := new(points.Account)
	ok, err := tx.get(pointsAccountKey(addr), account)
	if err != nil || !ok {
		return nil, err
	}
	return account, nil
}

// PutPointAccount implements points.State.
func (tx *Tx) PutPointAccount(addr [20]byte, account *points.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	return tx.put(pointsAccountKey(addr), account)
}

// GetBadDebt implements points.State.
func (tx *Tx) GetBadDebt(addr [20]byte) (uint64, error) {
	var amount uint64
	if _, err := tx.get(badDebtKey(addr), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// PutBadDebt implements points.State.
func (tx *Tx) PutBadDebt(addr [20]byte, amount uint64) error {
	return tx.put(badDebtKey(addr), amount)
}

// DeleteBadDebt implements points.State.
func (tx *Tx) DeleteBadDebt(addr [20]byte) error {
	return tx.delete(badDebtKey(addr))
}

// GetCapability implements partner.State.
func (tx *Tx) GetCapability(addr [20]byte) (*partner.Capability, error) {
	c := new(partner.Capability)
	ok, err := tx.get(capabilityKey(addr), c)
	if err != nil || !ok {
		return nil, err
	}
	return c, nil
}

// PutCapability implements partner.State.
func (tx *Tx) PutCapability(c *partner.Capability) error {
	if c == nil {
		return fmt.Errorf("state: nil capability")
	}
	return tx.put(capabilityKey(c.Partner), c)
}

// GetCollateral implements partner.State.
func (tx *Tx) GetCollateral(addr [20]byte, key partner.CollateralKey) (partner.Collateral, error) {
	stored := new(collateralRecord)
	ok, err := tx.get(collateralKey(addr, key), stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.decode()
}

// PutCollateral implements partner.State.
func (tx *Tx) PutCollateral(addr [20]byte, rec partner.Collateral) error {
	stored, err := encodeCollateral(rec)
	if err != nil {
		return err
	}
	return tx.put(collateralKey(addr, rec.Key()), stored)
}

// DeleteCollateral implements partner.State.
func (tx *Tx) DeleteCollateral(addr [20]byte, key partner.CollateralKey) error {
	return tx.delete(collateralKey(addr, key))
}

// GetWithdrawalControl implements partner.State.
func (tx *Tx) GetWithdrawalControl(addr [20]byte) (*partner.WithdrawalControl, error) {
	control := new(partner.WithdrawalControl)
	ok, err := tx.get(controlKey(addr), control)
	if err != nil || !ok {
		return nil, err
	}
	return control, nil
}

// PutWithdrawalControl implements partner.State.
func (tx *Tx) PutWithdrawalControl(addr [20]byte, control *partner.WithdrawalControl) error {
	if control == nil {
		return fmt.Errorf("state: nil withdrawal control")
	}
	return tx.put(controlKey(addr), control)
}

// GetStakePosition implements stake.State.
func (tx *Tx) GetStakePosition(id [32]byte) (*stake.Position, error) {
	p := new(stake.Position)
	ok, err := tx.get(stakePositionKey(id), p)
	if err != nil || !ok {
		return nil, err
	}
	return p, nil
}

// PutStakePosition implements stake.State and maintains the owner index.
func (tx *Tx) PutStakePosition(p *stake.Position) error {
	if p == nil {
		return fmt.Errorf("state: nil stake position")
	}
	ids, err := tx.ownerPositions(p.Owner)
	if err != nil {
		return err
	}
	found := false
	for _, id := range ids {
		if bytes.Equal(id, p.ID[:]) {
			found = true
			break
		}
	}
	if !found {
		ids = append(ids, append([]byte(nil), p.ID[:]...))
		if err := tx.put(stakeOwnerIndexKey(p.Owner), ids); err != nil {
			return err
		}
	}
	return tx.put(stakePositionKey(p.ID), p)
}

// DeleteStakePosition implements stake.State.
func (tx *Tx) DeleteStakePosition(id [32]byte) error {
	p, err := tx.GetStakePosition(id)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	ids, err := tx.ownerPositions(p.Owner)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if !bytes.Equal(existing, id[:]) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		err = tx.delete(stakeOwnerIndexKey(p.Owner))
	} else {
		err = tx.put(stakeOwnerIndexKey(p.Owner), kept)
	}
	if err != nil {
		return err
	}
	return tx.delete(stakePositionKey(id))
}

// GetStakeNonce implements stake.State.
func (tx *Tx) GetStakeNonce(owner [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := tx.get(stakeNonceKey(owner), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// PutStakeNonce implements stake.State.
func (tx *Tx) PutStakeNonce(owner [20]byte, nonce uint64) error {
	return tx.put(stakeNonceKey(owner), nonce)
}

// StakePositionsByOwner lists the owner's open positions in opening order.
func (tx *Tx) StakePositionsByOwner(owner [20]byte) ([]*stake.Position, error) {
	ids, err := tx.ownerPositions(owner)
	if err != nil {
		return nil, err
	}
	out := make([]*stake.Position, 0, len(ids))
	for _, raw := range ids {
		var id [32]byte
		copy(id[:], raw)
		p, err := tx.GetStakePosition(id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tx *Tx) ownerPositions(owner [20]byte) ([][]byte, error) {
	var ids [][]byte
	if _, err := tx.get(stakeOwnerIndexKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

var (
	_ points.State  = (*Tx)(nil)
	_ partner.State = (*Tx)(nil)
	_ stake.State   = (*Tx)(nil)
)
