package core

import (
	"log/slog"

	"pointsvault/core/state"
	nativecommon "pointsvault/native/common"
	"pointsvault/native/partner"
)

// PartnerView bundles a capability with its collateral and withdrawal control.
type PartnerView struct {
	Capability *partner.Capability
	Collateral []partner.Collateral
	Control    *partner.WithdrawalControl
}

// Partner returns the capability of addr with its attached records.
func (n *Node) Partner(addr [20]byte) (*PartnerView, error) {
	view := new(PartnerView)
	err := n.view(func(tx *state.Tx) error {
		var err error
		if view.Capability, err = n.partners.Capability(tx, addr); err != nil {
			return err
		}
		if view.Collateral, err = n.partners.Collateral(tx, addr); err != nil {
			return err
		}
		view.Control, err = n.partners.WithdrawalControl(tx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// IssueCapability accredits a partner.
func (n *Node) IssueCapability(auth *nativecommon.Authority, addr [20]byte, window uint64) (*partner.Capability, error) {
	return n.partnerOp("partner.issue", addr, func(tx *state.Tx) (*partner.Capability, error) {
		return n.partners.IssueCapability(tx, auth, addr, window)
	})
}

// SetCapabilityPaused halts or resumes minting for a partner.
func (n *Node) SetCapabilityPaused(auth *nativecommon.Authority, addr [20]byte, paused bool) (*partner.Capability, error) {
	return n.partnerOp("partner.pause", addr, func(tx *state.Tx) (*partner.Capability, error) {
		return n.partners.SetCapabilityPaused(tx, auth, addr, paused)
	})
}

// AddCollateral locks collateral against a partner capability.
func (n *Node) AddCollateral(auth *nativecommon.Authority, addr [20]byte, dep partner.Deposit, window uint64) (*partner.Capability, error) {
	engine := n.partnersAt(window)
	return n.partnerOp("partner.collateral.add", addr, func(tx *state.Tx) (*partner.Capability, error) {
		c, _, err := engine.AddCollateral(tx, auth, addr, dep, window)
		return c, err
	})
}

// ResetQuota starts a new throttle window for the partner if due.
func (n *Node) ResetQuota(addr [20]byte, window uint64) (*partner.Capability, error) {
	return n.partnerOp("partner.quota.reset", addr, func(tx *state.Tx) (*partner.Capability, error) {
		return n.partners.ResetIfNewWindow(tx, addr, window)
	})
}

// MintPoints charges the partner's quotas and credits recipient in the same
// transaction.
func (n *Node) MintPoints(auth *nativecommon.Authority, addr, recipient [20]byte, amount, window uint64) (*partner.Capability, error) {
	var c *partner.Capability
	keys := []string{capabilityLock(addr), accountLock(recipient)}
	err := n.update("partner.mint", keys, func(tx *state.Tx) error {
		var err error
		if c, err = n.partners.RecordMint(tx, auth, addr, recipient, amount, window); err != nil {
			return err
		}
		_, err = n.ledger.Earn(tx, recipient, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("partner points minted",
		slog.String("partner", formatAddr(addr)),
		slog.String("recipient", formatAddr(recipient)),
		slog.Uint64("amount", amount),
		slog.Uint64("window", window))
	return c, nil
}

// ReinvestRevenue converts part of the partner's perk revenue into collateral.
// The converted points are spent from the partner's available balance in the
// same transaction.
func (n *Node) ReinvestRevenue(auth *nativecommon.Authority, addr [20]byte, revenuePoints, window uint64) (*partner.Capability, error) {
	engine := n.partnersAt(window)
	var (
		c        *partner.Capability
		consumed uint64
	)
	keys := []string{capabilityLock(addr), accountLock(addr)}
	err := n.update("partner.reinvest", keys, func(tx *state.Tx) error {
		var err error
		c, consumed, err = engine.ReinvestRevenue(tx, auth, addr, revenuePoints, func(points uint64) error {
			_, err := n.ledger.Spend(tx, addr, points)
			return err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("partner revenue reinvested",
		slog.String("partner", formatAddr(addr)),
		slog.Uint64("revenue", revenuePoints),
		slog.Uint64("spent", consumed),
		slog.Uint64("effectiveValue", c.CurrentEffectiveValue))
	return c, nil
}

// MaxWithdrawable reports how much of a record may be withdrawn at window.
func (n *Node) MaxWithdrawable(addr [20]byte, key partner.CollateralKey, window uint64) (uint64, error) {
	engine := n.partnersAt(window)
	var limit uint64
	err := n.view(func(tx *state.Tx) error {
		var err error
		limit, err = engine.MaxWithdrawable(tx, addr, key, window)
		return err
	})
	return limit, err
}

// WithdrawCollateral runs the withdrawal-security checks and releases
// fungible collateral to the partner.
func (n *Node) WithdrawCollateral(auth *nativecommon.Authority, addr [20]byte, key partner.CollateralKey, amount, window uint64) (*partner.Withdrawal, error) {
	engine := n.partnersAt(window)
	var res *partner.Withdrawal
	err := n.update("partner.withdraw", []string{capabilityLock(addr)}, func(tx *state.Tx) error {
		var err error
		res, err = engine.WithdrawPartial(tx, auth, addr, key, amount, window)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("partner collateral withdrawn",
		slog.String("partner", formatAddr(addr)),
		slog.String("collateral", key.String()),
		slog.Uint64("amount", amount),
		slog.String("ticket", res.Ticket))
	return res, nil
}

// ReleaseNFT returns NFT collateral to the partner.
func (n *Node) ReleaseNFT(auth *nativecommon.Authority, addr [20]byte, collection string, window uint64) (*partner.Withdrawal, error) {
	var res *partner.Withdrawal
	err := n.update("partner.nft.release", []string{capabilityLock(addr)}, func(tx *state.Tx) error {
		var err error
		res, err = n.partners.ReleaseNFT(tx, auth, addr, collection, window)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetWithdrawalPaused toggles the partner's emergency withdrawal pause.
func (n *Node) SetWithdrawalPaused(auth *nativecommon.Authority, addr [20]byte, paused bool) (*partner.WithdrawalControl, error) {
	var control *partner.WithdrawalControl
	err := n.update("partner.withdrawal.pause", []string{capabilityLock(addr)}, func(tx *state.Tx) error {
		var err error
		control, err = n.partners.SetWithdrawalPaused(tx, auth, addr, paused)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Warn("partner withdrawal pause toggled",
		slog.String("partner", formatAddr(addr)),
		slog.Bool("paused", paused))
	return control, nil
}

func (n *Node) partnerOp(op string, addr [20]byte, fn func(tx *state.Tx) (*partner.Capability, error)) (*partner.Capability, error) {
	var c *partner.Capability
	err := n.update(op, []string{capabilityLock(addr)}, func(tx *state.Tx) error {
		var err error
		c, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
