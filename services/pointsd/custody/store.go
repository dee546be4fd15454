// Package custody is the service's stand-in for the native staking system and
// the collateral vault. It issues receipts for staked principal and locked
// collateral, tracks what each partner holds, and records a ticket for every
// payout the engines request. Everything lives in a bolt file so it survives
// restarts.
package custody

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"pointsvault/crypto"
	"pointsvault/native/partner"
	"pointsvault/native/stake"
)

var (
	bucketReceipts   = []byte("receipts")
	bucketTickets    = []byte("tickets")
	bucketCollateral = []byte("collateral")

	ErrNotFound            = errors.New("custody: record not found")
	ErrReceiptClosed       = errors.New("custody: receipt already unlocked")
	ErrReceiptKind         = errors.New("custody: receipt does not back a stake")
	ErrInvalidAmount       = errors.New("custody: amount must be positive")
	ErrInsufficientCustody = errors.New("custody: release exceeds held collateral")
	ErrTicketConflict      = errors.New("custody: ticket already issued for a different payout")
)

// ReceiptKind distinguishes what a receipt took into custody.
type ReceiptKind string

const (
	ReceiptStakePrincipal ReceiptKind = "stake_principal"
	ReceiptCollateralLock ReceiptKind = "collateral_lock"
)

// TicketKind distinguishes the payouts a ticket authorises.
type TicketKind string

const (
	TicketStakeUnlock       TicketKind = "stake_unlock"
	TicketCollateralRelease TicketKind = "collateral_release"
)

// Receipt records an asset taken into custody: staked principal or partner
// collateral.
type Receipt struct {
	ID         string      `json:"id"`
	Kind       ReceiptKind `json:"kind,omitempty"`
	Owner      string      `json:"owner"`
	Asset      string      `json:"asset,omitempty"`
	Amount     uint64      `json:"amount"`
	CreatedAt  time.Time   `json:"createdAt"`
	UnlockedAt time.Time   `json:"unlockedAt,omitempty"`
	Ticket     string      `json:"ticket,omitempty"`
}

// Open reports whether the receipt still backs a live position.
func (r Receipt) Open() bool { return r.Ticket == "" }

func (r Receipt) backsStake() bool {
	return r.Kind == "" || r.Kind == ReceiptStakePrincipal
}

// Ticket authorises one payout to Recipient.
type Ticket struct {
	ID        string     `json:"id"`
	Kind      TicketKind `json:"kind"`
	Recipient string     `json:"recipient"`
	Asset     string     `json:"asset,omitempty"`
	Amount    uint64     `json:"amount"`
	Receipt   string     `json:"receipt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (t Ticket) samePayout(other Ticket) bool {
	return t.Kind == other.Kind && t.Recipient == other.Recipient &&
		t.Asset == other.Asset && t.Amount == other.Amount && t.Receipt == other.Receipt
}

// Store persists receipts, tickets and the collateral held per partner.
type Store struct {
	db    *bolt.DB
	nowFn func() time.Time
}

var (
	_ stake.Backend     = (*Store)(nil)
	_ partner.Custodian = (*Store)(nil)
)

// Open initialises the bolt-backed store at path.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("custody: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketReceipts, bucketTickets, bucketCollateral} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, nowFn: time.Now}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Deposit implements stake.Backend.
func (s *Store) Deposit(owner [20]byte, amount uint64) (string, error) {
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	rec := Receipt{
		ID:        uuid.NewString(),
		Kind:      ReceiptStakePrincipal,
		Owner:     crypto.FromRaw(owner).String(),
		Amount:    amount,
		CreatedAt: s.nowFn().UTC(),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketReceipts), rec.ID, rec)
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// RequestUnlock implements stake.Backend. A receipt unlocks exactly once;
// repeating the call with the same ticket is a no-op.
func (s *Store) RequestUnlock(ticketID, receipt string, recipient [20]byte) error {
	if ticketID == "" {
		return fmt.Errorf("%w: empty ticket", ErrNotFound)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		var rec Receipt
		if err := getJSON(receipts, receipt, &rec); err != nil {
			return err
		}
		if !rec.backsStake() {
			return ErrReceiptKind
		}
		if !rec.Open() {
			if rec.Ticket == ticketID {
				return nil
			}
			return ErrReceiptClosed
		}
		now := s.nowFn().UTC()
		ticket := Ticket{
			ID:        ticketID,
			Kind:      TicketStakeUnlock,
			Recipient: crypto.FromRaw(recipient).String(),
			Amount:    rec.Amount,
			Receipt:   rec.ID,
			CreatedAt: now,
		}
		rec.Ticket = ticket.ID
		rec.UnlockedAt = now
		if err := putJSON(receipts, rec.ID, rec); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketTickets), ticket.ID, ticket)
	})
}

// Lock implements partner.Custodian. The receipt is issued and the partner's
// held balance raised in one bolt transaction.
func (s *Store) Lock(partnerAddr [20]byte, key partner.CollateralKey, amount uint64) (string, error) {
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	rec := Receipt{
		ID:        uuid.NewString(),
		Kind:      ReceiptCollateralLock,
		Owner:     crypto.FromRaw(partnerAddr).String(),
		Asset:     key.String(),
		Amount:    amount,
		CreatedAt: s.nowFn().UTC(),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		holdings := tx.Bucket(bucketCollateral)
		id := holdingKey(partnerAddr, key)
		held, err := getHolding(holdings, id)
		if err != nil {
			return err
		}
		if held+amount < held {
			return fmt.Errorf("custody: holding overflow for %s", id)
		}
		if err := putJSON(holdings, id, held+amount); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketReceipts), rec.ID, rec)
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Release implements partner.Custodian. The payout is bounded by what the
// partner has locked; repeating the call with the same ticket is a no-op.
func (s *Store) Release(ticketID string, partnerAddr [20]byte, key partner.CollateralKey, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if ticketID == "" {
		return fmt.Errorf("%w: empty ticket", ErrNotFound)
	}
	ticket := Ticket{
		ID:        ticketID,
		Kind:      TicketCollateralRelease,
		Recipient: crypto.FromRaw(partnerAddr).String(),
		Asset:     key.String(),
		Amount:    amount,
		CreatedAt: s.nowFn().UTC(),
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		tickets := tx.Bucket(bucketTickets)
		var existing Ticket
		switch err := getJSON(tickets, ticketID, &existing); {
		case err == nil:
			if existing.samePayout(ticket) {
				return nil
			}
			return ErrTicketConflict
		case !errors.Is(err, ErrNotFound):
			return err
		}
		holdings := tx.Bucket(bucketCollateral)
		id := holdingKey(partnerAddr, key)
		held, err := getHolding(holdings, id)
		if err != nil {
			return err
		}
		if held < amount {
			return fmt.Errorf("%w: %s holds %d, release %d", ErrInsufficientCustody, id, held, amount)
		}
		if held == amount {
			if err := holdings.Delete([]byte(id)); err != nil {
				return err
			}
		} else if err := putJSON(holdings, id, held-amount); err != nil {
			return err
		}
		return putJSON(tickets, ticket.ID, ticket)
	})
}

// Holding returns how much of key the partner currently has in custody.
func (s *Store) Holding(partnerAddr [20]byte, key partner.CollateralKey) (uint64, error) {
	var held uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		held, err = getHolding(tx.Bucket(bucketCollateral), holdingKey(partnerAddr, key))
		return err
	})
	return held, err
}

func holdingKey(partnerAddr [20]byte, key partner.CollateralKey) string {
	return crypto.FromRaw(partnerAddr).String() + "|" + key.String()
}

func getHolding(bucket *bolt.Bucket, id string) (uint64, error) {
	var held uint64
	if err := getJSON(bucket, id, &held); err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	return held, nil
}

// Receipt loads a receipt by ID.
func (s *Store) Receipt(id string) (Receipt, error) {
	var rec Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketReceipts), id, &rec)
	})
	return rec, err
}

// Ticket loads a ticket by ID.
func (s *Store) Ticket(id string) (Ticket, error) {
	var ticket Ticket
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketTickets), id, &ticket)
	})
	return ticket, err
}

// Tickets returns every ticket of the given kind, or all tickets when kind is
// empty.
func (s *Store) Tickets(kind TicketKind) ([]Ticket, error) {
	var out []Ticket
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTickets).ForEach(func(_, raw []byte) error {
			var ticket Ticket
			if err := json.Unmarshal(raw, &ticket); err != nil {
				return err
			}
			if kind == "" || ticket.Kind == kind {
				out = append(out, ticket)
			}
			return nil
		})
	})
	return out, err
}

func putJSON(bucket *bolt.Bucket, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), raw)
}

func getJSON(bucket *bolt.Bucket, key string, out any) error {
	raw := bucket.Get([]byte(key))
	if raw == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return json.Unmarshal(raw, out)
}
