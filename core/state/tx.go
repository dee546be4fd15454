package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"pointsvault/core/types"
	"pointsvault/storage"
)

// Tx journals writes and events until Commit. A Tx is not safe for concurrent
// use; callers serialise access to the records it touches.
type Tx struct {
	db        storage.Database
	writes    map[string][]byte
	events    []*types.Event
	deferred  []func() error
	done      bool
	committed bool
}

var (
	// ErrTxClosed is returned when a committed transaction is reused.
	ErrTxClosed = errors.New("state: transaction closed")
	// ErrNotCommitted is returned when deferred work is settled before the
	// journal reached the database.
	ErrNotCommitted = errors.New("state: transaction not committed")
)

func (tx *Tx) get(key []byte, out interface{}) (bool, error) {
	if value, ok := tx.writes[string(key)]; ok {
		if value == nil {
			return false, nil
		}
		if err := rlp.DecodeBytes(value, out); err != nil {
			return false, fmt.Errorf("state: decode %x: %w", key, err)
		}
		return true, nil
	}
	return readRLP(tx.db, key, out)
}

func (tx *Tx) put(key []byte, value interface{}) error {
	if tx.done {
		return ErrTxClosed
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	tx.writes[string(key)] = encoded
	return nil
}

func (tx *Tx) delete(key []byte) error {
	if tx.done {
		return ErrTxClosed
	}
	tx.writes[string(key)] = nil
	return nil
}

// KVPut stores an RLP-encoded value under the keccak hash of key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return tx.put(kvKey(key), value)
}

// KVGet decodes the value stored under key into out and reports whether it
// existed.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	return tx.get(kvKey(key), out)
}

// AppendEvent buffers an event until the transaction commits.
func (tx *Tx) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	tx.events = append(tx.events, evt)
}

// Events returns the buffered events in emission order.
func (tx *Tx) Events() []*types.Event {
	out := make([]*types.Event, len(tx.events))
	copy(out, tx.events)
	return out
}

// AfterCommit queues fn to run by Settle once the journal is durable. Work
// queued on a discarded transaction never runs.
func (tx *Tx) AfterCommit(fn func() error) {
	if fn == nil || tx.done {
		return
	}
	tx.deferred = append(tx.deferred, fn)
}

// Settle runs the deferred work in queue order. Every function runs even when
// an earlier one fails; the failures are joined.
func (tx *Tx) Settle() error {
	if !tx.committed {
		return ErrNotCommitted
	}
	deferred := tx.deferred
	tx.deferred = nil
	var errs []error
	for _, fn := range deferred {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports the number of journaled writes.
func (tx *Tx) Pending() int { return len(tx.writes) }

// Commit writes the journal in a single atomic batch. Keys are written in
// sorted order so identical transactions produce identical batches.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxClosed
	}
	tx.done = true
	if len(tx.writes) == 0 {
		tx.committed = true
		return nil
	}
	keys := make([]string, 0, len(tx.writes))
	for key := range tx.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, key := range keys {
		if value := tx.writes[key]; value == nil {
			batch.Delete([]byte(key))
		} else {
			batch.Put([]byte(key), value)
		}
	}
	if err := tx.db.Write(batch); err != nil {
		return err
	}
	tx.committed = true
	return nil
}

// Discard drops the journal and the buffered events.
func (tx *Tx) Discard() {
	tx.done = true
	tx.writes = nil
	tx.events = nil
	tx.deferred = nil
}
