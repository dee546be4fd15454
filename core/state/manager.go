package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"pointsvault/storage"
)

// Manager provides transactional access to the points, partner and stake
// records persisted in a key-value database.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction. Reads see the committed database overlaid with
// the transaction's own writes.
func (m *Manager) Begin() *Tx {
	return &Tx{db: m.db, writes: make(map[string][]byte)}
}

// View runs fn against a transaction that is discarded afterwards.
func (m *Manager) View(fn func(*Tx) error) error {
	return fn(m.Begin())
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func readRLP(db storage.Database, key []byte, out interface{}) (bool, error) {
	data, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key, err)
	}
	return true, nil
}
