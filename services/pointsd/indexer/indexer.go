// Package indexer stores committed events in a SQL database and exports them
// as parquet.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pointsvault/core/events"
	"pointsvault/core/types"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1_000
)

var ErrNoBackend = errors.New("indexer: postgres dsn or sqlite path required")

// EventRecord is one committed event.
type EventRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Seq        uint64    `gorm:"uniqueIndex"`
	Type       string    `gorm:"column:event_type;index;size:64"`
	Subject    string    `gorm:"index;size:90"`
	Window     uint64    `gorm:"column:event_window;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// Options selects the backend. A DSN wins over a sqlite path.
type Options struct {
	PostgresDSN string
	SQLitePath  string
}

// Indexer is an events.Emitter that persists every event it receives.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	seq    atomic.Uint64
	nowFn  func() time.Time
}

var _ events.Emitter = (*Indexer)(nil)

// Open connects to the configured database and migrates the schema.
func Open(opts Options, log *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch {
	case opts.PostgresDSN != "":
		dialector = postgres.Open(opts.PostgresDSN)
	case opts.SQLitePath != "":
		dialector = sqlite.Open(opts.SQLitePath)
	default:
		return nil, ErrNoBackend
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	idx := &Indexer{db: db, logger: log, nowFn: time.Now}
	var last EventRecord
	if err := db.Order("seq desc").Limit(1).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	idx.seq.Store(last.Seq)
	return idx, nil
}

// Close releases the database connection.
func (i *Indexer) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Failures are logged, never returned: the
// state change has already committed.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || evt == nil {
		return
	}
	payload, ok := evt.(*types.Event)
	if !ok {
		payload = &types.Event{Type: evt.EventType()}
	}
	if err := i.Record(context.Background(), payload); err != nil {
		i.logger.Error("index event", slog.String("type", payload.Type), slog.Any("error", err))
	}
}

// Record stores one event.
func (i *Indexer) Record(ctx context.Context, evt *types.Event) error {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return err
	}
	window, _ := strconv.ParseUint(evt.Attribute("window"), 10, 64)
	rec := EventRecord{
		ID:         uuid.NewString(),
		Seq:        i.seq.Add(1),
		Type:       evt.Type,
		Subject:    subjectOf(evt),
		Window:     window,
		Attributes: string(attrs),
		CreatedAt:  i.nowFn().UTC(),
	}
	return i.db.WithContext(ctx).Create(&rec).Error
}

func subjectOf(evt *types.Event) string {
	for _, key := range []string{"partner", "owner", "account"} {
		if v := evt.Attribute(key); v != "" {
			return v
		}
	}
	return ""
}

// Filter narrows List.
type Filter struct {
	Type    string
	Subject string
	// AfterSeq pages forward from a previous result.
	AfterSeq uint64
	Limit    int
}

// List returns matching events in commit order.
func (i *Indexer) List(ctx context.Context, f Filter) ([]EventRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := i.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", f.AfterSeq)
	if f.Type != "" {
		query = query.Where("event_type = ?", f.Type)
	}
	if f.Subject != "" {
		query = query.Where("subject = ?", f.Subject)
	}
	var out []EventRecord
	if err := query.Order("seq asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Decode returns the stored attributes as a generic event.
func (r EventRecord) Decode() (*types.Event, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}
