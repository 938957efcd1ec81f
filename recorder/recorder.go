package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Logger is the subset of logging.Logger used by Recorder. Satisfied by
// *logging.Logger; callers that don't want logging can leave it nil.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Recorder passively records group addresses and individual addresses seen
// on a KNX tunnel, building a picture of bus activity without requiring any
// manual commissioning data up front.
//
// Wire RecordTelegram into a knx.Callbacks.OnTelegram implementation (the
// decoded telegram carries the group address and, where available, the
// source individual address) and Recorder accumulates first/last-seen
// timestamps and message counts for both.
//
// Thread Safety: all methods are safe for concurrent use.
type Recorder struct {
	store  *Store
	logger Logger

	// Prepared statements for upserts (created once, reused).
	gaUpsertStmt     *sql.Stmt
	deviceUpsertStmt *sql.Stmt
	stmtMu           sync.Mutex

	// Shutdown coordination.
	closed bool
	mu     sync.RWMutex
}

// New creates a recorder backed by store. The schema must already have been
// applied via store.Migrate.
func New(store *Store) *Recorder {
	return &Recorder{store: store}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start prepares the recorder for use. Must be called before RecordTelegram.
func (r *Recorder) Start() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.gaUpsertStmt != nil {
		return nil // Already started
	}

	gaStmt, err := r.store.Prepare(`
		INSERT INTO group_addresses (address, first_seen, last_seen, message_count, has_response)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(address) DO UPDATE SET
			last_seen = excluded.last_seen,
			message_count = message_count + 1,
			has_response = MAX(has_response, excluded.has_response)
	`)
	if err != nil {
		return fmt.Errorf("preparing group address upsert statement: %w", err)
	}

	deviceStmt, err := r.store.Prepare(`
		INSERT INTO individual_addresses (address, first_seen, last_seen, message_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			last_seen = excluded.last_seen,
			message_count = message_count + 1
	`)
	if err != nil {
		gaStmt.Close() //nolint:errcheck // best effort cleanup on error path
		return fmt.Errorf("preparing individual address upsert statement: %w", err)
	}

	r.gaUpsertStmt = gaStmt
	r.deviceUpsertStmt = deviceStmt
	r.log("recorder started")
	return nil
}

// Stop closes the recorder's prepared statements and its underlying store.
// The store passed to New must not be used again after Stop returns.
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stmtMu.Lock()
	if r.gaUpsertStmt != nil {
		r.gaUpsertStmt.Close() //nolint:errcheck // close error is not actionable here
		r.gaUpsertStmt = nil
	}
	if r.deviceUpsertStmt != nil {
		r.deviceUpsertStmt.Close() //nolint:errcheck // close error is not actionable here
		r.deviceUpsertStmt = nil
	}
	r.stmtMu.Unlock()

	if err := r.store.Close(); err != nil {
		r.logError("closing recorder database", err)
	}

	r.log("recorder stopped")
}

// RecordTelegram records the source individual address and destination group
// address observed in a single inbound telegram.
//
// Parameters:
//   - source: sender's individual address in "A.L.D" form, or "" if unknown
//   - group: destination group address in "main/middle/sub" form
//   - isResponse: true if this telegram was a GroupValueResponse
func (r *Recorder) RecordTelegram(source, group string, isResponse bool) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	r.mu.RUnlock()

	r.stmtMu.Lock()
	gaStmt := r.gaUpsertStmt
	deviceStmt := r.deviceUpsertStmt
	r.stmtMu.Unlock()

	if gaStmt == nil || deviceStmt == nil {
		return // Not started
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if source != "" && source != "0.0.0" {
		if _, err := deviceStmt.Exec(source, now, now); err != nil {
			r.logError("recording individual address", err)
		}
	}

	hasResponse := 0
	if isResponse {
		hasResponse = 1
	}
	if _, err := gaStmt.Exec(group, now, now, hasResponse); err != nil {
		r.logError("recording group address", err)
	}
}

// GroupAddressCount returns the number of distinct group addresses seen.
func (r *Recorder) GroupAddressCount(ctx context.Context) (int, error) {
	var count int
	err := r.store.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_addresses`).Scan(&count)
	return count, err
}

// IndividualAddressCount returns the number of distinct source devices seen.
func (r *Recorder) IndividualAddressCount(ctx context.Context) (int, error) {
	var count int
	err := r.store.QueryRowContext(ctx, `SELECT COUNT(*) FROM individual_addresses`).Scan(&count)
	return count, err
}

// GroupAddresses returns the most recently active group addresses, most
// recent first.
func (r *Recorder) GroupAddresses(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.store.QueryContext(ctx, `
		SELECT address FROM group_addresses ORDER BY last_seen DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}

// log logs an info message if a logger is set.
func (r *Recorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error if a logger is set.
func (r *Recorder) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "error", err)
	}
}
