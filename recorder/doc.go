// Package recorder provides an optional SQLite-backed activity log for a
// knxnetip tunnel.
//
// The core client never persists anything (see the knx package) — the host
// application decides whether telegrams are worth keeping. Recorder is a
// ready-made host-side collaborator: wire its RecordTelegram method into
// knx.Callbacks.OnTelegram and it passively builds up a table of group
// addresses and individual addresses seen on the bus, without requiring any
// manual commissioning data up front.
//
// # Database
//
//   - Store wraps a *sql.DB opened against the go-sqlite3 driver, with WAL
//     mode and a busy timeout tuned for a single-writer workload.
//   - Migrate applies the embedded schema migrations additively.
//
// Usage:
//
//	store, err := recorder.Open(recorder.Config{Path: "activity.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := store.Migrate(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	rec := recorder.New(store)
//	if err := rec.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Stop() // also closes store
package recorder
