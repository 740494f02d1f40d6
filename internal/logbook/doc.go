// Package logbook keeps a record of what the clock did: bells struck, watches
// announced and ticks cancelled as overdue.
//
// Drivers:
//   - "file": append-only JSON Lines
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
//
// The logbook is a record only. Nothing is replayed from it on restart.
package logbook
