// Package storage defines the key-value contract the form engine persists
// through, modeled on the browser Web Storage API (getItem/setItem/removeItem
// plus key enumeration).
//
// Responsibilities:
//   - Store only reads and writes opaque string values under string keys.
//   - Record encoding, shadow entries and prefix maintenance stay in the
//     formstate package; a Store never interprets values.
//
// Implementations:
//
//	MemoryStore            in-process, optional byte quota (tests, examples, CLI dry runs)
//	sqlitestore.Store      durable, backed by modernc.org/sqlite
//	browser.Storage        window.localStorage / window.sessionStorage through go-rod
package storage
