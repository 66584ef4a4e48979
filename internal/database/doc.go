// Package database provides SQLite storage for shelter media records.
//
// It handles storage and retrieval of:
//   - Media records (files, document links and video links) grouped by the
//     entity they are attached to (animal, person, waiting list and so on)
//   - Per-group preference flags (web, doc and video preferred)
//   - The audit log for signing
//
// The database uses WAL mode for concurrent readers and takes the write lock
// at BEGIN (_txlock=immediate), so every [Database.WithTx] callback sees a
// stable view of its group. Record updates carry the version they read and
// fail with [ErrConflict] when another writer got there first.
package database
