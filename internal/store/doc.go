// Package store is the SQLite runner.Driver.
//
// Every write performed through a Store transaction is also appended to
// the write_journal table in the same transaction, so the journal holds
// exactly the writes of committed runs.
//
// # Journal Ordering
//
//   - Entries are ordered by seq, a logical clock, never by timestamps
//   - Payload and scope are stored as canonical JSON (sorted keys, NFC)
//   - Each payload carries its ir.Fingerprint; replay rejects mismatches
//   - A committed run's entries can be replayed onto any runner.Tx
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All databases named by schema definitions map onto the one SQLite file;
// the journal still records the database name of each write.
package store
