// Package storage persists ofdcrypt transformation state in a BBolt
// database.
//
// Database structure uses three buckets:
//   - config: schema version and timestamps
//   - sessions: session id -> JSON Manifest (algorithm, ledger, wrapped keys)
//   - done: one nested bucket per source container, container path -> session id
//
// Done markers let an interrupted or repeated run skip files that were
// already encrypted. Manifests are what a later decrypt run needs to find
// ciphertext and unwrap the session key.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
