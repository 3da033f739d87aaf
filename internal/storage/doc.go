// Package storage persists the tracker registry.
//
// Every driver performs a full rewrite on Save; there is no journal or
// incremental format. Drivers:
//   - "file": a single JSON document (temp file + rename)
//   - "sqlite": one table, rewritten inside a transaction
//   - "mongo": one document per group
package storage
