// Package store provides the SQLite run ledger of the Phen2Gene adapter.
//
// The ledger records what a benchmark run did:
//   - Runs: one row per CLI invocation, with status and error
//   - Batches: prepared batch files, keyed by their content digest
//   - Executions: per-command exit codes of a dispatch
//   - Gene results: the ranked, standardized results of every sample
//
// Rows of one run are always read back in insertion order: executions by
// command index, gene results by rank position.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
