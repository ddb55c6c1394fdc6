// Package database provides the SQLite archive of finished crawls.
//
// This package implements the ResultDB, which stores:
//   - One row per run with its root, depth limit, timing and end state
//   - The visited URLs of every run in visit order
//   - The failed fetch attempts of every run
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// The archive is written only when the user asks for it (crawl --save) and
// read only by the history command.
package database
