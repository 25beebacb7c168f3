// Package storage provides SQLite-based persistence for upstream snapshots.
//
// Every successful fetch of a port manifest, README or upstream repository is
// written here. When GitHub later fails (network error, 5xx, rate limit) the
// metadata source serves the last snapshot instead, flagged as stale.
//
// # Database Schema
//
// Tables:
//   - ports: vcpkg.json manifest and portfile.cmake per port
//   - readmes: README text per port, zstd compressed
//   - repositories: upstream repository JSON keyed by owner/repo
//   - schema_version: applied migrations, compared as semantic versions
//
// Timestamps are stored as Unix milliseconds so both drivers read them back
// identically.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.vcpkg-mcp/snapshots.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.UpsertPort(ctx, &storage.PortSnapshot{
//	    Name:     "zlib",
//	    Version:  "1.3.1",
//	    Manifest: manifestJSON,
//	})
//
//	snap, err := db.GetPort(ctx, "zlib")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // never fetched
//	}
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3.
package storage
