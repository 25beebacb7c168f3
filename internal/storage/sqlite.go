package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrNotFound is returned when a requested snapshot doesn't exist
	ErrNotFound = errors.New("not found")
)

// Shared zstd coders; EncodeAll and DecodeAll are safe for concurrent use
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Port operations

func (s *SQLiteStorage) UpsertPort(ctx context.Context, port *PortSnapshot) error {
	if port.Name == "" {
		return fmt.Errorf("port name is required")
	}
	if port.FetchedAt.IsZero() {
		port.FetchedAt = time.Now()
	}

	query := `
		INSERT INTO ports (name, version, manifest, portfile, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			manifest = excluded.manifest,
			portfile = excluded.portfile,
			fetched_at = excluded.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query,
		port.Name, port.Version, port.Manifest, port.Portfile, port.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert port: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetPort(ctx context.Context, name string) (*PortSnapshot, error) {
	query := `
		SELECT name, version, manifest, portfile, fetched_at
		FROM ports
		WHERE name = ?
	`
	var port PortSnapshot
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&port.Name, &port.Version, &port.Manifest, &port.Portfile, &fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	port.FetchedAt = time.UnixMilli(fetchedAt)
	return &port, nil
}

// README operations

func (s *SQLiteStorage) UpsertReadme(ctx context.Context, readme *ReadmeSnapshot) error {
	if readme.Name == "" {
		return fmt.Errorf("readme name is required")
	}
	if readme.FetchedAt.IsZero() {
		readme.FetchedAt = time.Now()
	}

	compressed := zstdEncoder.EncodeAll([]byte(readme.Content), nil)

	query := `
		INSERT INTO readmes (name, source, content, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			content = excluded.content,
			fetched_at = excluded.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query,
		readme.Name, readme.Source, compressed, readme.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert readme: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetReadme(ctx context.Context, name string) (*ReadmeSnapshot, error) {
	query := `
		SELECT name, source, content, fetched_at
		FROM readmes
		WHERE name = ?
	`
	var readme ReadmeSnapshot
	var compressed []byte
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&readme.Name, &readme.Source, &compressed, &fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	content, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress readme %s: %w", name, err)
	}
	readme.Content = string(content)
	readme.FetchedAt = time.UnixMilli(fetchedAt)
	return &readme, nil
}

// Repository operations

func (s *SQLiteStorage) UpsertRepository(ctx context.Context, repo *RepositorySnapshot) error {
	if repo.FullName == "" {
		return fmt.Errorf("repository name is required")
	}
	if repo.FetchedAt.IsZero() {
		repo.FetchedAt = time.Now()
	}

	query := `
		INSERT INTO repositories (full_name, data, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET
			data = excluded.data,
			fetched_at = excluded.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query, repo.FullName, repo.Data, repo.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert repository: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetRepository(ctx context.Context, fullName string) (*RepositorySnapshot, error) {
	query := `
		SELECT full_name, data, fetched_at
		FROM repositories
		WHERE full_name = ?
	`
	var repo RepositorySnapshot
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, query, fullName).Scan(&repo.FullName, &repo.Data, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	repo.FetchedAt = time.UnixMilli(fetchedAt)
	return &repo, nil
}

// Maintenance

// Prune deletes every snapshot fetched before olderThan in one transaction
func (s *SQLiteStorage) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := olderThan.UnixMilli()
	removed := 0
	for _, table := range []string{"ports", "readmes", "repositories"} {
		result, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE fetched_at < ?", cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removed, nil
}

// GetStatus returns snapshot counts and the schema version
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{}

	counts := []struct {
		table string
		dest  *int
	}{
		{"ports", &status.Ports},
		{"readmes", &status.Readmes},
		{"repositories", &status.Repositories},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	var oldest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(fetched_at) FROM (
			SELECT fetched_at FROM ports
			UNION ALL SELECT fetched_at FROM readmes
			UNION ALL SELECT fetched_at FROM repositories
		)`).Scan(&oldest)
	if err != nil {
		return nil, fmt.Errorf("failed to read oldest snapshot: %w", err)
	}
	if oldest.Valid {
		status.OldestFetch = time.UnixMilli(oldest.Int64)
	}

	version, err := schemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	return status, nil
}
