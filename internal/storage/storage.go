package storage

import (
	"context"
	"time"
)

// Storage persists the last successful upstream response for each port so
// the server can answer when GitHub is unreachable or rate limited
type Storage interface {
	// Port operations
	UpsertPort(ctx context.Context, port *PortSnapshot) error
	GetPort(ctx context.Context, name string) (*PortSnapshot, error)

	// README operations
	UpsertReadme(ctx context.Context, readme *ReadmeSnapshot) error
	GetReadme(ctx context.Context, name string) (*ReadmeSnapshot, error)

	// Upstream repository operations
	UpsertRepository(ctx context.Context, repo *RepositorySnapshot) error
	GetRepository(ctx context.Context, fullName string) (*RepositorySnapshot, error)

	// Maintenance
	Prune(ctx context.Context, olderThan time.Time) (removed int, err error)
	GetStatus(ctx context.Context) (*Status, error)

	Close() error
}

// PortSnapshot is the raw manifest and portfile of a port
type PortSnapshot struct {
	Name      string
	Version   string
	Manifest  []byte // vcpkg.json as fetched
	Portfile  []byte // portfile.cmake as fetched, nil if unavailable
	FetchedAt time.Time
}

// ReadmeSnapshot is the raw README text of a port
type ReadmeSnapshot struct {
	Name      string
	Source    string // "upstream" or "usage"
	Content   string
	FetchedAt time.Time
}

// RepositorySnapshot is the raw upstream repository metadata
type RepositorySnapshot struct {
	FullName  string // owner/repo
	Data      []byte // GitHub repository JSON
	FetchedAt time.Time
}

// Status contains statistics about the snapshot store
type Status struct {
	Ports         int
	Readmes       int
	Repositories  int
	SchemaVersion string
	OldestFetch   time.Time // Zero when the store is empty
}
