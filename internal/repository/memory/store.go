// Package memory contains in-process implementations of repository interfaces,
// used for local runs and tests. All repositories built from one Store share
// a single lock, so multi-table operations are atomic.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

type collaboratorRow struct {
	role     model.Role
	joinedAt time.Time
}

// Store holds every table of the in-memory backend.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[uuid.UUID]*model.User
	sessions      map[string]*model.Session
	verifications map[string]*model.Verification
	captures      map[string]*model.Capture
	collaborators map[string]map[uuid.UUID]collaboratorRow
	roster        map[string][]model.RosterEntry
	syncs         map[string]*model.CaptureSession

	// insertion order, newest last; breaks created_at ties
	captureOrder []string
	syncOrder    []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		users:         map[uuid.UUID]*model.User{},
		sessions:      map[string]*model.Session{},
		verifications: map[string]*model.Verification{},
		captures:      map[string]*model.Capture{},
		collaborators: map[string]map[uuid.UUID]collaboratorRow{},
		roster:        map[string][]model.RosterEntry{},
		syncs:         map[string]*model.CaptureSession{},
	}
}

// Ping always succeeds; it lets the store act as a readiness probe.
func (s *Store) Ping(context.Context) error { return nil }
