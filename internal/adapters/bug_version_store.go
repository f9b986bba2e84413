package adapters

import (
	"sync"

	"registry-core/internal/entities"
	"registry-core/internal/ports"
)

// BugVersionStore keeps every loaded bug version table for the lifetime of
// the process, keyed by the bug-versions package version it came from.
type BugVersionStore struct {
	mu          sync.RWMutex
	bugVersions map[string]*entities.BugVersion
}

func NewBugVersionStore() *BugVersionStore {
	return &BugVersionStore{bugVersions: map[string]*entities.BugVersion{}}
}

func (s *BugVersionStore) GetBugVersion(version string) *entities.BugVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bugVersions[version]
}

func (s *BugVersionStore) SetBugVersion(bugVersion *entities.BugVersion, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bugVersions[version] = bugVersion
}

var _ ports.BugVersionStorePort = (*BugVersionStore)(nil)
