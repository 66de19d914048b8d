// Package profile manages dashboard profiles and the gateway directories
// derived from them.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickclaw/quickclaw/internal/config"
)

// DefaultID is the id of the profile synthesized on first use.
const DefaultID = "default"

// ErrNotFound is returned for unknown profile ids.
var ErrNotFound = errors.New("profile not found")

// Profile is a named agent identity. Exactly one profile is active.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	Status     string    `json:"status"`
	Port       int       `json:"port"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// Store persists profiles as a JSON array.
type Store struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// List returns all profiles. An empty, missing or corrupt file yields the
// default profile, which is persisted.
func (s *Store) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Profile, error) {
	var list []Profile
	if config.ReadJSON(s.path, &list) && len(list) > 0 {
		normalizeActive(list)
		return list, nil
	}
	now := s.now().UTC()
	list = []Profile{{
		ID:         DefaultID,
		Name:       "Default",
		Active:     true,
		Status:     "running",
		Port:       3000,
		CreatedAt:  now,
		LastUsedAt: now,
	}}
	if err := config.WriteJSON(s.path, list); err != nil {
		return nil, fmt.Errorf("persist default profile: %w", err)
	}
	return list, nil
}

// normalizeActive leaves exactly one profile active: the first flagged one,
// else the default profile, else the first in the list. Hand edits can
// leave zero or several flags set.
func normalizeActive(list []Profile) {
	keep := -1
	for i := range list {
		if list[i].Active {
			keep = i
			break
		}
	}
	if keep < 0 {
		keep = 0
		for i := range list {
			if list[i].ID == DefaultID {
				keep = i
				break
			}
		}
	}
	for i := range list {
		list[i].Active = i == keep
	}
}

// Active returns the active profile.
func (s *Store) Active() (Profile, error) {
	list, err := s.List()
	if err != nil {
		return Profile{}, err
	}
	for _, p := range list {
		if p.Active {
			return p, nil
		}
	}
	return list[0], nil
}

// Get returns the profile with the given id.
func (s *Store) Get(id string) (Profile, error) {
	list, err := s.List()
	if err != nil {
		return Profile{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// SetActive marks id active and clears the flag on every other profile.
func (s *Store) SetActive(id string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return Profile{}, err
	}
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for i := range list {
		list[i].Active = i == idx
	}
	list[idx].LastUsedAt = s.now().UTC()
	if err := config.WriteJSON(s.path, list); err != nil {
		return Profile{}, err
	}
	return list[idx], nil
}

// Create adds an inactive profile with a fresh "p-" id.
func (s *Store) Create(name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, errors.New("profile name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return Profile{}, err
	}
	now := s.now().UTC()
	p := Profile{
		ID:         "p-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Name:       name,
		Status:     "stopped",
		Port:       3000,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	list = append(list, p)
	if err := config.WriteJSON(s.path, list); err != nil {
		return Profile{}, err
	}
	return p, nil
}
