// Package localstore is the durability backstop of the sync engine: a
// synchronous, always-available store over three logical slots. Every
// mutating sync operation writes here first, before any remote call, so a
// remote outage never loses a write visible to this device.
package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/models"
)

// state is the on-disk shape. The three slots mirror the logical keys the
// sync engine reads and writes: the single current-user slot (not keyed by
// user id; switching accounts overwrites it), the saved-itineraries list
// most-recently-saved first, and the community snapshot.
type state struct {
	CurrentUser          *models.UserProfile `json:"currentUser,omitempty"`
	SavedItineraries     []models.Itinerary  `json:"savedItineraries"`
	CommunityItineraries []models.Itinerary  `json:"communityItineraries"`
}

// Store persists the three slots to a single JSON file. All writes are
// whole-value replacement; reads never fail. Unparsable or missing content
// is treated as empty.
type Store struct {
	mu     sync.RWMutex
	path   string
	st     state
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Local store unreadable, starting empty", zap.Error(err))
		}
		return
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("Local store corrupt, starting empty", zap.Error(err))
		return
	}
	s.st = st
}

// flush writes the whole state atomically. Local persistence is treated as
// infallible by callers; an I/O error degrades to in-memory-only and is
// logged, never returned.
func (s *Store) flush() {
	data, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal local store", zap.Error(err))
		return
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil && filepath.Dir(s.path) != "." {
		s.logger.Error("Failed to create local store directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.logger.Error("Failed to write local store", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error("Failed to replace local store", zap.Error(err))
	}
}

// GetCurrentUser returns the cached profile, or nil if the slot is unset.
func (s *Store) GetCurrentUser() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.CurrentUser == nil {
		return nil
	}
	u := *s.st.CurrentUser
	return &u
}

// SetCurrentUser replaces the current-user slot.
func (s *Store) SetCurrentUser(u models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.CurrentUser = &u
	s.flush()
}

// GetSavedItineraries returns the saved list, most-recently-saved first.
// Never fails; returns an empty slice when unset.
func (s *Store) GetSavedItineraries() []models.Itinerary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Itinerary, len(s.st.SavedItineraries))
	copy(out, s.st.SavedItineraries)
	return out
}

// SetSavedItineraries replaces the whole saved list.
func (s *Store) SetSavedItineraries(list []models.Itinerary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.SavedItineraries = append([]models.Itinerary(nil), list...)
	s.flush()
}

// SaveItinerary replaces an existing entry by id or prepends a new one, so
// the list stays ordered most-recently-saved first.
func (s *Store) SaveItinerary(it models.Itinerary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]models.Itinerary, 0, len(s.st.SavedItineraries)+1)
	list = append(list, it)
	for _, existing := range s.st.SavedItineraries {
		if existing.ID != it.ID {
			list = append(list, existing)
		}
	}
	s.st.SavedItineraries = list
	s.flush()
	s.logger.Debug("Local store saved itinerary",
		zap.String("id", it.ID),
		zap.Int("saved_count", len(list)),
	)
}

// GetCommunityItineraries returns the community snapshot.
func (s *Store) GetCommunityItineraries() []models.Itinerary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Itinerary, len(s.st.CommunityItineraries))
	copy(out, s.st.CommunityItineraries)
	return out
}

// SetCommunityItineraries replaces the community snapshot.
func (s *Store) SetCommunityItineraries(list []models.Itinerary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.CommunityItineraries = append([]models.Itinerary(nil), list...)
	s.flush()
}

// PrependCommunityItinerary puts the entry at the head of the community
// snapshot, replacing any existing entry with the same id. This is the
// optimistic local echo for publish: the publishing user sees their entry
// immediately even if the remote leg is slow or down.
func (s *Store) PrependCommunityItinerary(it models.Itinerary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]models.Itinerary, 0, len(s.st.CommunityItineraries)+1)
	list = append(list, it)
	for _, existing := range s.st.CommunityItineraries {
		if existing.ID != it.ID {
			list = append(list, existing)
		}
	}
	s.st.CommunityItineraries = list
	s.flush()
}

// Clear empties the user and saved-itineraries slots. The community snapshot
// is retained: public data is not user-owned.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.CurrentUser = nil
	s.st.SavedItineraries = nil
	s.flush()
	s.logger.Info("Local store cleared user data")
}
