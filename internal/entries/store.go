// Package entries persists the configured vendor accounts.
package entries

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/pkg/file"
)

// ErrAlreadyConfigured is returned when an entry with the same unique id exists.
var ErrAlreadyConfigured = errors.New(constants.AbortAlreadyConfigured)

// Data holds the credentials of one vendor account.
type Data struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConfigEntry is one configured vendor account.
type ConfigEntry struct {
	EntryID   string    `json:"entry_id"`
	Domain    string    `json:"domain"`
	Title     string    `json:"title"`
	UniqueID  string    `json:"unique_id"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps config entries in memory and mirrors them to a JSON file.
type Store struct {
	path       string
	fileClient file.FileOperations
	logger     zerolog.Logger

	entries cmap.ConcurrentMap[string, ConfigEntry]
	saveMu  sync.Mutex // serializes add/remove so the file matches memory
}

// NewStore creates an empty Store backed by path. Call Load to read existing entries.
func NewStore(path string, fileClient file.FileOperations, logger zerolog.Logger) *Store {
	return &Store{
		path:       path,
		fileClient: fileClient,
		logger:     logger,
		entries:    cmap.New[ConfigEntry](),
	}
}

// Load reads persisted entries. A missing file means no entries.
func (s *Store) Load() error {
	exists, err := s.fileClient.IsFileExists(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat entries file: %w", err)
	}
	if !exists {
		s.logger.Debug().Str("path", s.path).Msg("No entries file, starting empty")
		return nil
	}

	var stored []ConfigEntry
	if err := s.fileClient.ReadJsonFile(s.path, &stored); err != nil {
		return fmt.Errorf("failed to read entries file: %w", err)
	}
	for _, entry := range stored {
		s.entries.Set(entry.EntryID, entry)
	}

	s.logger.Info().Str("path", s.path).Int("entries", len(stored)).Msg("Config entries loaded")
	return nil
}

// Add stores a new entry, assigning an entry id if it has none.
func (s *Store) Add(entry ConfigEntry) (ConfigEntry, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if _, ok := s.findByUniqueID(entry.UniqueID); ok && entry.UniqueID != "" {
		return ConfigEntry{}, ErrAlreadyConfigured
	}
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.Domain == "" {
		entry.Domain = constants.Domain
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.entries.Set(entry.EntryID, entry)
	if err := s.save(); err != nil {
		s.entries.Remove(entry.EntryID)
		return ConfigEntry{}, err
	}
	return entry, nil
}

// Remove deletes an entry.
func (s *Store) Remove(entryID string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	entry, ok := s.entries.Pop(entryID)
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	if err := s.save(); err != nil {
		s.entries.Set(entryID, entry)
		return err
	}
	return nil
}

// Get returns the entry with the given id.
func (s *Store) Get(entryID string) (ConfigEntry, bool) {
	return s.entries.Get(entryID)
}

// FindByUniqueID returns the entry with the given unique id.
func (s *Store) FindByUniqueID(uniqueID string) (ConfigEntry, bool) {
	return s.findByUniqueID(uniqueID)
}

func (s *Store) findByUniqueID(uniqueID string) (ConfigEntry, bool) {
	for _, entry := range s.entries.Items() {
		if entry.UniqueID == uniqueID {
			return entry, true
		}
	}
	return ConfigEntry{}, false
}

// All returns every entry, oldest first.
func (s *Store) All() []ConfigEntry {
	out := make([]ConfigEntry, 0, s.entries.Count())
	for _, entry := range s.entries.Items() {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) save() error {
	if err := s.fileClient.WriteJsonFile(s.path, s.All()); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist config entries")
		return fmt.Errorf("failed to write entries file: %w", err)
	}
	return nil
}
