// Package history keeps JSON snapshots of installed states that an update superseded.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
)

// Latest selects the most recent entry in Get.
const Latest = "latest"

// ErrNotFound is returned when no entry matches an ID.
var ErrNotFound = errors.New("history entry not found")

// Entry is one superseded installed state.
type Entry struct {
	ID              string                `json:"id" yaml:"id"`
	CreatedAt       time.Time             `json:"created_at" yaml:"created_at"`
	LauncherVersion string                `json:"launcher_version" yaml:"launcher_version"`
	Reason          string                `json:"reason,omitempty" yaml:"reason,omitempty"`
	Previous        descriptor.Descriptor `json:"previous" yaml:"previous"`
	Next            descriptor.Descriptor `json:"next" yaml:"next"`
}

// Info provides summary information about an entry for listing.
type Info struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	From      string    `json:"from" yaml:"from"`
	To        string    `json:"to" yaml:"to"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager reads and writes history entries in one directory.
type Manager struct {
	dir             string
	launcherVersion string
	keep            int
	now             func() time.Time
}

// NewManager creates a manager for dir. keep bounds the number of entries
// retained after each Record; zero or less keeps everything.
func NewManager(dir, launcherVersion string, keep int) *Manager {
	return &Manager{
		dir:             dir,
		launcherVersion: launcherVersion,
		keep:            keep,
		now:             time.Now,
	}
}

// Dir returns the history directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Record implements update.Recorder.
func (m *Manager) Record(previous, next descriptor.Descriptor) error {
	if _, err := m.Create(previous, next, "update"); err != nil {
		return err
	}
	if m.keep > 0 {
		if res, err := m.Prune(m.keep); err != nil {
			return err
		} else if len(res.Deleted) > 0 {
			log.WithField("component", "history").Debugf("pruned %d old entries", len(res.Deleted))
		}
	}
	return nil
}

// Create writes a new entry.
func (m *Manager) Create(previous, next descriptor.Descriptor, reason string) (*Entry, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	now := m.now().UTC()
	entry := &Entry{
		ID:              now.Format("2006-01-02-150405") + "-" + uuid.NewString()[:8],
		CreatedAt:       now,
		LauncherVersion: m.launcherVersion,
		Reason:          reason,
		Previous:        previous,
		Next:            next,
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history entry: %w", err)
	}

	if err := os.WriteFile(m.path(entry.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}

	return entry, nil
}

// List returns all entries sorted by creation time (newest first).
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}

		fi, err := e.Info()
		if err != nil {
			continue
		}

		entry, err := m.load(filepath.Join(m.dir, e.Name()))
		if err != nil {
			log.WithField("component", "history").Debugf("skipping %s: %v", e.Name(), err)
			continue
		}

		infos = append(infos, Info{
			ID:        entry.ID,
			CreatedAt: entry.CreatedAt,
			From:      entry.Previous.BuildVersion,
			To:        entry.Next.BuildVersion,
			Size:      fi.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID > infos[j].ID
	})

	return infos, nil
}

// Get retrieves an entry by ID. Use "latest" to get the most recent one.
// A unique ID prefix is accepted too.
func (m *Manager) Get(id string) (*Entry, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	if id == Latest {
		if len(infos) == 0 {
			return nil, fmt.Errorf("%w: history is empty", ErrNotFound)
		}
		return m.load(m.path(infos[0].ID))
	}

	var matches []string
	for _, info := range infos {
		if info.ID == id {
			return m.load(m.path(id))
		}
		if strings.HasPrefix(info.ID, id) {
			matches = append(matches, info.ID)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return m.load(m.path(matches[0]))
	default:
		return nil, fmt.Errorf("ambiguous history id %q matches %d entries", id, len(matches))
	}
}

// Delete removes an entry by ID.
func (m *Manager) Delete(id string) error {
	path := m.path(id)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	return nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, filepath.Base(id)+".json")
}

// load reads and parses an entry file.
func (m *Manager) load(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return nil, fmt.Errorf("failed to read history entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse history entry: %w", err)
	}

	return &entry, nil
}
