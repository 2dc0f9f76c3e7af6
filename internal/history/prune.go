package history

import (
	"fmt"
)

// DefaultKeepCount is the default number of entries to retain.
const DefaultKeepCount = 10

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []Info `json:"deleted" yaml:"deleted"`
	Kept    int    `json:"kept" yaml:"kept"`
}

// PruneCandidates returns the entries Prune(keep) would delete, oldest last.
func (m *Manager) PruneCandidates(keep int) ([]Info, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	// Entries are already sorted newest first
	if len(infos) <= keep {
		return nil, nil
	}
	return infos[keep:], nil
}

// Prune removes old entries, keeping only the most recent N.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	candidates, err := m.PruneCandidates(keep)
	if err != nil {
		return nil, err
	}
	return m.DeleteAll(candidates)
}

// DeleteAll removes the given entries and reports how many remain.
func (m *Manager) DeleteAll(infos []Info) (*PruneResult, error) {
	result := &PruneResult{}
	for _, info := range infos {
		if err := m.Delete(info.ID); err != nil {
			return nil, fmt.Errorf("failed to delete history entry %s: %w", info.ID, err)
		}
		result.Deleted = append(result.Deleted, info)
	}

	remaining, err := m.List()
	if err != nil {
		return nil, err
	}
	result.Kept = len(remaining)
	return result, nil
}
