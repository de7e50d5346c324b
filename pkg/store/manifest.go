package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

// FetchStatus is the outcome of fetching one session.
type FetchStatus string

const (
	FetchOK     FetchStatus = "ok"
	FetchFailed FetchStatus = "failed"
)

// SessionFetch records the last fetch of one session.
type SessionFetch struct {
	Status    FetchStatus `json:"status"`
	VoteCount int         `json:"vote_count,omitempty"`
	CaseCount int         `json:"case_count,omitempty"`
	Error     string      `json:"error,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Manifest is the overview of fetched sessions kept beside the data files.
type Manifest struct {
	UpdatedAt  time.Time               `json:"updated_at"`
	Sessions   map[string]SessionFetch `json:"sessions"`
	TotalVotes int                     `json:"total_votes"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Sessions: make(map[string]SessionFetch)}
}

// Record stores the outcome for a session and updates the totals.
func (m *Manifest) Record(sessionID string, fetch SessionFetch) {
	if m.Sessions == nil {
		m.Sessions = make(map[string]SessionFetch)
	}
	if fetch.FetchedAt.IsZero() {
		fetch.FetchedAt = time.Now().UTC()
	}
	m.Sessions[sessionID] = fetch
	m.UpdatedAt = fetch.FetchedAt

	m.TotalVotes = 0
	for _, f := range m.Sessions {
		if f.Status == FetchOK {
			m.TotalVotes += f.VoteCount
		}
	}
}

// Failed returns the sessions whose last fetch failed, sorted.
func (m *Manifest) Failed() []string {
	failed := make([]string, 0)
	for id, f := range m.Sessions {
		if f.Status == FetchFailed {
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	return failed
}

// LoadManifest reads the manifest. A missing manifest yields an empty one.
func (fs *FileStore) LoadManifest() (*Manifest, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path := filepath.Join(fs.dir, manifestFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewManifest(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	manifest := NewManifest()
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if manifest.Sessions == nil {
		manifest.Sessions = make(map[string]SessionFetch)
	}
	return manifest, nil
}

// SaveManifest writes the manifest. It is always JSON.
func (fs *FileStore) SaveManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	return writeFileAtomic(filepath.Join(fs.dir, manifestFileName), append(data, '\n'))
}
