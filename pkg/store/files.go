// Package store persists fetched roll-call records, per-session analyses and
// the cross-session series, as flat files in a data directory and as runs in
// an SQLite archive.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/rollcall"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/timeseries"
)

// File name stems within the data directory.
const (
	votesPrefix         = "voteringer_"
	partiesPrefix       = "partier_"
	analysisPrefix      = "analyse_"
	seriesStem          = "analyse_tidsserie"
	presentationStem    = "tidsserie_frontend"
	manifestFileName    = "oversikt_sesjoner.json"
	defaultDirPerm      = 0o755
	defaultFilePerm     = 0o644
	temporaryFilePrefix = ".tmp-"
)

// FileStore reads and writes data files under one directory. Files are
// written in the store's format; reads accept either format.
type FileStore struct {
	mu     sync.RWMutex
	dir    string
	format Format
}

// NewFileStore opens (creating if needed) a data directory.
func NewFileStore(dir string, format Format) (*FileStore, error) {
	if dir == "" {
		return nil, errors.WithHint(errors.New("data directory is required"),
			"set data.dir or pass --data-dir")
	}
	if format == "" {
		format = FormatJSON
	}
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.Wrapf(err, "create data directory %s", dir)
	}
	return &FileStore{dir: dir, format: format}, nil
}

// Dir returns the data directory.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// Format returns the format files are written in.
func (fs *FileStore) Format() Format {
	return fs.format
}

// SaveVotes writes the records of one session.
func (fs *FileStore) SaveVotes(records *rollcall.SessionRecords) error {
	if records == nil || records.SessionID == "" {
		return errors.New("session records require a session id")
	}
	return fs.save(votesPrefix+records.SessionID, records)
}

// LoadVotes reads the records of one session. A session with no stored
// file returns an error matching errors.ErrSessionNotFound.
func (fs *FileStore) LoadVotes(sessionID string) (*rollcall.SessionRecords, error) {
	var records rollcall.SessionRecords
	found, err := fs.load(votesPrefix+sessionID, &records)
	if err != nil {
		return nil, errors.Wrapf(err, "load votes for %s", sessionID)
	}
	if !found {
		return nil, errors.WithHint(errors.NewSessionNotFound(sessionID),
			"run the fetch command for this session first")
	}
	if records.SessionID == "" {
		records.SessionID = sessionID
	}
	return &records, nil
}

// SaveParties writes the party list of one session.
func (fs *FileStore) SaveParties(sessionID string, parties []rollcall.Party) error {
	return fs.save(partiesPrefix+sessionID, parties)
}

// LoadParties reads the party list of one session.
func (fs *FileStore) LoadParties(sessionID string) ([]rollcall.Party, error) {
	var parties []rollcall.Party
	found, err := fs.load(partiesPrefix+sessionID, &parties)
	if err != nil {
		return nil, errors.Wrapf(err, "load parties for %s", sessionID)
	}
	if !found {
		return nil, errors.NewSessionNotFound(sessionID)
	}
	return parties, nil
}

// SaveAnalysis writes one session analysis.
func (fs *FileStore) SaveAnalysis(analysis *agreement.SessionAnalysis) error {
	return fs.save(analysisPrefix+analysis.SessionID, analysis)
}

// LoadAnalysis reads one session analysis.
func (fs *FileStore) LoadAnalysis(sessionID string) (*agreement.SessionAnalysis, error) {
	var analysis agreement.SessionAnalysis
	found, err := fs.load(analysisPrefix+sessionID, &analysis)
	if err != nil {
		return nil, errors.Wrapf(err, "load analysis for %s", sessionID)
	}
	if !found {
		return nil, errors.NewSessionNotFound(sessionID)
	}
	analysis.RestorePartyIDs()
	return &analysis, nil
}

// SaveSeries writes the cross-session series.
func (fs *FileStore) SaveSeries(series *timeseries.Series) error {
	return fs.save(seriesStem, series)
}

// LoadSeries reads the cross-session series.
func (fs *FileStore) LoadSeries() (*timeseries.Series, error) {
	var series timeseries.Series
	found, err := fs.load(seriesStem, &series)
	if err != nil {
		return nil, errors.Wrap(err, "load series")
	}
	if !found {
		return nil, errors.WithHint(errors.New("no series stored"),
			"run the timeseries command first")
	}
	return &series, nil
}

// SavePresentation writes the chart projection of the series.
func (fs *FileStore) SavePresentation(p *timeseries.Presentation) error {
	return fs.save(presentationStem, p)
}

// ListSessions returns the ids of sessions with stored vote files, sorted.
func (fs *FileStore) ListSessions() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read data directory %s", fs.dir)
	}

	seen := make(map[string]bool)
	sessions := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := VotesSessionID(entry.Name())
		if ok && !seen[id] {
			seen[id] = true
			sessions = append(sessions, id)
		}
	}

	sort.Strings(sessions)
	return sessions, nil
}

// VotesSessionID returns the session of a stored vote file name, such as
// "voteringer_2023-2024.json". Temporary files from in-progress writes do
// not match.
func VotesSessionID(name string) (string, bool) {
	if !strings.HasPrefix(name, votesPrefix) {
		return "", false
	}
	ext := filepath.Ext(name)
	if _, ok := formatForExt(ext); !ok {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, votesPrefix), ext)
	return id, id != ""
}

func (fs *FileStore) save(stem string, v any) error {
	data, err := fs.format.marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", stem)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	return writeFileAtomic(filepath.Join(fs.dir, stem+fs.format.Ext()), data)
}

// load decodes the first existing file for stem, trying the store's own
// format before the others. found is false when no file exists.
func (fs *FileStore) load(stem string, v any) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	candidates := []string{fs.format.Ext(), ".json", ".yaml", ".yml"}
	for _, ext := range candidates {
		path := filepath.Join(fs.dir, stem+ext)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return false, errors.Wrapf(err, "read %s", path)
		}

		format, _ := formatForExt(ext)
		if err := format.unmarshal(data, v); err != nil {
			return false, errors.Wrapf(err, "decode %s", path)
		}
		return true, nil
	}
	return false, nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, temporaryFilePrefix+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, defaultFilePerm); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}
