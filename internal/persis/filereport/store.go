// Package filereport stores crash reports as JSON files in one directory.
//
// Report IDs grow monotonically: the first ID of a process is derived from
// the current time and every report after it takes the next integer. IDs are
// allocated under a file lock so several processes can share a directory.
package filereport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/samber/lo"

	"github.com/dagucloud/crashguard/internal/cmn/fileutil"
)

const (
	// reportDirPermissions is the permission mode for the reports directory.
	reportDirPermissions = 0750
	// reportFilePermissions is the permission mode for report files.
	reportFilePermissions = 0600
	reportExtension       = ".json"
	recrashExtension      = ".recrash.json"
	lockFileName          = ".id.lock"

	defaultMaxReportCount = 5
	cacheCapacity         = 64
	cacheTTL              = 10 * time.Minute
)

var (
	// ErrReportNotFound is returned when no report has the requested ID.
	ErrReportNotFound = errors.New("filereport: report not found")
	// ErrInvalidReportID is returned for IDs that can never be allocated.
	ErrInvalidReportID = errors.New("filereport: invalid report id")
)

// Store keeps crash reports on the local filesystem.
type Store struct {
	dir      string
	appName  string
	prefix   string
	maxCount int
	lock     *flock.Flock
	cache    *fileutil.Cache[[]byte]

	mu     sync.Mutex
	nextID int64
}

type Option func(*Store)

// WithMaxReportCount sets how many reports Prune keeps.
func WithMaxReportCount(n int) Option {
	return func(s *Store) {
		s.maxCount = n
	}
}

// WithLockFile places the ID allocation lock at path instead of inside the
// reports directory.
func WithLockFile(path string) Option {
	return func(s *Store) {
		s.lock = flock.New(path)
	}
}

// WithCache sets the cache used by Read.
func WithCache(c *fileutil.Cache[[]byte]) Option {
	return func(s *Store) {
		s.cache = c
	}
}

// New opens the store in dir, creating the directory when needed. appName
// prefixes every report file name.
func New(dir, appName string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filereport: dir cannot be empty")
	}
	if appName == "" {
		return nil, errors.New("filereport: appName cannot be empty")
	}
	if err := os.MkdirAll(dir, reportDirPermissions); err != nil {
		return nil, fmt.Errorf("filereport: failed to create directory %s: %w", dir, err)
	}

	s := &Store{
		dir:      dir,
		appName:  appName,
		prefix:   appName + "-report-",
		maxCount: defaultMaxReportCount,
		nextID:   time.Now().Unix() << 23,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lock == nil {
		s.lock = flock.New(filepath.Join(dir, lockFileName))
	} else if err := os.MkdirAll(filepath.Dir(s.lock.Path()), reportDirPermissions); err != nil {
		return nil, fmt.Errorf("filereport: failed to create lock directory: %w", err)
	}
	if s.cache == nil {
		s.cache = fileutil.NewCache[[]byte]("reports", cacheCapacity, cacheTTL)
	}
	return s, nil
}

// Dir returns the reports directory.
func (s *Store) Dir() string {
	return s.dir
}

// ReportPath returns the file that holds report id.
func (s *Store) ReportPath(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%016x%s", s.prefix, id, reportExtension))
}

// RecrashPath returns the file a recrash report is written to when the
// process crashed while writing reportPath.
func RecrashPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, reportExtension) + recrashExtension
}

// NextReportPath allocates a new report ID and returns it with the path the
// report must be written to.
func (s *Store) NextReportPath() (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return 0, "", fmt.Errorf("filereport: failed to lock %s: %w", s.lock.Path(), err)
	}
	defer func() { _ = s.lock.Unlock() }()

	ids, err := s.ids()
	if err != nil {
		return 0, "", err
	}
	if n := len(ids); n > 0 && ids[n-1] >= s.nextID {
		s.nextID = ids[n-1] + 1
	}

	id := s.nextID
	s.nextID++

	path := s.ReportPath(id)
	// Reserve the name so other processes skip it.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, reportFilePermissions) //nolint:gosec // controlled path
	if err != nil {
		return 0, "", fmt.Errorf("filereport: failed to reserve %s: %w", path, err)
	}
	_ = f.Close()
	return id, path, nil
}

// Write stores data as report id.
func (s *Store) Write(id int64, data []byte) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidReportID, id)
	}
	return writeFile(s.ReportPath(id), data)
}

// AddUserReport stores data under a new ID, prunes old reports and returns
// the ID.
func (s *Store) AddUserReport(data []byte) (int64, error) {
	id, path, err := s.NextReportPath()
	if err != nil {
		return 0, err
	}
	if err := writeFile(path, data); err != nil {
		return 0, err
	}
	if _, err := s.Prune(); err != nil {
		return id, err
	}
	return id, nil
}

// Count returns the number of stored reports.
func (s *Store) Count() (int, error) {
	ids, err := s.IDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// IDs returns the stored report IDs, oldest first.
func (s *Store) IDs() ([]int64, error) {
	return s.ids()
}

func (s *Store) ids() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filereport: failed to read %s: %w", s.dir, err)
	}
	ids := lo.FilterMap(entries, func(e os.DirEntry, _ int) (int64, bool) {
		if e.IsDir() {
			return 0, false
		}
		return s.parseID(e.Name())
	})
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) parseID(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, s.prefix)
	if !ok {
		return 0, false
	}
	hex, ok := strings.CutSuffix(rest, reportExtension)
	if !ok || len(hex) != 16 {
		return 0, false
	}
	id, err := strconv.ParseInt(hex, 16, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Read returns the contents of report id.
func (s *Store) Read(id int64) ([]byte, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidReportID, id)
	}
	path := s.ReportPath(id)
	data, err := s.cache.LoadLatest(path, func() ([]byte, error) {
		return os.ReadFile(path) //nolint:gosec // controlled path
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %016x", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("filereport: failed to read report %016x: %w", id, err)
	}
	return data, nil
}

// ReadRecrash returns the recrash report written next to report id, if any.
func (s *Store) ReadRecrash(id int64) ([]byte, error) {
	data, err := os.ReadFile(RecrashPath(s.ReportPath(id))) //nolint:gosec // controlled path
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: recrash %016x", ErrReportNotFound, id)
	}
	return data, err
}

// Delete removes report id and its recrash report.
func (s *Store) Delete(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidReportID, id)
	}
	path := s.ReportPath(id)
	s.cache.Invalidate(path)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %016x", ErrReportNotFound, id)
		}
		return fmt.Errorf("filereport: failed to delete %s: %w", path, err)
	}
	if err := os.Remove(RecrashPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filereport: failed to delete recrash report: %w", err)
	}
	return nil
}

// DeleteAll removes every report.
func (s *Store) DeleteAll() error {
	ids, err := s.IDs()
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if err := s.Delete(id); err != nil && !errors.Is(err, ErrReportNotFound) {
			errs = append(errs, err)
		}
	}
	s.cache.Purge()
	return errors.Join(errs...)
}

// Prune deletes the oldest reports beyond the configured maximum and
// returns how many it deleted.
func (s *Store) Prune() (int, error) {
	ids, err := s.IDs()
	if err != nil {
		return 0, err
	}
	excess := len(ids) - s.maxCount
	if excess <= 0 {
		return 0, nil
	}
	for _, id := range ids[:excess] {
		if err := s.Delete(id); err != nil && !errors.Is(err, ErrReportNotFound) {
			return 0, err
		}
	}
	return excess, nil
}

// writeFile replaces path with data through a temporary file in the same
// directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("filereport: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filereport: failed to write report: %w", err)
	}
	if err := tmp.Chmod(reportFilePermissions); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filereport: failed to chmod report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filereport: failed to close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("filereport: failed to rename report: %w", err)
	}
	return nil
}
