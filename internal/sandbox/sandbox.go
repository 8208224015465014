// Package sandbox manages the per-session file workspaces the agent
// edits through its tools. Each (user, session) pair owns one flat
// directory under the base dir; filenames are restricted so nothing
// can escape the session root.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var (
	// ErrInvalidName is returned for filenames outside the allowed
	// charset or the reserved names "." and "..".
	ErrInvalidName = errors.New("invalid filename")

	// ErrQuotaExceeded is returned when a write would push a file over
	// the per-file limit or the sandbox over its total limit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrFileNotFound is returned when reading a file that does not exist.
	ErrFileNotFound = errors.New("file not found")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// Service provides sandbox file operations with quota enforcement.
type Service struct {
	baseDir     string
	maxFileSize int64
	maxTotal    int64
}

// New creates a sandbox service rooted at baseDir with the given
// per-file and per-sandbox byte limits.
func New(baseDir string, maxFileSize, maxTotal int64) *Service {
	return &Service{
		baseDir:     baseDir,
		maxFileSize: maxFileSize,
		maxTotal:    maxTotal,
	}
}

// Dir returns the sandbox directory for a user session.
func (s *Service) Dir(userID int64, sessionID string) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(userID, 10), sessionID)
}

// ValidName reports whether the filename is acceptable.
func ValidName(name string) bool {
	return validName.MatchString(name) && name != "." && name != ".."
}

// Initialize creates the sandbox directory and seeds the default
// skeleton files.
func (s *Service) Initialize(userID int64, sessionID string) error {
	dir := s.Dir(userID, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}

	for name, content := range seedFiles {
		if err := s.Write(userID, sessionID, name, []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// List returns the sandbox's filenames sorted lexicographically. A
// missing sandbox directory lists as empty.
func (s *Service) List(userID int64, sessionID string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(userID, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sandbox: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns a file's content.
func (s *Service) Read(userID int64, sessionID, name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(userID, sessionID), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Write stores a file, enforcing both quotas. The write is atomic
// (temp file plus rename), so a failed write leaves the previous
// content intact.
func (s *Service) Write(userID int64, sessionID, name string, content []byte) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	size := int64(len(content))
	if size > s.maxFileSize {
		return fmt.Errorf("%w: file size %d exceeds limit of %d bytes", ErrQuotaExceeded, size, s.maxFileSize)
	}

	dir := s.Dir(userID, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}

	current, err := s.totalSize(dir)
	if err != nil {
		return err
	}

	// Overwrites only count the delta against the total quota.
	target := filepath.Join(dir, name)
	if info, err := os.Stat(target); err == nil {
		current -= info.Size()
	}

	if current+size > s.maxTotal {
		return fmt.Errorf("%w: sandbox size would reach %d bytes, limit is %d", ErrQuotaExceeded, current+size, s.maxTotal)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Delete removes a file. Deleting a missing file is not an error.
func (s *Service) Delete(userID int64, sessionID, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	err := os.Remove(filepath.Join(s.Dir(userID, sessionID), name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetAll returns every file's content keyed by name.
func (s *Service) GetAll(userID int64, sessionID string) (map[string]string, error) {
	names, err := s.List(userID, sessionID)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string, len(names))
	for _, name := range names {
		data, err := s.Read(userID, sessionID, name)
		if err != nil {
			continue
		}
		files[name] = string(data)
	}
	return files, nil
}

// DeleteSession removes the sandbox directory and, when empty, the
// enclosing per-user directory.
func (s *Service) DeleteSession(userID int64, sessionID string) error {
	dir := s.Dir(userID, sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete sandbox: %w", err)
	}

	parent := filepath.Dir(dir)
	if entries, err := os.ReadDir(parent); err == nil && len(entries) == 0 {
		os.Remove(parent)
	}
	return nil
}

func (s *Service) totalSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sandbox: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
