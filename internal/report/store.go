package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the report's name inside the test directory.
const FileName = "sweep-report.json"

// Store persists a Report as <dir>/sweep-report.json.
//
// Writes are atomic and durable (file sync + atomic rename + dir sync), so a
// crash mid-write leaves the previous report in place.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("report dir is required")
	}
	return &Store{dir: dir}, nil
}

// Path is where the report is written.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Save validates r and replaces the report in the test directory, which
// must already exist.
func (s *Store) Save(r *Report) error {
	if s == nil {
		return errors.New("nil Store")
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := s.commit(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// commit encodes r into tmp, syncs it and renames it over the report.
func (s *Store) commit(tmp *os.File, r *Report) error {
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	// The rename is only durable once the directory entry is on disk.
	d, err := os.Open(s.dir)
	if err != nil {
		return fmt.Errorf("sync %s: %w", s.dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.dir, err)
	}
	return nil
}

// Load reads the report back. Unknown fields and anything after the
// document are rejected.
func (s *Store) Load() (*Report, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	f, err := os.Open(s.Path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r Report
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path(), err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode %s: trailing content after report", s.Path())
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report on disk: %w", err)
	}
	return &r, nil
}
