// Package store persists cycle artifacts under the cycle's working
// directory. Every path is resolved relative to the work dir and must
// stay inside it; snapshots are written atomically so a crashed cycle
// leaves the last complete state on disk.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store scopes file operations to one cycle's work dir.
type Store struct {
	workDir string
}

// New creates the work dir (and the well-known subdirectories) and
// returns a Store rooted there.
func New(workDir string) (*Store, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work dir %q: %w", workDir, err)
	}
	for _, sub := range []string{"", "inputs", "hypothesis", "experiment", "analysis", "improvement", "outputs"} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating work dir %q: %w", filepath.Join(abs, sub), err)
		}
	}
	return &Store{workDir: abs}, nil
}

// WorkDir returns the absolute work dir root.
func (s *Store) WorkDir() string { return s.workDir }

// Resolve joins rel onto the work dir and rejects escapes.
func (s *Store) Resolve(rel string) (string, error) {
	path := filepath.Join(s.workDir, rel)
	if path != s.workDir && !strings.HasPrefix(path, s.workDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes work dir %q", rel, s.workDir)
	}
	return path, nil
}

// WriteFile writes content at the given work-dir-relative path,
// creating parent directories as needed.
func (s *Store) WriteFile(rel, content string) (string, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %q: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %q: %w", rel, err)
	}
	return path, nil
}

// ReadFile reads the file at the given work-dir-relative path.
func (s *Store) ReadFile(rel string) (string, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", rel, err)
	}
	return string(data), nil
}

// RemoveFile deletes the file at the given relative path. A missing
// file is a no-op.
func (s *Store) RemoveFile(rel string) error {
	path, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", rel, err)
	}
	return nil
}

// WriteJSON marshals v with indentation and writes it atomically:
// a temp file in the target directory renamed over the destination.
func (s *Store) WriteJSON(rel string, v any) error {
	path, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %q: %w", rel, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %q: %w", rel, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %q: %w", rel, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file for %q: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %q: %w", rel, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming snapshot into %q: %w", rel, err)
	}
	return nil
}

// ReadJSON unmarshals the file at rel into v.
func (s *Store) ReadJSON(rel string, v any) error {
	content, err := s.ReadFile(rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("unmarshaling %q: %w", rel, err)
	}
	return nil
}

// EnsureDir creates the directory at rel.
func (s *Store) EnsureDir(rel string) (string, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating %q: %w", rel, err)
	}
	return path, nil
}

// CopyDir recursively copies the directory at srcRel to dstRel.
// Used to seed each mod_N directory from its predecessor.
func (s *Store) CopyDir(srcRel, dstRel string) error {
	src, err := s.Resolve(srcRel)
	if err != nil {
		return err
	}
	dst, err := s.Resolve(dstRel)
	if err != nil {
		return err
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %q: %w", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory for %q: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %q: %w", dst, err)
	}
	return out.Close()
}
