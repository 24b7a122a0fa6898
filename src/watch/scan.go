// Package watch detects the editor's render output on disk and resolves
// transient render files to their final names.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultExt          = ".mp4"
	DefaultIgnoreSuffix = "alpha"
	DefaultTempSuffix   = "_temp"
)

// Snapshot maps absolute candidate paths to the mtime seen at baseline.
type Snapshot map[string]time.Time

// IsNew reports whether a file with the given current mtime counts as new
// output: absent from the snapshot, or modified strictly after it was recorded.
func (s Snapshot) IsNew(path string, mtime time.Time) bool {
	prev, ok := s[path]
	return !ok || mtime.After(prev)
}

// Scanner walks root directories for candidate output files.
type Scanner struct {
	Ext          string
	IgnoreSuffix string
	TempSuffix   string
}

// DefaultScanner matches *.mp4, skipping *alpha.mp4.
func DefaultScanner() Scanner {
	return Scanner{Ext: DefaultExt, IgnoreSuffix: DefaultIgnoreSuffix, TempSuffix: DefaultTempSuffix}
}

func (s Scanner) splitName(path string) (stem, ext string) {
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// Qualifies reports whether path has the output extension and no ignore marker.
func (s Scanner) Qualifies(path string) bool {
	stem, ext := s.splitName(path)
	if !strings.EqualFold(ext, s.Ext) {
		return false
	}
	if s.IgnoreSuffix != "" && strings.HasSuffix(strings.ToLower(stem), strings.ToLower(s.IgnoreSuffix)) {
		return false
	}
	return true
}

// IsTemp reports whether path is a still-rendering artifact.
func (s Scanner) IsTemp(path string) bool {
	stem, _ := s.splitName(path)
	return s.TempSuffix != "" && strings.HasSuffix(strings.ToLower(stem), strings.ToLower(s.TempSuffix))
}

// FinalName strips the transient marker, keeping directory and extension.
// Non-temp paths are returned unchanged.
func (s Scanner) FinalName(path string) string {
	if !s.IsTemp(path) {
		return path
	}
	stem, ext := s.splitName(path)
	return filepath.Join(filepath.Dir(path), stem[:len(stem)-len(s.TempSuffix)]+ext)
}

// Walk calls fn for every qualifying file under roots, roots in order and
// each tree in lexical order. Missing roots and unreadable entries are
// skipped. Returning false from fn stops the walk.
func (s Scanner) Walk(roots []string, fn func(path string, info fs.FileInfo) bool) {
	for _, root := range roots {
		if root == "" {
			continue
		}
		if st, err := os.Stat(root); err != nil || !st.IsDir() {
			continue
		}
		stop := false
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !s.Qualifies(path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if !fn(path, info) {
				stop = true
				return fs.SkipAll
			}
			return nil
		})
		if stop {
			return
		}
	}
}

// Snapshot records every qualifying file under roots.
func (s Scanner) Snapshot(roots []string) Snapshot {
	snap := Snapshot{}
	s.Walk(roots, func(path string, info fs.FileInfo) bool {
		snap[path] = info.ModTime()
		return true
	})
	return snap
}

// FirstNew returns the first file in scan order that is new relative to snap.
func (s Scanner) FirstNew(roots []string, snap Snapshot) (string, bool) {
	var found string
	s.Walk(roots, func(path string, info fs.FileInfo) bool {
		if snap.IsNew(path, info.ModTime()) {
			found = path
			return false
		}
		return true
	})
	return found, found != ""
}

// NewestTemp returns the most recently modified temp file under roots with
// its size.
func (s Scanner) NewestTemp(roots []string) (path string, size int64, ok bool) {
	var newest time.Time
	s.Walk(roots, func(p string, info fs.FileInfo) bool {
		if s.IsTemp(p) && info.ModTime().After(newest) {
			path, size, newest, ok = p, info.Size(), info.ModTime(), true
		}
		return true
	})
	return path, size, ok
}

// HasTemp reports whether any temp file exists under roots.
func (s Scanner) HasTemp(roots []string) bool {
	found := false
	s.Walk(roots, func(p string, _ fs.FileInfo) bool {
		found = s.IsTemp(p)
		return !found
	})
	return found
}
