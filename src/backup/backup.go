// Package backup copies an editor project aside before a run and puts it back
// on request.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// Suffix names the sibling backup directory: <project>-backup.
	Suffix = "-backup"
	// DraftMarker is the file whose mtime identifies the active project.
	DraftMarker = "draft_content.json"
)

var (
	ErrNoBackup  = errors.New("no backup was captured this session")
	ErrNoProject = errors.New("no editor project found")
)

// Record pairs a live project with its backup copy.
type Record struct {
	ProjectDir string
	BackupDir  string
	CreatedAt  time.Time
}

// Create copies projectDir to its sibling backup directory, replacing any
// backup left from an earlier session.
func Create(projectDir string) (*Record, error) {
	projectDir = filepath.Clean(projectDir)
	st, err := os.Stat(projectDir)
	if err != nil {
		return nil, fmt.Errorf("backup source: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("backup source %s is not a directory", projectDir)
	}

	dst := projectDir + Suffix
	if err := os.RemoveAll(dst); err != nil {
		return nil, fmt.Errorf("remove stale backup: %w", err)
	}
	if err := copyTree(projectDir, dst); err != nil {
		_ = os.RemoveAll(dst)
		return nil, fmt.Errorf("copy project: %w", err)
	}
	log.Printf("Backup: %s -> %s", filepath.Base(projectDir), filepath.Base(dst))
	return &Record{ProjectDir: projectDir, BackupDir: dst, CreatedAt: time.Now()}, nil
}

// StopFunc stops the editor and waits until it has exited.
type StopFunc func(ctx context.Context) error

// Restore stops the editor, deletes the live project and moves the backup
// into its place. A nil record fails with ErrNoBackup.
func Restore(ctx context.Context, rec *Record, stop StopFunc) error {
	if rec == nil {
		return ErrNoBackup
	}
	if _, err := os.Stat(rec.BackupDir); err != nil {
		return fmt.Errorf("%w: %s is gone", ErrNoBackup, rec.BackupDir)
	}
	if stop != nil {
		if err := stop(ctx); err != nil {
			return fmt.Errorf("stop editor before restore: %w", err)
		}
	}
	if err := os.RemoveAll(rec.ProjectDir); err != nil {
		return fmt.Errorf("remove live project: %w", err)
	}
	if err := os.Rename(rec.BackupDir, rec.ProjectDir); err != nil {
		return fmt.Errorf("move backup into place: %w", err)
	}
	log.Printf("Backup: restored %s", filepath.Base(rec.ProjectDir))
	return nil
}

// Keeper holds the single backup record of the current session.
type Keeper struct {
	mu  sync.Mutex
	rec *Record
}

func (k *Keeper) Set(rec *Record) {
	k.mu.Lock()
	k.rec = rec
	k.mu.Unlock()
}

// Peek returns the record without consuming it.
func (k *Keeper) Peek() *Record {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rec
}

// Take consumes the record.
func (k *Keeper) Take() (*Record, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rec := k.rec
	k.rec = nil
	if rec == nil {
		return nil, ErrNoBackup
	}
	return rec, nil
}

// ActiveProject returns the project directory, directly under one of roots,
// whose draft marker file was modified most recently.
func ActiveProject(roots []string) (string, error) {
	var best string
	var bestTime time.Time
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasSuffix(e.Name(), Suffix) {
				continue
			}
			dir := filepath.Join(root, e.Name())
			st, err := os.Stat(filepath.Join(dir, DraftMarker))
			if err != nil {
				continue
			}
			if best == "" || st.ModTime().After(bestTime) {
				best, bestTime = dir, st.ModTime()
			}
		}
	}
	if best == "" {
		return "", ErrNoProject
	}
	return best, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := copyFile(path, target, info); err != nil {
			return err
		}
		return os.Chtimes(target, info.ModTime(), info.ModTime())
	})
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
