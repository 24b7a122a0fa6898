package watch

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// maxWatchedDirs caps recursive registration on very large draft trees.
const maxWatchedDirs = 4096

// Notifier wakes the poller early when something under the roots changes.
// Polling stays authoritative; a wake-up only triggers an extra scan.
type Notifier interface {
	Wake() <-chan struct{}
	Close() error
}

type nopNotifier struct{}

func (nopNotifier) Wake() <-chan struct{} { return nil }
func (nopNotifier) Close() error          { return nil }

// FSNotifier watches every directory under the given roots with fsnotify.
type FSNotifier struct {
	w     *fsnotify.Watcher
	wake  chan struct{}
	done  chan struct{}
	count int
}

// NewFSNotifier registers recursive directory watches on roots. Missing
// roots are skipped.
func NewFSNotifier(roots []string) (*FSNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	n := &FSNotifier{w: w, wake: make(chan struct{}, 1), done: make(chan struct{})}
	for _, root := range roots {
		n.addTree(root)
	}
	log.Printf("Watch: fsnotify watching %d directories", n.count)
	go n.loop()
	return n, nil
}

func (n *FSNotifier) addTree(root string) {
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if n.count >= maxWatchedDirs {
			return fs.SkipAll
		}
		if err := n.w.Add(path); err != nil {
			log.Printf("Watch: cannot watch %s: %v", path, err)
			return fs.SkipDir
		}
		n.count++
		return nil
	})
}

func (n *FSNotifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					n.addTree(ev.Name)
				}
			}
			select {
			case n.wake <- struct{}{}:
			default:
			}
		case err, ok := <-n.w.Errors:
			if !ok {
				return
			}
			log.Printf("Watch: fsnotify error: %v", err)
		}
	}
}

func (n *FSNotifier) Wake() <-chan struct{} { return n.wake }

func (n *FSNotifier) Close() error {
	close(n.done)
	return n.w.Close()
}
