package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// nodeFile is the on-disk shape of a FileNode.
type nodeFile struct {
	ID        string `json:"id"`
	CachePath string `json:"cache_path"`
	Filename  string `json:"filename"`
}

// Change reports an edit to a node file made by someone else.
type Change struct {
	Filename  string
	CachePath string
}

// FileNode is a consumer backed by a JSON file. The preview image is kept
// next to it with a ".preview" suffix.
type FileNode struct {
	path string
	log  *zap.Logger

	mu       sync.Mutex
	state    nodeFile
	onChange func(string)
}

// OpenFile loads the node stored at path. A missing file yields an empty
// node whose id is the file name.
func OpenFile(path string, log *zap.Logger) (*FileNode, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("consumer: resolve %s: %w", path, err)
	}
	n := &FileNode{path: abs, log: log.Named("node")}
	state, err := readNode(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		state = nodeFile{ID: strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))}
	case err != nil:
		return nil, err
	}
	if state.ID == "" {
		state.ID = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	n.state = state
	return n, nil
}

func readNode(path string) (nodeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nodeFile{}, err
	}
	var state nodeFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nodeFile{}, fmt.Errorf("consumer: decode %s: %w", path, err)
	}
	return state, nil
}

// Path returns the node file location.
func (n *FileNode) Path() string {
	return n.path
}

// PreviewPath returns where the preview image is written.
func (n *FileNode) PreviewPath() string {
	return n.path + ".preview"
}

// OnChange registers fn to run whenever the filename is set.
func (n *FileNode) OnChange(fn func(string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = fn
}

func (n *FileNode) ID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.ID
}

func (n *FileNode) CachePath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.CachePath
}

func (n *FileNode) Filename() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Filename
}

// SetCachePath changes the cache path and saves the file.
func (n *FileNode) SetCachePath(v string) error {
	n.mu.Lock()
	n.state.CachePath = v
	state := n.state
	n.mu.Unlock()
	return n.write(state)
}

// SetFilename stores v, saves the file and runs the change callback. Write
// failures are logged.
func (n *FileNode) SetFilename(v string) {
	n.mu.Lock()
	n.state.Filename = v
	state := n.state
	fn := n.onChange
	n.mu.Unlock()

	if err := n.write(state); err != nil {
		n.log.Warn("save node failed", zap.String("path", n.path), zap.Error(err))
	}
	if fn != nil {
		fn(v)
	}
}

// SetPreview writes the preview image, or removes it when data is nil.
func (n *FileNode) SetPreview(data []byte) {
	var err error
	if data == nil {
		err = os.Remove(n.PreviewPath())
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	} else {
		err = writeAtomic(n.PreviewPath(), data)
	}
	if err != nil {
		n.log.Warn("save preview failed", zap.String("path", n.PreviewPath()), zap.Error(err))
	}
}

// Save writes the current state.
func (n *FileNode) Save() error {
	n.mu.Lock()
	state := n.state
	n.mu.Unlock()
	return n.write(state)
}

func (n *FileNode) write(state nodeFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("consumer: encode: %w", err)
	}
	return writeAtomic(n.path, append(data, '\n'))
}

// writeAtomic replaces path through a temporary file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("consumer: ensure %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("consumer: temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("consumer: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("consumer: close %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("consumer: rename %s: %w", path, err)
	}
	return nil
}

// Watch reports edits to the node file made outside this process until ctx
// is done. The in-memory state is updated before a Change is sent. The
// channel is closed when watching stops.
func (n *FileNode) Watch(ctx context.Context) (<-chan Change, error) {
	dir := filepath.Dir(n.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("consumer: ensure %s: %w", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("consumer: create watcher: %w", err)
	}
	// The directory is watched because atomic writes replace the file.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("consumer: watch %s: %w", dir, err)
	}

	changes := make(chan Change, 16)
	go func() {
		defer close(changes)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				n.log.Debug("watch error", zap.Error(err))
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != n.path {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
					continue
				}
				change, ok := n.reload()
				if !ok {
					continue
				}
				select {
				case changes <- change:
				default:
				}
			}
		}
	}()
	return changes, nil
}

// reload rereads the file and reports whether it differs from memory.
func (n *FileNode) reload() (Change, bool) {
	state, err := readNode(n.path)
	if err != nil {
		return Change{}, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if state.Filename == n.state.Filename && state.CachePath == n.state.CachePath {
		return Change{}, false
	}
	if state.ID == "" {
		state.ID = n.state.ID
	}
	n.state = state
	return Change{Filename: state.Filename, CachePath: state.CachePath}, true
}
