// Package consumer provides session consumers: nodes that display one
// cached asset and hand their filename back to whoever owns them.
package consumer

import "sync"

// Node is an in-memory consumer.
type Node struct {
	mu        sync.Mutex
	id        string
	cachePath string
	filename  string
	preview   []byte
	onChange  func(string)
}

// NewNode creates a node pointing at filename inside cachePath.
func NewNode(id, cachePath, filename string) *Node {
	return &Node{id: id, cachePath: cachePath, filename: filename}
}

// OnChange registers fn to run whenever the filename is set.
func (n *Node) OnChange(fn func(string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = fn
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) CachePath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cachePath
}

func (n *Node) Filename() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.filename
}

// SetFilename stores v and runs the change callback.
func (n *Node) SetFilename(v string) {
	n.mu.Lock()
	n.filename = v
	fn := n.onChange
	n.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (n *Node) SetPreview(data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.preview = append([]byte(nil), data...)
	if data == nil {
		n.preview = nil
	}
}

// Preview returns the current preview image, or nil.
func (n *Node) Preview() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.preview
}
