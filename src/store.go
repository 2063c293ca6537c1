package src

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ChatMessage is one entry of a project's conversation history.
type ChatMessage struct {
	Role string    `json:"role"` // "user" | "assistant" | "system"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// ProjectStore is the persistent backing store for a project's tree and
// chat history. ApplyBatch is expected to apply the batch as one logical
// write; the engine promises no distributed transaction beyond that.
type ProjectStore interface {
	Get(projectID string) ([]*FileNode, error)
	Subscribe(projectID string, cb func([]*FileNode)) (unsubscribe func())
	ApplyBatch(projectID string, ops []StoreOp) error
	AppendMessage(projectID string, msg ChatMessage) error
}

// MemoryStore keeps everything in process. It is the store used by tests
// and by the TUI when no workspace directory is given.
type MemoryStore struct {
	mu       sync.Mutex
	projects map[string][]*FileNode
	icons    map[string]*string
	history  map[string][]ChatMessage
	subs     map[string]map[int]func([]*FileNode)
	nextSub  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: map[string][]*FileNode{},
		icons:    map[string]*string{},
		history:  map[string][]ChatMessage{},
		subs:     map[string]map[int]func([]*FileNode){},
	}
}

// Seed replaces a project's tree wholesale. Test and bootstrap helper.
func (s *MemoryStore) Seed(projectID string, nodes []*FileNode) {
	s.mu.Lock()
	s.projects[projectID] = Clone(nodes)
	s.mu.Unlock()
	s.notify(projectID)
}

func (s *MemoryStore) Get(projectID string) ([]*FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Clone(s.projects[projectID]), nil
}

// Icon returns the mirrored project icon content, if any.
func (s *MemoryStore) Icon(projectID string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.icons[projectID]
}

func (s *MemoryStore) History(projectID string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.history[projectID]...)
}

func (s *MemoryStore) Subscribe(projectID string, cb func([]*FileNode)) func() {
	s.mu.Lock()
	if s.subs[projectID] == nil {
		s.subs[projectID] = map[int]func([]*FileNode){}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[projectID][id] = cb
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs[projectID], id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) ApplyBatch(projectID string, ops []StoreOp) error {
	s.mu.Lock()
	nodes := s.projects[projectID]
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			cp := *op.Node
			replaced := false
			for i, n := range nodes {
				if n.ID == cp.ID {
					nodes[i] = &cp
					replaced = true
					break
				}
			}
			if !replaced {
				nodes = append(nodes, &cp)
			}
		case OpDelete:
			kept := nodes[:0]
			for _, n := range nodes {
				if n.ID != op.ID {
					kept = append(kept, n)
				}
			}
			nodes = kept
		case OpSetIcon:
			s.icons[projectID] = op.Icon
		default:
			s.mu.Unlock()
			return fmt.Errorf("unknown store op %q", op.Kind)
		}
	}
	s.projects[projectID] = nodes
	s.mu.Unlock()
	s.notify(projectID)
	return nil
}

func (s *MemoryStore) AppendMessage(projectID string, msg ChatMessage) error {
	s.mu.Lock()
	s.history[projectID] = append(s.history[projectID], msg)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) notify(projectID string) {
	s.mu.Lock()
	nodes := Clone(s.projects[projectID])
	cbs := make([]func([]*FileNode), 0, len(s.subs[projectID]))
	for _, cb := range s.subs[projectID] {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(nodes)
	}
}

var ignoredDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "dist": {}, "build": {}, "out": {}, "target": {}, "vendor": {},
	".venv": {}, "__pycache__": {}, ".idea": {}, ".vscode": {}, ".DS_Store": {},
}

func isIgnoredDir(name string) bool {
	_, ok := ignoredDirs[name]
	return ok
}

func allowedFile(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	allow := map[string]struct{}{
		".go": {}, ".md": {}, ".yaml": {}, ".yml": {}, ".json": {},
		".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {}, ".rs": {}, ".rb": {},
		".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".sh": {}, ".toml": {}, ".ini": {},
		".cfg": {}, ".txt": {}, ".html": {}, ".css": {}, ".svg": {},
	}
	_, ok := allow[ext]
	return ok
}

// DirStore mirrors a real workspace directory into the virtual tree, so
// the TUI can drive edits against files on disk. Get snapshots the
// directory; ApplyBatch writes the ops straight back.
type DirStore struct {
	Root string

	mu    sync.Mutex
	known map[string]string // node ID → relative path, for deletes after moves
}

func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root, known: map[string]string{}}
}

func (s *DirStore) Get(string) ([]*FileNode, error) {
	var nodes []*FileNode
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if isIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !allowedFile(p) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		nodes = append(nodes, NewFileNode(filepath.ToSlash(rel), string(data)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for _, n := range nodes {
		s.known[n.ID] = n.Path
	}
	s.mu.Unlock()
	return nodes, nil
}

func (s *DirStore) Subscribe(string, func([]*FileNode)) func() {
	// Disk is polled by Get; there is no push channel for a bare directory.
	return func() {}
}

func (s *DirStore) ApplyBatch(_ string, ops []StoreOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			if op.Node.Type == NodeFolder {
				if err := os.MkdirAll(s.abs(op.Node.Path), 0o755); err != nil {
					return err
				}
				continue
			}
			if prev, ok := s.known[op.Node.ID]; ok && prev != op.Node.Path {
				_ = os.Remove(s.abs(prev))
			}
			abs := s.abs(op.Node.Path)
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(abs, []byte(op.Node.Content), 0o644); err != nil {
				return err
			}
			s.known[op.Node.ID] = op.Node.Path
		case OpDelete:
			if err := os.RemoveAll(s.abs(op.Path)); err != nil {
				return err
			}
			delete(s.known, op.ID)
		case OpSetIcon:
			// No metadata document on disk; the icon file itself is enough.
		}
	}
	return nil
}

func (s *DirStore) AppendMessage(_ string, msg ChatMessage) error {
	f, err := os.OpenFile(filepath.Join(s.Root, ".vibe-history.md"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "\n**%s** (%s):\n%s\n", msg.Role, msg.At.Format(time.RFC3339), msg.Text)
	return err
}

func (s *DirStore) abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}
