package src

import (
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// FileNode is one file or folder in a project's virtual tree. The ID is
// stable across renames; Path is unique within a project, /-separated,
// no trailing slash. Folders carry no content.
type FileNode struct {
	ID      string   `json:"id"`
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Type    NodeType `json:"type"`
	Content string   `json:"content,omitempty"`
}

// NewFileNode builds a file node with a fresh ID and a normalized path.
func NewFileNode(p, content string) *FileNode {
	p = CleanPath(p)
	return &FileNode{
		ID:      uuid.NewString(),
		Path:    p,
		Name:    path.Base(p),
		Type:    NodeFile,
		Content: content,
	}
}

// NewFolderNode builds a folder node. Folders exist explicitly only when
// empty; otherwise they are implied by their children's path prefixes.
func NewFolderNode(p string) *FileNode {
	p = CleanPath(p)
	return &FileNode{
		ID:   uuid.NewString(),
		Path: p,
		Name: path.Base(p),
		Type: NodeFolder,
	}
}

// CleanPath normalizes a project-relative path: forward slashes, no
// leading "./", no leading or trailing slash.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Clone deep-copies a node slice so a run can mutate its working set
// without leaking changes to the caller.
func Clone(nodes []*FileNode) []*FileNode {
	out := make([]*FileNode, len(nodes))
	for i, n := range nodes {
		cp := *n
		out[i] = &cp
	}
	return out
}

// FindByPath returns the node at the exact path, or nil.
func FindByPath(nodes []*FileNode, p string) *FileNode {
	p = CleanPath(p)
	for _, n := range nodes {
		if n.Path == p {
			return n
		}
	}
	return nil
}

// descendants returns the nodes whose path is strictly under prefix.
func descendants(nodes []*FileNode, prefix string) []*FileNode {
	prefix = CleanPath(prefix) + "/"
	var out []*FileNode
	for _, n := range nodes {
		if strings.HasPrefix(n.Path, prefix) {
			out = append(out, n)
		}
	}
	return out
}

// ToMap projects the tree to path → content for files only. Folders are
// implicit from path prefixes. Used to serialize context into prompts.
func ToMap(nodes []*FileNode) map[string]string {
	out := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.Type == NodeFile {
			out[n.Path] = n.Content
		}
	}
	return out
}

// FromMap builds file nodes from a path → content map.
func FromMap(files map[string]string) []*FileNode {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	nodes := make([]*FileNode, 0, len(paths))
	for _, p := range paths {
		nodes = append(nodes, NewFileNode(p, files[p]))
	}
	return nodes
}

// SortedPaths returns every node path in lexical order.
func SortedPaths(nodes []*FileNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Path)
	}
	sort.Strings(out)
	return out
}

// RenderTree draws the tree the way it is shown to models and in the TUI.
func RenderTree(nodes []*FileNode) string {
	type tn struct {
		name     string
		children map[string]*tn
		file     bool
	}
	root := &tn{name: "/", children: map[string]*tn{}}

	for _, f := range nodes {
		parts := strings.Split(f.Path, "/")
		cur := root
		for i, p := range parts {
			if _, ok := cur.children[p]; !ok {
				cur.children[p] = &tn{name: p, children: map[string]*tn{}}
			}
			cur = cur.children[p]
			if i == len(parts)-1 && f.Type == NodeFile {
				cur.file = true
			}
		}
	}

	var lines []string
	var walk func(prefix string, n *tn)
	walk = func(prefix string, n *tn) {
		keys := make([]string, 0, len(n.children))
		for k := range n.children {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := n.children[k]
			line := prefix + "└─ " + child.name
			if !child.file {
				line += "/"
			}
			lines = append(lines, line)
			if len(child.children) > 0 {
				walk(prefix+"  ", child)
			}
		}
	}
	walk("", root)
	return strings.Join(lines, "\n")
}
