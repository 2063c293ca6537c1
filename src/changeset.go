package src

import (
	"fmt"
	"path"
)

// ProjectIconPath is the one distinguished file the applier mirrors into
// project-level metadata, so the UI can show an icon without loading the
// whole tree.
const ProjectIconPath = "assets/icon.svg"

// PathMove names a source and target path for move/copy operations.
type PathMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChangeSet is the unit of mutation against a virtual tree. Producers must
// not let one path race between operation kinds; the applier only enforces
// a fixed ordering, it does not re-validate the set.
type ChangeSet struct {
	Create map[string]string `json:"create,omitempty"`
	Update map[string]string `json:"update,omitempty"`
	Delete []string          `json:"delete,omitempty"`
	Move   []PathMove        `json:"move,omitempty"`
	Copy   []PathMove        `json:"copy,omitempty"`
}

func (cs ChangeSet) Empty() bool {
	return len(cs.Create) == 0 && len(cs.Update) == 0 && len(cs.Delete) == 0 &&
		len(cs.Move) == 0 && len(cs.Copy) == 0
}

// Paths lists every path the change-set touches.
func (cs ChangeSet) Paths() []string {
	var out []string
	for p := range cs.Create {
		out = append(out, CleanPath(p))
	}
	for p := range cs.Update {
		out = append(out, CleanPath(p))
	}
	for _, p := range cs.Delete {
		out = append(out, CleanPath(p))
	}
	for _, mv := range cs.Move {
		out = append(out, CleanPath(mv.From), CleanPath(mv.To))
	}
	for _, cp := range cs.Copy {
		out = append(out, CleanPath(cp.From), CleanPath(cp.To))
	}
	return out
}

// OpKind tags a persistence operation for the backing store.
type OpKind string

const (
	OpPut     OpKind = "put"     // create or overwrite a node
	OpDelete  OpKind = "delete"  // remove a node
	OpSetIcon OpKind = "seticon" // mirror icon content into project metadata
)

// StoreOp is one persistence operation. A change-set becomes a batch of
// these, handed to ProjectStore.ApplyBatch as a single logical write.
type StoreOp struct {
	Kind OpKind
	Node *FileNode // set for put
	ID   string    // set for delete
	Path string    // set for delete
	Icon *string   // set for seticon; nil clears the icon
}

// ApplyChangeSet resolves a change-set against the current tree and returns
// the resulting tree plus the persistence batch. Ordering is fixed: move,
// copy, delete, update (minus deleted paths), create. Delete wins over
// update on the same path; a producer emitting both almost certainly made
// a mistake, and deletion is the safer outcome.
//
// The input slice is not mutated. An empty change-set returns the input
// unchanged with no ops.
func ApplyChangeSet(files []*FileNode, cs ChangeSet) ([]*FileNode, []StoreOp, error) {
	if cs.Empty() {
		return files, nil, nil
	}

	nodes := Clone(files)
	var ops []StoreOp
	iconTouched := false

	put := func(n *FileNode) {
		ops = append(ops, StoreOp{Kind: OpPut, Node: n})
		if n.Path == ProjectIconPath {
			iconTouched = true
		}
	}

	// 1. Move: relocate the node and, for folders, everything under it.
	for _, mv := range cs.Move {
		from, to := CleanPath(mv.From), CleanPath(mv.To)
		src := FindByPath(nodes, from)
		if src == nil {
			continue
		}
		if other := FindByPath(nodes, to); other != nil && other != src {
			return nil, nil, fmt.Errorf("move %s: target %s already exists", from, to)
		}
		if src.Type == NodeFolder {
			children := descendants(nodes, from)
			moving := map[*FileNode]bool{src: true}
			for _, child := range children {
				moving[child] = true
			}
			// Every rewritten descendant path must be free too; the
			// target folder may already exist implicitly as a prefix
			// of unrelated files.
			for _, child := range children {
				target := to + child.Path[len(from):]
				if other := FindByPath(nodes, target); other != nil && !moving[other] {
					return nil, nil, fmt.Errorf("move %s: target %s already exists", from, target)
				}
			}
			for _, child := range children {
				child.Path = to + child.Path[len(from):]
				put(child)
			}
		}
		src.Path = to
		src.Name = path.Base(to)
		put(src)
	}

	// 2. Copy: files only, new identity at the target path.
	for _, cp := range cs.Copy {
		from, to := CleanPath(cp.From), CleanPath(cp.To)
		src := FindByPath(nodes, from)
		if src == nil || src.Type != NodeFile {
			continue
		}
		if FindByPath(nodes, to) != nil {
			return nil, nil, fmt.Errorf("copy %s: target %s already exists", from, to)
		}
		dup := NewFileNode(to, src.Content)
		nodes = append(nodes, dup)
		put(dup)
	}

	// 3. Delete, cascading through folders.
	deleted := make(map[string]bool, len(cs.Delete))
	for _, p := range cs.Delete {
		deleted[CleanPath(p)] = true
	}
	if len(deleted) > 0 {
		kept := nodes[:0]
		for _, n := range nodes {
			drop := deleted[n.Path]
			if !drop {
				for p := range deleted {
					if len(n.Path) > len(p) && n.Path[:len(p)] == p && n.Path[len(p)] == '/' {
						drop = true
						break
					}
				}
			}
			if drop {
				ops = append(ops, StoreOp{Kind: OpDelete, ID: n.ID, Path: n.Path})
				if n.Path == ProjectIconPath {
					iconTouched = true
				}
				continue
			}
			kept = append(kept, n)
		}
		nodes = kept
	}

	// 4. Update, skipping anything the same set deleted.
	for p, content := range cs.Update {
		p = CleanPath(p)
		if deleted[p] {
			continue
		}
		n := FindByPath(nodes, p)
		if n == nil || n.Type != NodeFile {
			continue
		}
		n.Content = content
		put(n)
	}

	// 5. Create. An existing path is overwritten in place so the
	// uniqueness invariant holds even for sloppy producers.
	for p, content := range cs.Create {
		p = CleanPath(p)
		if existing := FindByPath(nodes, p); existing != nil {
			if existing.Type == NodeFile {
				existing.Content = content
				put(existing)
			}
			continue
		}
		n := NewFileNode(p, content)
		nodes = append(nodes, n)
		put(n)
	}

	if iconTouched {
		if icon := FindByPath(nodes, ProjectIconPath); icon != nil {
			content := icon.Content
			ops = append(ops, StoreOp{Kind: OpSetIcon, Icon: &content})
		} else {
			ops = append(ops, StoreOp{Kind: OpSetIcon, Icon: nil})
		}
	}

	return nodes, ops, nil
}

// Summary renders a short human-readable account of a change-set.
func (cs ChangeSet) Summary() string {
	var b []byte
	add := func(verb string, n int) {
		if n == 0 {
			return
		}
		if len(b) > 0 {
			b = append(b, ", "...)
		}
		b = fmt.Appendf(b, "%s %d", verb, n)
	}
	add("create", len(cs.Create))
	add("update", len(cs.Update))
	add("delete", len(cs.Delete))
	add("move", len(cs.Move))
	add("copy", len(cs.Copy))
	if len(b) == 0 {
		return "no changes"
	}
	return string(b)
}
