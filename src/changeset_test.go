package src

import (
	"reflect"
	"testing"
)

func treeFromMap(files map[string]string) []*FileNode {
	return FromMap(files)
}

func TestApplyChangeSetEmptyIsNoop(t *testing.T) {
	files := treeFromMap(map[string]string{"main.go": "package main"})
	next, ops, err := ApplyChangeSet(files, ChangeSet{})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected no ops, got %d", len(ops))
	}
	if !reflect.DeepEqual(ToMap(next), ToMap(files)) {
		t.Fatal("tree changed on empty change-set")
	}
}

func TestApplyChangeSetDoesNotMutateInput(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "old"})
	_, _, err := ApplyChangeSet(files, ChangeSet{Update: map[string]string{"a.txt": "new"}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if files[0].Content != "old" {
		t.Fatal("input tree was mutated")
	}
}

func TestApplyChangeSetDeleteWinsOverUpdate(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "old"})
	next, ops, err := ApplyChangeSet(files, ChangeSet{
		Update: map[string]string{"a.txt": "new"},
		Delete: []string{"a.txt"},
	})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if FindByPath(next, "a.txt") != nil {
		t.Fatal("a.txt should be gone")
	}
	for _, op := range ops {
		if op.Kind == OpPut && op.Node.Path == "a.txt" {
			t.Fatal("update op emitted for a deleted path")
		}
	}
}

func TestApplyChangeSetDeleteCascades(t *testing.T) {
	files := treeFromMap(map[string]string{
		"pkg/a.go": "a",
		"pkg/b.go": "b",
		"main.go":  "m",
	})
	next, _, err := ApplyChangeSet(files, ChangeSet{Delete: []string{"pkg"}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	want := []string{"main.go"}
	if got := SortedPaths(next); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected tree: %v", got)
	}
}

func TestApplyChangeSetMoveFolderRelocatesDescendants(t *testing.T) {
	files := treeFromMap(map[string]string{
		"old/a.go":     "a",
		"old/sub/b.go": "b",
	})
	files = append(files, NewFolderNode("old"))

	next, _, err := ApplyChangeSet(files, ChangeSet{Move: []PathMove{{From: "old", To: "lib"}}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if FindByPath(next, "lib/a.go") == nil || FindByPath(next, "lib/sub/b.go") == nil {
		t.Fatalf("descendants not relocated: %v", SortedPaths(next))
	}
	if FindByPath(next, "old/a.go") != nil {
		t.Fatal("old path still present after move")
	}
}

func TestApplyChangeSetMoveFolderOntoOccupiedPathFails(t *testing.T) {
	files := treeFromMap(map[string]string{
		"old/a.go": "moved",
		"lib/a.go": "original",
	})
	files = append(files, NewFolderNode("old"))

	_, _, err := ApplyChangeSet(files, ChangeSet{Move: []PathMove{{From: "old", To: "lib"}}})
	if err == nil {
		t.Fatal("expected error when a descendant target is occupied")
	}

	// The occupied target is a plain file path; "lib" itself is never a node.
	next, _, err := ApplyChangeSet(files, ChangeSet{Move: []PathMove{{From: "old", To: "pkg"}}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	seen := map[string]int{}
	for _, n := range next {
		seen[n.Path]++
	}
	for p, count := range seen {
		if count > 1 {
			t.Fatalf("%d nodes at %s", count, p)
		}
	}
	if FindByPath(next, "pkg/a.go") == nil || FindByPath(next, "lib/a.go") == nil {
		t.Fatalf("unexpected tree after move: %v", SortedPaths(next))
	}
}

func TestApplyChangeSetMovePreservesIdentity(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "x"})
	id := files[0].ID
	next, _, err := ApplyChangeSet(files, ChangeSet{Move: []PathMove{{From: "a.txt", To: "b.txt"}}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	n := FindByPath(next, "b.txt")
	if n == nil || n.ID != id {
		t.Fatal("move must keep the node ID")
	}
	if n.Name != "b.txt" {
		t.Fatalf("name not updated: %q", n.Name)
	}
}

func TestApplyChangeSetMoveToExistingPathFails(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "a", "b.txt": "b"})
	_, _, err := ApplyChangeSet(files, ChangeSet{Move: []PathMove{{From: "a.txt", To: "b.txt"}}})
	if err == nil {
		t.Fatal("expected error moving onto an existing path")
	}
}

func TestApplyChangeSetCopyCreatesNewIdentity(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "x"})
	next, _, err := ApplyChangeSet(files, ChangeSet{Copy: []PathMove{{From: "a.txt", To: "b.txt"}}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	src := FindByPath(next, "a.txt")
	dup := FindByPath(next, "b.txt")
	if src == nil || dup == nil {
		t.Fatalf("copy missing: %v", SortedPaths(next))
	}
	if dup.ID == src.ID {
		t.Fatal("copy must mint a new ID")
	}
	if dup.Content != "x" {
		t.Fatalf("content not copied: %q", dup.Content)
	}
}

func TestApplyChangeSetCopyToExistingPathFails(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "a", "b.txt": "b"})
	_, _, err := ApplyChangeSet(files, ChangeSet{Copy: []PathMove{{From: "a.txt", To: "b.txt"}}})
	if err == nil {
		t.Fatal("expected error copying onto an existing path")
	}
}

func TestApplyChangeSetCreateOverExistingPathKeepsUniqueness(t *testing.T) {
	files := treeFromMap(map[string]string{"a.txt": "old"})
	next, _, err := ApplyChangeSet(files, ChangeSet{Create: map[string]string{"a.txt": "new"}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	count := 0
	for _, n := range next {
		if n.Path == "a.txt" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("path uniqueness violated: %d nodes at a.txt", count)
	}
	if FindByPath(next, "a.txt").Content != "new" {
		t.Fatal("content not overwritten")
	}
}

func TestApplyChangeSetIconMirroredOnWrite(t *testing.T) {
	files := treeFromMap(map[string]string{})
	_, ops, err := ApplyChangeSet(files, ChangeSet{Create: map[string]string{ProjectIconPath: "<svg/>"}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	last := ops[len(ops)-1]
	if last.Kind != OpSetIcon || last.Icon == nil || *last.Icon != "<svg/>" {
		t.Fatalf("expected trailing seticon op with content, got %+v", last)
	}
}

func TestApplyChangeSetIconClearedOnDelete(t *testing.T) {
	files := treeFromMap(map[string]string{ProjectIconPath: "<svg/>"})
	_, ops, err := ApplyChangeSet(files, ChangeSet{Delete: []string{ProjectIconPath}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	last := ops[len(ops)-1]
	if last.Kind != OpSetIcon || last.Icon != nil {
		t.Fatalf("expected trailing seticon op clearing the icon, got %+v", last)
	}
}

func TestApplyChangeSetOrderMoveBeforeCreate(t *testing.T) {
	// The same request moves a file away and creates a new one in its
	// place; the fixed ordering makes this legal.
	files := treeFromMap(map[string]string{"a.txt": "one"})
	next, _, err := ApplyChangeSet(files, ChangeSet{
		Move:   []PathMove{{From: "a.txt", To: "b.txt"}},
		Create: map[string]string{"a.txt": "two"},
	})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if FindByPath(next, "b.txt").Content != "one" {
		t.Fatal("moved content wrong")
	}
	if FindByPath(next, "a.txt").Content != "two" {
		t.Fatal("created content wrong")
	}
}
