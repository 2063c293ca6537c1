package src

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreApplyBatchAndSubscribe(t *testing.T) {
	s := NewMemoryStore()
	s.Seed("p", nil)

	var seen []string
	unsub := s.Subscribe("p", func(nodes []*FileNode) {
		seen = SortedPaths(nodes)
	})
	defer unsub()

	_, ops, err := ApplyChangeSet(nil, ChangeSet{Create: map[string]string{"a.txt": "x", ProjectIconPath: "<svg/>"}})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if err := s.ApplyBatch("p", ops); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	got, _ := s.Get("p")
	if FindByPath(got, "a.txt") == nil {
		t.Fatal("batch not applied")
	}
	if icon := s.Icon("p"); icon == nil || *icon != "<svg/>" {
		t.Fatal("icon not mirrored into project metadata")
	}
	if len(seen) == 0 {
		t.Fatal("subscriber not notified")
	}
}

func TestDirStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewDirStore(root)
	files, err := s.Get("p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if FindByPath(files, "main.go") == nil {
		t.Fatalf("workspace file missing: %v", SortedPaths(files))
	}

	next, ops, err := ApplyChangeSet(files, ChangeSet{
		Create: map[string]string{"docs/readme.md": "# hi"},
		Move:   []PathMove{{From: "main.go", To: "cmd/main.go"}},
	})
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if err := s.ApplyBatch("p", ops); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "cmd", "main.go")); err != nil {
		t.Fatalf("moved file missing on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "main.go")); !os.IsNotExist(err) {
		t.Fatal("old path should be removed after move")
	}
	if _, err := os.Stat(filepath.Join(root, "docs", "readme.md")); err != nil {
		t.Fatalf("created file missing on disk: %v", err)
	}
	if FindByPath(next, "cmd/main.go") == nil {
		t.Fatal("virtual tree missing moved file")
	}
}

func TestDirStoreSkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.js"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewDirStore(root)
	files, err := s.Get("p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if FindByPath(files, "node_modules/dep.js") != nil {
		t.Fatal("ignored directory leaked into the tree")
	}
	if FindByPath(files, "app.js") == nil {
		t.Fatal("regular file missing")
	}
}
