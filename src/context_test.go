package src

import (
	"strings"
	"testing"
)

func TestBuildFileContextIncludesTreeAndContent(t *testing.T) {
	files := FromMap(map[string]string{
		"src/main.go": "package main",
		"README.md":   "# project",
	})
	out := BuildFileContext(files)
	if !strings.Contains(out, "## PROJECT SNAPSHOT") {
		t.Fatalf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "package main") || !strings.Contains(out, "# project") {
		t.Fatal("file contents missing")
	}
	if !strings.Contains(out, "```go") {
		t.Fatal("missing language fence for .go")
	}
}

func TestBuildFileContextCapsHugeFiles(t *testing.T) {
	files := FromMap(map[string]string{
		"big.txt": strings.Repeat("x", ctxPerFileLimit+1000),
	})
	out := BuildFileContext(files)
	if len(out) > ctxPerFileLimit+2000 {
		t.Fatalf("per-file cap not applied, output %d bytes", len(out))
	}
}
