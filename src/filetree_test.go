package src

import (
	"strings"
	"testing"
)

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"a/b.txt":    "a/b.txt",
		"/a/b.txt":   "a/b.txt",
		"./a/b.txt":  "a/b.txt",
		"a\\b.txt":   "a/b.txt",
		"a//b/":      "a/b",
		"a/../b.txt": "b.txt",
	}
	for in, want := range cases {
		if got := CleanPath(in); got != want {
			t.Fatalf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	files := FromMap(map[string]string{"a.txt": "x"})
	cp := Clone(files)
	cp[0].Content = "changed"
	if files[0].Content != "x" {
		t.Fatal("Clone shares node memory with the original")
	}
}

func TestRenderTree(t *testing.T) {
	files := FromMap(map[string]string{
		"src/main.go": "m",
		"src/util.go": "u",
		"README.md":   "r",
	})
	out := RenderTree(files)
	if !strings.Contains(out, "└─ src/") {
		t.Fatalf("missing folder marker:\n%s", out)
	}
	if !strings.Contains(out, "└─ main.go") || !strings.Contains(out, "└─ README.md") {
		t.Fatalf("missing files:\n%s", out)
	}
	if strings.Index(out, "README.md") > strings.Index(out, "src/") {
		t.Fatalf("expected lexical order:\n%s", out)
	}
}

func TestFindByPathNormalizes(t *testing.T) {
	files := FromMap(map[string]string{"a/b.txt": "x"})
	if FindByPath(files, "/a/b.txt") == nil {
		t.Fatal("lookup should normalize the query path")
	}
	if FindByPath(files, "a/missing.txt") != nil {
		t.Fatal("expected nil for a missing path")
	}
}
