package src

import (
	"fmt"
	"strings"
	"time"
)

// MemoryLogPath is where the project journal lives inside the tree.
const MemoryLogPath = "vibe/memory.md"

const memoryTailLimit = 8_000

// ReadMemory returns the journal content, or "" when the project has none.
func ReadMemory(files []*FileNode) string {
	if n := FindByPath(files, MemoryLogPath); n != nil && n.Type == NodeFile {
		return n.Content
	}
	return ""
}

// MemoryTail returns the most recent entries, trimmed to whole lines,
// so prompts stay bounded no matter how long the project lives.
func MemoryTail(files []*FileNode) string {
	s := ReadMemory(files)
	if len(s) <= memoryTailLimit {
		return s
	}
	s = s[len(s)-memoryTailLimit:]
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// AppendMemory produces the change-set that appends one dated journal
// entry. The log is append-only: existing content is never rewritten.
func AppendMemory(files []*FileNode, entry string, now time.Time) ChangeSet {
	entry = strings.TrimSpace(entry)
	block := fmt.Sprintf("## %s\n\n%s\n\n", now.UTC().Format("2006-01-02 15:04"), entry)

	prev := FindByPath(files, MemoryLogPath)
	if prev == nil {
		return ChangeSet{Create: map[string]string{MemoryLogPath: block}}
	}
	return ChangeSet{Update: map[string]string{MemoryLogPath: prev.Content + block}}
}
