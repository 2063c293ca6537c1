package src

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
)

// edit represents a single line change in a diff.
type edit struct {
	tag string // " " same, "+" add, "-" del
	txt string
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	raw := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range raw {
		raw[i] = strings.TrimRight(raw[i], "\r")
	}
	return raw
}

// Diff returns a git-style unified diff between two versions of a file.
// Empty string means no change. Output is plain text; callers style it.
func Diff(rel, oldS, newS string) string {
	if oldS == newS {
		return ""
	}

	oldLines := splitLines(oldS)
	newLines := splitLines(newS)
	n, m := len(oldLines), len(newLines)

	// Build LCS table.
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	// Collect edits.
	var seq []edit
	i, j := 0, 0
	for i < n && j < m {
		if oldLines[i] == newLines[j] {
			seq = append(seq, edit{" ", oldLines[i]})
			i++
			j++
		} else if lcs[i+1][j] >= lcs[i][j+1] {
			seq = append(seq, edit{"-", oldLines[i]})
			i++
		} else {
			seq = append(seq, edit{"+", newLines[j]})
			j++
		}
	}
	for ; i < n; i++ {
		seq = append(seq, edit{"-", oldLines[i]})
	}
	for ; j < m; j++ {
		seq = append(seq, edit{"+", newLines[j]})
	}

	var out strings.Builder
	fmt.Fprintf(&out, "diff --git a/%s b/%s\n", rel, rel)
	fmt.Fprintf(&out, "index %s..%s 100644\n", shortSHA(oldS), shortSHA(newS))
	fmt.Fprintf(&out, "--- a/%s\n", rel)
	fmt.Fprintf(&out, "+++ b/%s\n", rel)

	const ctx = 3
	var hunk []edit
	var startOld, startNew int
	countOld, countNew := 0, 0

	printHunk := func() {
		if len(hunk) == 0 {
			return
		}
		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", startOld+1, countOld, startNew+1, countNew)
		for _, e := range hunk {
			out.WriteString(e.tag)
			out.WriteString(e.txt)
			out.WriteString("\n")
		}
		hunk = hunk[:0]
	}

	inHunk := false
	for idx := range seq {
		e := seq[idx]
		if e.tag != " " {
			if !inHunk {
				inHunk = true
				startOld = max(0, idx-ctx)
				startNew = startOld
				hunk = append(hunk, seq[max(0, idx-ctx):idx]...)
				countOld, countNew = 0, 0
				for _, c := range hunk {
					if c.tag != "+" {
						countOld++
					}
					if c.tag != "-" {
						countNew++
					}
				}
			}
			hunk = append(hunk, e)
			if e.tag != "+" {
				countOld++
			}
			if e.tag != "-" {
				countNew++
			}
		} else if inHunk {
			hunk = append(hunk, e)
			countOld++
			countNew++

			end := idx + ctx + 1
			if end > len(seq) {
				end = len(seq)
			}
			if !hasChangeAhead(seq[idx+1 : end]) {
				printHunk()
				inHunk = false
			}
		}
	}
	if inHunk {
		printHunk()
	}

	return out.String()
}

// DiffChangeSet renders every file delta between two snapshots of a project.
func DiffChangeSet(before, after []*FileNode) string {
	oldM := ToMap(before)
	newM := ToMap(after)

	seen := map[string]bool{}
	var paths []string
	for p := range oldM {
		paths = append(paths, p)
		seen[p] = true
	}
	for p := range newM {
		if !seen[p] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var out strings.Builder
	for _, p := range paths {
		o, hadOld := oldM[p]
		n, hasNew := newM[p]
		switch {
		case hadOld && !hasNew:
			fmt.Fprintf(&out, "deleted: %s\n", p)
		case !hadOld && hasNew:
			fmt.Fprintf(&out, "created: %s (%s)\n", p, humanSize(len(n)))
		case o != n:
			out.WriteString(Diff(p, o, n))
		}
	}
	return out.String()
}

// shortSHA returns a short SHA1-like index label for diff headers.
func shortSHA(s string) string {
	h := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", h[:3])
}

func hasChangeAhead(next []edit) bool {
	for _, e := range next {
		if e.tag == "+" || e.tag == "-" {
			return true
		}
	}
	return false
}
