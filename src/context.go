package src

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Context limits keep prompts inside provider windows. Oversized files are
// clipped, never dropped silently from the tree view.
const (
	ctxMaxFiles     = 300
	ctxMaxTotal     = 1_200_000
	ctxPerFileLimit = 80_000
)

func fenceLangFromExt(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "go":
		return "go"
	case "py":
		return "python"
	case "js", "jsx":
		return "javascript"
	case "ts", "tsx":
		return "ts"
	case "rs":
		return "rust"
	case "rb":
		return "ruby"
	case "java":
		return "java"
	case "c", "h":
		return "c"
	case "cpp", "hpp", "cc", "cxx":
		return "cpp"
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "md":
		return "md"
	case "sh":
		return "bash"
	case "toml":
		return "toml"
	case "html":
		return "html"
	case "css":
		return "css"
	default:
		return ""
	}
}

func humanSize(n int) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.0f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// BuildFileContext serializes the virtual tree into the snapshot block
// every planner/coder prompt carries: a tree view plus fenced file bodies,
// capped by count and size.
func BuildFileContext(nodes []*FileNode) string {
	files := make([]*FileNode, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == NodeFile {
			files = append(files, n)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var included []*FileNode
	total := 0
	for _, f := range files {
		if len(included) >= ctxMaxFiles || total >= ctxMaxTotal {
			break
		}
		included = append(included, f)
		add := len(f.Content)
		if add > ctxPerFileLimit {
			add = ctxPerFileLimit
		}
		total += add
	}

	var filesSection strings.Builder
	for _, f := range included {
		content := f.Content
		if len(content) > ctxPerFileLimit {
			content = content[:ctxPerFileLimit]
		}
		filesSection.WriteString("\n### ")
		filesSection.WriteString(f.Path)
		filesSection.WriteString("\n```")
		filesSection.WriteString(fenceLangFromExt(path.Ext(f.Path)))
		filesSection.WriteString("\n")
		filesSection.WriteString(content)
		filesSection.WriteString("\n```\n")
	}

	var out strings.Builder
	out.WriteString("## PROJECT SNAPSHOT\n")
	out.WriteString(fmt.Sprintf("- Files included: %d (limit %d)\n", len(included), ctxMaxFiles))
	out.WriteString(fmt.Sprintf("- Size included: %s (limit %s)\n", humanSize(total), humanSize(ctxMaxTotal)))
	out.WriteString("\n### Tree\n```\n")
	out.WriteString(RenderTree(nodes))
	out.WriteString("\n```\n")
	out.WriteString(filesSection.String())
	return out.String()
}
