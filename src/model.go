package src

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeDir mode = iota
	modeList
	modeChat
	modeConfirm
	modeAsk
)

const logo = `
██╗   ██╗██╗██████╗ ███████╗
██║   ██║██║██╔══██╗██╔════╝
██║   ██║██║██████╔╝█████╗
╚██╗ ██╔╝██║██╔══██╗██╔══╝
 ╚████╔╝ ██║██████╔╝███████╗
  ╚═══╝  ╚═╝╚═════╝ ╚══════╝
        P L A N  ·  B U I L D  ·  S H I P
`

type workflow struct{ name, desc string }

func (w workflow) Title() string       { return w.name }
func (w workflow) Description() string { return w.desc }
func (w workflow) FilterValue() string { return w.name }

type dirItem struct {
	name string
	path string
}

func (d dirItem) Title() string       { return d.name }
func (d dirItem) Description() string { return d.path }
func (d dirItem) FilterValue() string { return d.name }

type planMsg struct {
	plan *Plan
	err  error
}

type execMsg struct {
	files []*FileNode
	diff  string
	err   error
}

type agentEventMsg struct {
	ev AgentEvent
	ok bool
}

type godEventMsg struct {
	ev GodEvent
	ok bool
}

type godStartMsg struct {
	run    *GodRun
	events <-chan GodEvent
	err    error
}

type Model struct {
	ctx   context.Context
	eng   *Engine
	store ProjectStore
	base  CallRequest
	reg   AffordanceRegistry

	working string
	files   []*FileNode

	mode     mode
	selected workflow

	pendingPlan *Plan
	agent       *Agent
	agentEvents <-chan AgentEvent
	godRun      *GodRun
	godEvents   <-chan GodEvent

	isThinking bool
	thinking   string
	output     string

	list     list.Model
	dirlist  list.Model
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	style    styles

	Program *tea.Program
}

type styles struct {
	header   lipgloss.Style
	subtitle lipgloss.Style
	list     lipgloss.Style
	help     lipgloss.Style
	footer   lipgloss.Style
	accent   lipgloss.Style
	error    lipgloss.Style
	success  lipgloss.Style
	thinking lipgloss.Style
	subtle   lipgloss.Style
	diffAdd  lipgloss.Style
	diffDel  lipgloss.Style
}

func NewModel(ctx context.Context, eng *Engine, store ProjectStore, base CallRequest, reg AffordanceRegistry, startDir string) *Model {
	dirList := list.New(loadDirs(startDir), list.NewDefaultDelegate(), 0, 0)
	dirList.Title = "Choose Project Directory"
	dirList.SetShowHelp(false)
	dirList.SetShowStatusBar(false)
	dirList.SetFilteringEnabled(false)

	l := list.New(defaultWorkflows(), list.NewDefaultDelegate(), 0, 0)
	l.Title = "Workflows"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)

	ta := textarea.New()
	ta.Placeholder = "Describe what you want to change..."
	ta.Focus()
	ta.SetHeight(3)

	st := newStyles()

	vp := viewport.New(0, 0)
	vp.SetContent("Welcome to Vibe! Pick a workflow and describe your change.")

	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = st.thinking

	return &Model{
		ctx:      ctx,
		eng:      eng,
		store:    store,
		base:     base,
		reg:      reg,
		working:  startDir,
		mode:     modeDir,
		list:     l,
		dirlist:  dirList,
		textarea: ta,
		viewport: vp,
		spinner:  s,
		style:    st,
	}
}

func newStyles() styles {
	return styles{
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555")).
			Faint(true).
			Padding(0, 1),

		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1),

		list: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#AD8CFF")),

		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777")),

		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777")).
			Faint(true),

		accent: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AD8CFF")),

		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5C5C")).
			Bold(true),

		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3DDC97")).
			Bold(true),

		thinking: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3DDC97")),

		subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")),

		diffAdd: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3DDC97")),

		diffDel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5C5C")),
	}
}

func defaultWorkflows() []list.Item {
	return []list.Item{
		workflow{"plan", "Propose a plan, review it, then apply"},
		workflow{"agent", "Autonomous multi-task run with self-correction"},
		workflow{"god", "Drive the app end to end, one action at a time"},
	}
}

func loadDirs(path string) []list.Item {
	if path == "" {
		path, _ = os.Getwd()
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return []list.Item{dirItem{name: "(error reading dir)", path: path}}
	}
	var items []list.Item

	items = append(items, dirItem{name: fmt.Sprintf("✅ Use this directory (%s)", filepath.Base(path)), path: path})

	if path != "/" {
		items = append(items, dirItem{name: "⬆️ ../", path: filepath.Dir(path)})
	}

	for _, e := range entries {
		if e.IsDir() && !isIgnoredDir(e.Name()) {
			items = append(items, dirItem{name: "📁 " + e.Name() + "/", path: filepath.Join(path, e.Name())})
		}
	}
	return items
}

func (m *Model) Init() tea.Cmd { return nil }
