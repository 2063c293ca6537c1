package src

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.viewHeader())
		footerHeight := lipgloss.Height(m.viewFooter())
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width-2, m.height-headerHeight-footerHeight-2)
		m.dirlist.SetSize(m.width, m.height-headerHeight-footerHeight-2)
		m.textarea.SetWidth(m.width - 2)
		m.viewport.Width = m.width - 2
		m.viewport.Height = m.height - headerHeight - footerHeight - m.textarea.Height() - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {

		case "ctrl+c":
			return m, tea.Quit

		case "ctrl+d":
			m.mode = modeDir
			return m, nil

		case "ctrl+p":
			if m.agent != nil {
				if m.agent.State().Status == AgentPaused {
					m.agent.Resume()
					m.appendSubtle("agent resumed")
				} else {
					m.agent.Pause()
					m.appendSubtle("agent will pause before its next step")
				}
			}
			return m, nil

		case "ctrl+x":
			if m.godRun != nil {
				m.godRun.Stop()
				m.appendSubtle("stopping: remaining actions cleared")
			}
			return m, nil

		case "esc":
			switch m.mode {
			case modeChat, modeConfirm:
				if m.pendingPlan != nil {
					m.pendingPlan.Reject()
					m.pendingPlan = nil
					m.appendSubtle("plan rejected")
					m.mode = modeChat
					return m, nil
				}
				m.mode = modeList
				m.textarea.Reset()
			}
			return m, nil

		case "enter":
			switch m.mode {

			case modeList:
				if i, ok := m.list.SelectedItem().(workflow); ok {
					m.selected = i
					m.mode = modeChat
					m.textarea.Focus()
				}
				return m, nil

			case modeDir:
				item, ok := m.dirlist.SelectedItem().(dirItem)
				if !ok {
					return m, nil
				}

				if strings.HasPrefix(item.name, "✅") {
					return m.openProject()
				}

				if item.name == "⬆️ ../" {
					parent := filepath.Dir(m.working)
					if parent != m.working {
						m.working = parent
						m.dirlist.SetItems(loadDirs(m.working))
						m.dirlist.Select(0)
					}
					return m, nil
				}

				info, err := os.Stat(item.path)
				if err == nil && info.IsDir() {
					m.working = item.path
					m.dirlist.SetItems(loadDirs(m.working))
					m.dirlist.Select(0)
				}
				return m, nil

			case modeChat:
				raw := strings.TrimSpace(m.textarea.Value())
				if raw == "" {
					return m, nil
				}
				return m.runRequest(raw)

			case modeConfirm:
				answer := strings.ToLower(strings.TrimSpace(m.textarea.Value()))
				m.textarea.Reset()
				return m.resolveConfirm(answer)

			case modeAsk:
				answer := strings.TrimSpace(m.textarea.Value())
				m.textarea.Reset()
				m.mode = modeChat
				if m.godRun != nil {
					m.godRun.Answer(answer)
					m.appendSubtle("answer sent")
				}
				return m, m.waitGodEvent()
			}
		}

	case planMsg:
		m.isThinking = false
		if msg.err != nil {
			m.appendError(msg.err)
			return m, nil
		}
		m.pendingPlan = msg.plan
		m.renderPlan(msg.plan)
		m.mode = modeConfirm
		m.textarea.Placeholder = "y to apply, n to reject"
		return m, nil

	case execMsg:
		m.isThinking = false
		if msg.err != nil {
			m.appendError(msg.err)
			return m, nil
		}
		m.files = msg.files
		if msg.diff != "" {
			m.output += m.styleDiff(msg.diff)
		}
		m.output += m.style.success.Render("✔ changes applied") + "\n\n"
		m.renderOutput()
		return m, nil

	case agentEventMsg:
		if !msg.ok {
			m.agentEvents = nil
			return m, nil
		}
		return m.handleAgentEvent(msg.ev)

	case godStartMsg:
		if msg.err != nil {
			m.isThinking = false
			m.appendError(msg.err)
			return m, nil
		}
		m.godRun = msg.run
		m.godEvents = msg.events
		return m, m.waitGodEvent()

	case godEventMsg:
		if !msg.ok {
			m.godEvents = nil
			return m, nil
		}
		return m.handleGodEvent(msg.ev)
	}

	var cmd tea.Cmd
	var newCmd tea.Cmd
	switch m.mode {
	case modeDir:
		m.dirlist, newCmd = m.dirlist.Update(msg)
	case modeList:
		m.list, newCmd = m.list.Update(msg)
	case modeChat, modeConfirm, modeAsk:
		var textareaCmd, viewportCmd tea.Cmd
		m.textarea, textareaCmd = m.textarea.Update(msg)
		m.viewport, viewportCmd = m.viewport.Update(msg)
		newCmd = tea.Batch(textareaCmd, viewportCmd)
	}
	cmd = tea.Batch(cmd, newCmd)

	if m.isThinking {
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmd = tea.Batch(cmd, spinnerCmd)
	}
	return m, cmd
}

func (m *Model) openProject() (tea.Model, tea.Cmd) {
	if m.base.Project == "" {
		m.base.Project = filepath.Base(m.working)
	}
	if ds, ok := m.store.(*DirStore); ok {
		ds.Root = m.working
	}
	files, err := m.store.Get(m.base.Project)
	if err != nil {
		m.appendError(err)
		return m, nil
	}
	m.files = files
	m.mode = modeList
	m.appendSubtle(fmt.Sprintf("opened %s (%d files)", m.working, len(SortedPaths(files))))
	return m, nil
}

// runRequest dispatches the typed request to the selected workflow.
func (m *Model) runRequest(raw string) (tea.Model, tea.Cmd) {
	m.textarea.Reset()
	m.output += m.style.accent.Render("You: ") + raw + "\n\n"
	m.renderOutput()

	_ = m.store.AppendMessage(m.base.Project, ChatMessage{Role: "user", Text: raw, At: time.Now()})

	m.isThinking = true

	switch m.selected.name {
	case "agent":
		m.thinking = "running agent"
		m.agent = NewAgent(m.eng, m.base)
		m.agentEvents = m.agent.Run(m.ctx, raw, m.files)
		return m, tea.Batch(m.waitAgentEvent(), m.spinner.Tick)

	case "god":
		m.thinking = "planning actions"
		files := m.files
		eng, base, reg, ctx := m.eng, m.base, m.reg, m.ctx
		cmd := func() tea.Msg {
			queue, err := eng.PlanActions(ctx, base, raw, files, reg)
			if err != nil {
				return godStartMsg{err: err}
			}
			run := NewGodRun(eng, base, reg, files, queue)
			return godStartMsg{run: run, events: run.Run(ctx)}
		}
		return m, tea.Batch(cmd, m.spinner.Tick)

	default: // plan
		m.thinking = "drafting plan"
		files := m.files
		cmd := func() tea.Msg {
			plan, err := m.eng.ProposePlan(m.ctx, m.base, raw, files)
			return planMsg{plan: plan, err: err}
		}
		return m, tea.Batch(cmd, m.spinner.Tick)
	}
}

// resolveConfirm handles the y/n answer for a pending plan or special action.
func (m *Model) resolveConfirm(answer string) (tea.Model, tea.Cmd) {
	plan := m.pendingPlan
	m.pendingPlan = nil
	m.mode = modeChat
	m.textarea.Placeholder = "Describe what you want to change..."
	if plan == nil {
		return m, nil
	}
	if answer != "y" && answer != "yes" {
		plan.Reject()
		m.appendSubtle("plan rejected")
		return m, nil
	}

	if plan.Special != nil {
		m.appendSubtle(fmt.Sprintf("confirmed: %s %s", plan.Special.Kind, plan.Special.Payload))
		// Project-level actions run against the store owner, not the tree.
		return m, nil
	}

	m.isThinking = true
	m.thinking = "applying plan"
	before := m.files
	cmd := func() tea.Msg {
		after, err := m.eng.ExecutePlan(m.ctx, m.base, plan, before)
		if err != nil {
			return execMsg{err: err}
		}
		return execMsg{files: after, diff: DiffChangeSet(before, after)}
	}
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) handleAgentEvent(ev AgentEvent) (tea.Model, tea.Cmd) {
	if len(ev.State.Logs) > 0 {
		m.appendSubtle(ev.State.Logs[len(ev.State.Logs)-1])
	}
	switch ev.State.Status {
	case AgentFinished:
		m.isThinking = false
		if ev.Files != nil {
			if diff := DiffChangeSet(m.files, ev.Files); diff != "" {
				m.output += m.styleDiff(diff)
			}
			m.files = ev.Files
		}
		m.output += m.style.success.Render("✔ agent finished") + "\n\n"
		m.renderOutput()
		m.agent = nil
		return m, nil
	case AgentError:
		m.isThinking = false
		m.appendError(ev.Err)
		m.agent = nil
		return m, nil
	}
	return m, m.waitAgentEvent()
}

func (m *Model) handleGodEvent(ev GodEvent) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case GodStarted:
		m.appendSubtle("action queue started")
	case GodStep:
		m.appendSubtle(fmt.Sprintf("step %d %s %s — %s",
			ev.Index+1, ev.Action.Type, ev.Action.Selector, ev.Action.Reasoning))
	case GodQuestion:
		m.isThinking = false
		m.output += m.style.accent.Render("Vibe asks: ") + ev.Action.Payload + "\n"
		m.renderOutput()
		m.mode = modeAsk
		m.textarea.Placeholder = "Answer..."
		return m, nil
	case GodFinished:
		m.isThinking = false
		if m.godRun != nil {
			m.files = m.godRun.Files()
		}
		m.output += m.style.success.Render("✔ objective complete") + "\n\n"
		m.renderOutput()
		m.godRun = nil
		return m, nil
	case GodFailed:
		m.isThinking = false
		m.appendError(ev.Err)
		m.godRun = nil
		return m, nil
	case GodStopped:
		m.isThinking = false
		m.appendSubtle("run stopped")
		m.godRun = nil
		return m, nil
	}
	return m, m.waitGodEvent()
}

func (m *Model) waitAgentEvent() tea.Cmd {
	ch := m.agentEvents
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		return agentEventMsg{ev: ev, ok: ok}
	}
}

func (m *Model) waitGodEvent() tea.Cmd {
	ch := m.godEvents
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		return godEventMsg{ev: ev, ok: ok}
	}
}

func (m *Model) renderPlan(p *Plan) {
	var b strings.Builder
	b.WriteString(m.style.accent.Render("Vibe proposes:") + "\n")
	b.WriteString(p.Reasoning + "\n")
	writePaths := func(verb string, paths []string) {
		for _, path := range paths {
			b.WriteString(m.style.subtle.Render(fmt.Sprintf("  %s %s", verb, path)) + "\n")
		}
	}
	writePaths("create", p.Ops.Create)
	writePaths("update", p.Ops.Update)
	writePaths("delete", p.Ops.Delete)
	for _, mv := range p.Ops.Move {
		b.WriteString(m.style.subtle.Render(fmt.Sprintf("  move   %s → %s", mv.From, mv.To)) + "\n")
	}
	for _, cp := range p.Ops.Copy {
		b.WriteString(m.style.subtle.Render(fmt.Sprintf("  copy   %s → %s", cp.From, cp.To)) + "\n")
	}
	if p.Special != nil {
		b.WriteString(m.style.error.Render("⚠ "+p.Special.Confirm) + "\n")
	}
	b.WriteString(m.style.help.Render("apply? (y/n)") + "\n")
	m.output += b.String()
	m.renderOutput()
}

func (m *Model) styleDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			b.WriteString(m.style.diffAdd.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(m.style.diffDel.Render(line))
		default:
			b.WriteString(m.style.subtle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) appendError(err error) {
	m.output += m.style.error.Render(fmt.Sprintf("❌ %v", err)) + "\n"
	m.renderOutput()
}

func (m *Model) appendSubtle(s string) {
	m.output += m.style.subtle.Render(s) + "\n"
	m.renderOutput()
}

func (m *Model) renderOutput() {
	m.viewport.SetContent(m.output)
	m.viewport.GotoBottom()
}
