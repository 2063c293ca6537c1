package src

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	header := m.viewHeader()
	body := m.viewBody()
	footer := m.viewFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) viewHeader() string {
	logoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AD8CFF")).Bold(true).
		Background(lipgloss.Color("#000000")).UnsetBackground()
	subtitle := m.style.header.Render("Vibe Engine")
	styledLogo := logoStyle.Render(logo)

	return lipgloss.JoinVertical(lipgloss.Left, styledLogo, subtitle)
}

func (m *Model) viewBody() string {
	switch m.mode {
	case modeDir:
		return m.style.list.Render(m.dirlist.View())
	case modeList:
		return m.style.list.Render(m.list.View())
	case modeChat, modeConfirm, modeAsk:
		return m.viewChat()
	default:
		return ""
	}
}

func (m *Model) viewFooter() string {
	help := "ctrl+c: quit"
	switch m.mode {
	case modeChat:
		help += " | ctrl+d: change directory | esc: workflows"
		if m.agent != nil {
			help += " | ctrl+p: pause/resume agent"
		}
		if m.godRun != nil {
			help += " | ctrl+x: stop run"
		}
	case modeConfirm:
		help += " | y: apply | n or esc: reject"
	}
	return m.style.footer.Render(help)
}

func (m *Model) viewChat() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.style.subtitle.Render(fmt.Sprintf("Project: %s (%s) — %s", m.base.Project, m.selected.name, m.working)),
		m.viewport.View(),
		m.viewThinking(),
		m.textarea.View(),
	)
}

func (m *Model) viewThinking() string {
	if !m.isThinking {
		return ""
	}
	return m.style.thinking.Render(fmt.Sprintf("Vibe %s %s", m.spinner.View(), m.thinking))
}
