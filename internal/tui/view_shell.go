package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

func (m model) renderView() string {
	if m.quitting {
		return "devops-assistant tui closed\n"
	}

	t := newTheme()
	layout := computeLayout(m.width, m.height)

	var body string
	if layout.Stacked {
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderNavStrip(t, layout),
			m.renderWorkbench(t, layout),
			m.renderInspector(t, layout),
		)
	} else {
		divider := t.panelSubtle.Render("│")
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderNavList(t, layout), divider,
			m.renderWorkbench(t, layout), divider,
			m.renderInspector(t, layout),
		)
	}

	screen := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(t, layout), body, m.renderFooter(t, layout))
	return t.appBG.Width(layout.Width).Height(layout.Height).Render(screen)
}

func (m model) headerChip(t theme) string {
	switch {
	case m.errorText != "":
		return t.chipError.Render("ERROR")
	case m.busy():
		return t.chipWarn.Render(m.spinner.View() + " BUSY")
	default:
		return t.chipSuccess.Render("READY")
	}
}

func (m model) renderHeader(t theme, layout uiLayout) string {
	width := frameInner(t.headerBox, layout.Width)
	half := maxInt(20, width/2)

	endpoint := fmt.Sprintf("api: %s | focus: %s", fallbackText(m.client.BaseURL(), "unset"), focusLabel(m.focus))
	clock := fmt.Sprintf("%s | utc %s", m.feedLabel(), m.clock.UTC().Format("15:04:05"))
	rows := []string{
		spread(t.brand.Render("DevOps Assistant Pipelines"), m.headerChip(t), width),
		spread(t.headerSub.Render(clip(endpoint, half)), t.headerSub.Render(clip(clock, half)), width),
	}
	return fitBox(t.headerBox, layout.Width, layout.HeaderHeight).Render(strings.Join(rows, "\n"))
}

// renderNavStrip is the one-line view switcher used in stacked mode.
func (m model) renderNavStrip(t theme, layout uiLayout) string {
	views := allViews()
	tabs := make([]string, len(views))
	for i, view := range views {
		style := t.sidebarItem
		if view == m.activeView {
			style = t.sidebarActive
		}
		tabs[i] = style.Render(fmt.Sprintf("%d:%s", i+1, viewLabel(view)))
	}
	strip := strings.Join(tabs, "  ")
	if m.focus == focusSidebar {
		strip = focusMarker("nav", true) + " " + strip
	}
	return fitBox(t.sidebarBox, layout.Nav.Width, layout.Nav.Height).Render(clip(strip, frameInner(t.sidebarBox, layout.Width)))
}

func (m model) renderNavList(t theme, layout uiLayout) string {
	width := frameInner(t.sidebarBox, layout.Nav.Width) - 2
	rows := []string{t.sidebarTitle.Render(focusMarker("Navigation", m.focus == focusSidebar)), ""}
	for i, view := range allViews() {
		pointer := " "
		if i == m.sidebarIndex {
			pointer = ">"
		}
		style := t.sidebarItem
		if view == m.activeView {
			style = t.sidebarActive
		}
		rows = append(rows, style.Render(clip(fmt.Sprintf("%s %d. %s", pointer, i+1, viewLabel(view)), width)))
	}
	rows = append(rows, "",
		t.sidebarInactive.Render("tab: next focus"),
		t.sidebarInactive.Render("enter: activate"),
	)
	return fitBox(t.sidebarBox, layout.Nav.Width, layout.Nav.Height).Render(strings.Join(rows, "\n"))
}

func (m model) renderWorkbench(t theme, layout uiLayout) string {
	render := m.renderOverviewWorkbenchText
	switch m.activeView {
	case viewPipelines:
		render = m.renderPipelinesWorkbenchText
	case viewEscalations:
		render = m.renderEscalationsWorkbenchText
	case viewChat:
		render = m.renderChatWorkbenchText
	}
	return renderPane(t, layout.Workbench, viewLabel(m.activeView), viewSubtitle(m.activeView), m.focus == focusWorkbench, render(t, layout))
}

var inspectorTitles = map[viewID]string{
	viewPipelines:   "Pipeline",
	viewEscalations: "Escalation",
	viewChat:        "Reply",
}

func (m model) renderInspector(t theme, layout uiLayout) string {
	title := fallbackText(inspectorTitles[m.activeView], "Inspector")
	return renderPane(t, layout.Inspector, title, string(m.activeView), m.focus == focusInspector, m.inspectorViewport.View())
}

// renderPane draws a titled pane. The focused pane gets the accent title.
func renderPane(t theme, pane paneSize, title, subtitle string, focused bool, body string) string {
	titleStyle := t.panelTitle
	if focused {
		titleStyle = t.panelAccent.Bold(true)
	}
	head := spread(titleStyle.Render(focusMarker(title, focused)), t.panelSubtle.Render(subtitle), frameInner(t.panelBox, pane.Width))
	return fitBox(t.panelBox, pane.Width, pane.Height).Render(head + "\n" + body)
}

func (m model) footerStatus(t theme) string {
	switch {
	case strings.TrimSpace(m.errorText) != "":
		return t.footerErr.Render("error: " + m.errorText)
	case m.busy():
		return t.footerWarn.Render("working: " + fallbackText(m.statusText, "loading"))
	default:
		return t.footerOK.Render("status: " + fallbackText(m.statusText, "idle"))
	}
}

func (m model) renderFooter(t theme, layout uiLayout) string {
	width := frameInner(t.footerBox, layout.Width)
	refreshed := "not refreshed yet"
	if !m.lastRefresh.IsZero() {
		refreshed = "refreshed " + m.lastRefresh.UTC().Format("15:04:05")
	}

	hints := m.help.View(m.keys)
	if m.focus == focusHelp {
		hints = t.footerKey.Render("› ") + hints
	}
	rows := []string{
		clip(t.footerInfo.Render(hints), width),
		spread(clip(m.footerStatus(t), maxInt(10, width-len(refreshed)-1)), t.footerInfo.Render(refreshed), width),
	}
	return fitBox(t.footerBox, layout.Width, layout.FooterHeight).Render(strings.Join(rows, "\n"))
}

// spread pads between left and right so the pair fills width cells.
func spread(left, right string, width int) string {
	if width <= 0 {
		return strings.TrimSpace(left + " " + right)
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return clip(left+" "+right, width)
	}
	return left + strings.Repeat(" ", gap) + right
}

// clip truncates to width cells, keeping styling intact.
func clip(value string, width int) string {
	if width <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if ansi.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return ansi.Truncate(value, width, "")
	}
	return ansi.Truncate(value, width, "...")
}

func fitBox(style lipgloss.Style, width, height int) lipgloss.Style {
	return style.
		Width(frameInner(style, width)).
		Height(maxInt(1, height-style.GetVerticalFrameSize()))
}

func frameInner(style lipgloss.Style, width int) int {
	return maxInt(1, width-style.GetHorizontalFrameSize())
}

var viewSubtitles = map[viewID]string{
	viewOverview:    "dashboard health",
	viewPipelines:   "status and actions",
	viewEscalations: "notification deliveries",
	viewChat:        "assistant router",
}

func viewSubtitle(view viewID) string {
	return fallbackText(viewSubtitles[view], viewSubtitles[viewOverview])
}

func focusMarker(label string, focused bool) string {
	if focused {
		return "› " + label
	}
	return "  " + label
}

func (m model) feedLabel() string {
	if m.streamConnected {
		return "feed: live"
	}
	return "feed: polling " + m.refreshEvery.String()
}
