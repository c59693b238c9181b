package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
)

func (m model) renderOverviewWorkbenchText(t theme, layout uiLayout) string {
	contentWidth := layout.Workbench.Width - 6
	contentWidth = maxInt(36, contentWidth)
	colWidth := maxInt(10, (contentWidth-4)/3)
	colStyle := lipgloss.NewStyle().Width(colWidth)

	summary := pipeline.Summarize(m.pipelines, 0)
	pipelinesCard := colStyle.Render(strings.Join([]string{
		t.cardLabel.Render("Pipelines"),
		t.cardValue.Render(fmt.Sprintf("%d", summary.Total)),
		t.panelSubtle.Render(fmt.Sprintf("running %d  unknown %d", summary.Running, summary.Unknown)),
	}, "\n"))
	failedCard := colStyle.Render(strings.Join([]string{
		t.cardLabel.Render("Failed"),
		t.panelError.Bold(true).Render(fmt.Sprintf("%d", summary.Failed)),
		t.panelSubtle.Render(fmt.Sprintf("succeeded %d", summary.Success)),
	}, "\n"))
	escalationsCard := colStyle.Render(strings.Join([]string{
		t.cardLabel.Render("Escalations"),
		t.cardValue.Render(fmt.Sprintf("%d", len(m.escalations))),
		t.panelSubtle.Render(fmt.Sprintf("undelivered %d", m.undeliveredEscalations())),
	}, "\n"))

	intro := []string{
		t.panelSubtle.Render("Pipeline health across the dashboard"),
	}
	primary := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, pipelinesCard, " ", failedCard, " ", escalationsCard),
		"",
		t.panelSubtle.Render("Needs attention"),
	}
	if len(summary.Details) == 0 {
		primary = append(primary, t.panelSuccess.Render("all pipelines healthy"))
	}
	for _, detail := range summary.Details {
		primary = append(primary, clip(t.panelError.Render("✗ ")+detail.Name+": "+detail.Error, contentWidth))
	}
	tail := []string{
		t.panelSubtle.Render("Quick Hints"),
		"2 pipelines  3 escalations  4 chat  ctrl+r refresh",
	}
	if !m.lastRefresh.IsZero() {
		tail = append(tail, "", t.panelSubtle.Render("last refresh: "+formatTime(m.lastRefresh)))
	}
	return workbenchBody(intro, primary, tail)
}

func (m model) renderOverviewInspectorText() string {
	lines := []string{
		"health summary",
		"",
		"api status  " + fallbackText(m.health.Status, "unknown"),
		"timestamp   " + fallbackText(m.health.Timestamp, "n/a"),
		fmt.Sprintf("pipelines   %d", m.health.PipelinesCount),
		"overall     " + fallbackText(m.snapshot.Overall, "unknown"),
	}
	if m.heartbeatNote != "" {
		lines = append(lines, "heartbeat   "+m.heartbeatNote)
	}
	if len(m.snapshot.Components) > 0 {
		lines = append(lines, "", "components")
		for _, component := range m.snapshot.Components {
			lines = append(lines, componentLine(component))
		}
	}
	lines = append(lines,
		"",
		"focus zones:",
		"sidebar | workbench | inspector | help",
	)
	return strings.Join(lines, "\n")
}

func componentLine(component heartbeat.ComponentStatus) string {
	line := fmt.Sprintf("%-16s %s", component.Name, component.State)
	if component.Stale {
		line += " (stale)"
	}
	if component.Error != "" {
		line += " " + component.Error
	}
	return line
}

func (m model) undeliveredEscalations() int {
	count := 0
	for _, item := range m.escalations {
		if item.Status != store.EscalationStatusDelivered {
			count++
		}
	}
	return count
}
