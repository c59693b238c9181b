package tui

import (
	"fmt"
	"strings"

	"github.com/dwizi/devops-assistant/internal/store"
)

func (m model) renderEscalationsWorkbenchText(t theme, layout uiLayout) string {
	width := layout.tableWidth()
	intro := []string{
		t.panelSubtle.Render("Escalation notifications, newest first"),
	}
	primary := []string{t.tableHeader.Render(clip(escalationRowText("", "PIPELINE", "STATUS", "CHANNEL", "CREATED"), width))}
	if len(m.escalations) == 0 {
		primary = append(primary, t.panelSubtle.Render("no escalations recorded"))
	}
	for index, item := range m.escalations {
		cursor := " "
		if index == m.escalationCursor {
			cursor = ">"
		}
		row := clip(escalationRowText(cursor, fallbackText(item.PipelineName, item.PipelineID), item.Status, fallbackText(item.Channel, "-"), item.CreatedAt.UTC().Format("01-02 15:04")), width)
		switch {
		case index == m.escalationCursor:
			primary = append(primary, t.tableSelected.Render(row))
		case item.Status == store.EscalationStatusFailed:
			primary = append(primary, t.panelError.Render(row))
		default:
			primary = append(primary, t.tableCell.Render(row))
		}
	}
	tail := []string{t.panelSubtle.Render("escalate from the pipelines view with e")}
	if strings.TrimSpace(m.errorText) != "" {
		tail = append(tail, t.panelError.Render("error: "+m.errorText))
	}
	return workbenchBody(intro, primary, tail)
}

func escalationRowText(cursor, pipelineName, status, channel, created string) string {
	return fmt.Sprintf("%-1s %-22s %-10s %-9s %s", cursor, pipelineName, status, channel, created)
}

func (m model) renderEscalationsInspectorText() string {
	selected, ok := m.selectedEscalation()
	if !ok {
		return strings.Join([]string{
			"Escalation Detail",
			"",
			"no escalation selected",
		}, "\n")
	}
	lines := []string{
		"Escalation Detail",
		"",
		"id        " + fallbackText(selected.ID, "n/a"),
		"pipeline  " + fallbackText(selected.PipelineID, "n/a"),
		"status    " + fallbackText(selected.Status, "unknown"),
		"channel   " + fallbackText(selected.Channel, "n/a"),
		fmt.Sprintf("attempts  %d", selected.Attempts),
		"created   " + formatTime(selected.CreatedAt),
		"updated   " + formatTime(selected.UpdatedAt),
	}
	if strings.TrimSpace(selected.Error) != "" {
		lines = append(lines, "error     "+selected.Error)
	}
	if strings.TrimSpace(selected.Message) != "" {
		lines = append(lines, "", "Message", selected.Message)
	}
	return strings.Join(lines, "\n")
}
