package tui

import (
	"fmt"
	"strings"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

func (m model) renderPipelinesWorkbenchText(t theme, layout uiLayout) string {
	width := layout.tableWidth()
	intro := []string{
		t.panelSubtle.Render("Select a pipeline, then act on it"),
	}
	primary := []string{t.tableHeader.Render(clip(pipelineRowText("", "PIPELINE", "STATUS", "STAGE", "BRANCH"), width))}
	if len(m.pipelines) == 0 {
		primary = append(primary, t.panelSubtle.Render("no pipelines loaded"))
	}
	for index, item := range m.pipelines {
		cursor := " "
		if index == m.pipelineCursor {
			cursor = ">"
		}
		row := clip(pipelineRowText(cursor, item.Name, statusGlyph(item.Status)+" "+string(item.Status), item.Stage, item.Branch), width)
		if index == m.pipelineCursor {
			primary = append(primary, t.tableSelected.Render(row))
			continue
		}
		primary = append(primary, t.statusStyle(item.Status).Render(row))
	}
	tail := []string{t.panelSubtle.Render("actions: r retry | b rollback | e escalate | l/enter logs")}
	if strings.TrimSpace(m.errorText) != "" {
		tail = append(tail, t.panelError.Render("error: "+m.errorText))
	}
	return workbenchBody(intro, primary, tail)
}

func pipelineRowText(cursor, name, status, stage, branch string) string {
	return fmt.Sprintf("%-1s %-22s %-12s %-12s %s", cursor, name, status, stage, branch)
}

func (m model) renderPipelinesInspectorText() string {
	selected, ok := m.selectedPipeline()
	if !ok {
		return strings.Join([]string{
			"Pipeline Detail",
			"",
			"load pipelines and select one",
		}, "\n")
	}

	lines := []string{
		"Pipeline Detail",
		"",
		"name      " + fallbackText(selected.Name, "unnamed"),
		"id        " + fallbackText(selected.ID, "n/a"),
		"status    " + fallbackText(string(selected.Status), "unknown"),
		"stage     " + fallbackText(selected.Stage, "n/a"),
		"branch    " + fallbackText(selected.Branch, "n/a"),
		"commit    " + fallbackText(selected.Commit, "n/a"),
		"last run  " + fallbackText(selected.LastRun, "n/a"),
	}
	if selected.Duration != "" {
		lines = append(lines, "duration  "+selected.Duration)
	}
	if selected.Status == pipeline.StatusRunning && selected.Progress > 0 {
		lines = append(lines, fmt.Sprintf("progress  %d%%", selected.Progress))
	}
	if strings.TrimSpace(selected.Error) != "" {
		lines = append(lines, "error     "+selected.Error)
	}
	if selected.URL != "" {
		lines = append(lines, "url       "+selected.URL)
	}
	if m.lastAction != nil && m.lastAction.PipelineID == selected.ID {
		lines = append(lines,
			"",
			"Last Action",
			string(m.lastAction.Action)+" at "+m.lastAction.Timestamp,
			m.lastAction.Message,
		)
	}
	if m.logs.PipelineID == selected.ID && len(m.logs.Logs) > 0 {
		lines = append(lines, "", "Logs")
		lines = append(lines, m.logs.Logs...)
	}
	return strings.Join(lines, "\n")
}
