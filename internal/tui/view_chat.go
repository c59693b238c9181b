package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

func (m model) renderChatWorkbenchText(t theme, _ uiLayout) string {
	hint := "tab to focus input, enter to send"
	if m.chatTyping() {
		hint = "enter to send, pgup/pgdown to scroll, tab to leave"
	}
	intro := []string{t.panelSubtle.Render(hint)}
	primary := []string{
		m.chatViewport.View(),
		"",
		m.chatInput.View(),
	}
	var tail []string
	if m.chatPending {
		tail = append(tail, t.spinner.Render(m.spinner.View()+" waiting for reply"))
	}
	return workbenchBody(intro, primary, tail)
}

func renderChatTranscript(t theme, lines []chatLine, width int) string {
	if len(lines) == 0 {
		return t.panelSubtle.Render("ask the assistant about pipeline status, failures or next steps")
	}
	wrap := lipgloss.NewStyle().Width(maxInt(10, width))
	blocks := make([]string, 0, len(lines))
	for _, line := range lines {
		var label string
		body := wrap.Render(line.Text)
		switch line.Role {
		case "user":
			label = t.chatUser.Render("you")
		case "error":
			label = t.chatError.Render("error")
		default:
			label = t.chatAssistant.Render("assistant")
			if line.Route != "" || line.Type != "" {
				label += t.chatMeta.Render(" [" + fallbackText(line.Route, "?") + "/" + fallbackText(line.Type, "?") + "]")
			}
			body = renderMarkdown(t, line.Text, width)
		}
		blocks = append(blocks, label+"\n"+body)
	}
	return strings.Join(blocks, "\n\n")
}

func (m model) renderChatInspectorText() string {
	var last *chatLine
	for index := len(m.chatLines) - 1; index >= 0; index-- {
		if m.chatLines[index].Role == "assistant" {
			last = &m.chatLines[index]
			break
		}
	}
	if last == nil {
		return strings.Join([]string{
			"Routing",
			"",
			"simple questions get a quick answer",
			"investigations run the workflow agent",
		}, "\n")
	}
	lines := []string{
		"Routing",
		"",
		"route   " + fallbackText(last.Route, "n/a"),
		"type    " + fallbackText(last.Type, "n/a"),
		"reason  " + fallbackText(last.Reason, "n/a"),
		"at      " + formatTime(last.At),
	}
	return strings.Join(lines, "\n")
}
