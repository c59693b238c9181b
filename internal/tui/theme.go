package tui

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

// palette uses ANSI 256 codes so the dashboard renders the same on most
// terminals.
type palette struct {
	border  color.Color
	text    color.Color
	bright  color.Color
	muted   color.Color
	subtle  color.Color
	accent  color.Color
	soft    color.Color
	success color.Color
	warn    color.Color
	danger  color.Color
}

func defaultPalette() palette {
	return palette{
		border:  lipgloss.Color("238"),
		text:    lipgloss.Color("252"),
		bright:  lipgloss.Color("255"),
		muted:   lipgloss.Color("246"),
		subtle:  lipgloss.Color("243"),
		accent:  lipgloss.Color("111"),
		soft:    lipgloss.Color("151"),
		success: lipgloss.Color("78"),
		warn:    lipgloss.Color("214"),
		danger:  lipgloss.Color("203"),
	}
}

type theme struct {
	appBG lipgloss.Style
	brand lipgloss.Style

	headerBox lipgloss.Style
	headerSub lipgloss.Style

	sidebarBox      lipgloss.Style
	sidebarTitle    lipgloss.Style
	sidebarItem     lipgloss.Style
	sidebarActive   lipgloss.Style
	sidebarInactive lipgloss.Style

	panelBox     lipgloss.Style
	panelTitle   lipgloss.Style
	panelSubtle  lipgloss.Style
	panelAccent  lipgloss.Style
	panelWarn    lipgloss.Style
	panelError   lipgloss.Style
	panelSuccess lipgloss.Style

	footerBox  lipgloss.Style
	footerInfo lipgloss.Style
	footerErr  lipgloss.Style
	footerWarn lipgloss.Style
	footerOK   lipgloss.Style
	footerKey  lipgloss.Style

	chipWarn    lipgloss.Style
	chipError   lipgloss.Style
	chipSuccess lipgloss.Style

	cardValue lipgloss.Style
	cardLabel lipgloss.Style

	inputPrompt      lipgloss.Style
	inputText        lipgloss.Style
	inputPlaceholder lipgloss.Style

	tableHeader   lipgloss.Style
	tableCell     lipgloss.Style
	tableSelected lipgloss.Style

	statusSuccess lipgloss.Style
	statusFailed  lipgloss.Style
	statusRunning lipgloss.Style
	statusUnknown lipgloss.Style

	chatUser      lipgloss.Style
	chatAssistant lipgloss.Style
	chatError     lipgloss.Style
	chatMeta      lipgloss.Style

	mdHeading lipgloss.Style
	mdStrong  lipgloss.Style
	mdEmph    lipgloss.Style
	mdCode    lipgloss.Style
	mdLink    lipgloss.Style
	mdQuote   lipgloss.Style
	mdBullet  lipgloss.Style

	spinner lipgloss.Style
}

func newTheme() theme {
	p := defaultPalette()
	fg := func(c color.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}
	bold := func(c color.Color) lipgloss.Style {
		return fg(c).Bold(true)
	}

	return theme{
		appBG: fg(p.text),
		brand: bold(p.accent),

		headerBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(p.border).
			Padding(0, 1),
		headerSub: fg(p.muted),

		sidebarBox:      lipgloss.NewStyle().Padding(0, 1),
		sidebarTitle:    bold(p.accent),
		sidebarItem:     fg(p.text).Padding(0, 1),
		sidebarActive:   bold(p.bright).Underline(true).Padding(0, 1),
		sidebarInactive: fg(p.subtle),

		panelBox:     lipgloss.NewStyle().Padding(0, 1),
		panelTitle:   bold(p.accent),
		panelSubtle:  fg(p.muted),
		panelAccent:  fg(p.soft),
		panelWarn:    fg(p.warn),
		panelError:   fg(p.danger),
		panelSuccess: fg(p.success),

		footerBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(p.border).
			Padding(0, 1),
		footerInfo: fg(p.text),
		footerErr:  bold(p.danger),
		footerWarn: bold(p.warn),
		footerOK:   bold(p.success),
		footerKey:  bold(p.accent),

		chipWarn:    bold(p.warn),
		chipError:   bold(p.danger),
		chipSuccess: bold(p.success),

		cardValue: bold(p.bright),
		cardLabel: fg(p.muted),

		inputPrompt:      bold(lipgloss.Color("147")),
		inputText:        fg(p.bright),
		inputPlaceholder: fg(p.subtle),

		tableHeader:   bold(p.accent),
		tableCell:     fg(p.text),
		tableSelected: bold(p.accent).Reverse(true),

		statusSuccess: fg(p.success),
		statusFailed:  fg(p.danger),
		statusRunning: fg(p.warn),
		statusUnknown: fg(p.subtle),

		chatUser:      bold(p.soft),
		chatAssistant: bold(p.accent),
		chatError:     bold(p.danger),
		chatMeta:      fg(p.subtle).Italic(true),

		mdHeading: bold(p.accent).Underline(true),
		mdStrong:  bold(p.bright),
		mdEmph:    fg(p.text).Italic(true),
		mdCode:    fg(p.soft),
		mdLink:    fg(p.accent).Underline(true),
		mdQuote:   fg(p.muted).Italic(true),
		mdBullet:  fg(p.accent),

		spinner: bold(p.warn),
	}
}

func (t theme) statusStyle(status pipeline.Status) lipgloss.Style {
	switch status {
	case pipeline.StatusSuccess:
		return t.statusSuccess
	case pipeline.StatusFailed:
		return t.statusFailed
	case pipeline.StatusRunning:
		return t.statusRunning
	default:
		return t.statusUnknown
	}
}
