package tui

import "strings"

// Below either bound the dashboard stacks its panes vertically.
const (
	stackedMinWidth  = 104
	stackedMinHeight = 24

	chatInputRows = 3

	// row where every workbench view starts its main block
	primaryRow = 3
)

type paneSize struct {
	Width  int
	Height int
}

// content returns the space left inside a pane after its padding and
// title row.
func (p paneSize) content(padX, titleRows int) paneSize {
	return paneSize{
		Width:  maxInt(10, p.Width-padX),
		Height: maxInt(2, p.Height-titleRows),
	}
}

type uiLayout struct {
	Width   int
	Height  int
	Stacked bool

	HeaderHeight int
	FooterHeight int

	Nav       paneSize
	Workbench paneSize
	Inspector paneSize
}

func computeLayout(width, height int) uiLayout {
	width = maxInt(40, width)
	height = maxInt(16, height)

	layout := uiLayout{
		Width:        width,
		Height:       height,
		HeaderHeight: 4,
		FooterHeight: 4,
	}
	body := maxInt(6, height-layout.HeaderHeight-layout.FooterHeight)

	layout.Stacked = width < stackedMinWidth || height < stackedMinHeight
	if layout.Stacked {
		layout.Nav = paneSize{Width: width, Height: 3}
		remaining := maxInt(6, body-layout.Nav.Height)
		inspector := maxInt(4, remaining/3)
		layout.Inspector = paneSize{Width: width, Height: inspector}
		layout.Workbench = paneSize{Width: width, Height: maxInt(5, remaining-inspector)}
		return layout
	}

	nav := clampInt(width/6, 18, 28)
	inspector := clampInt(width*3/10, 32, 56)
	layout.Nav = paneSize{Width: nav, Height: body}
	layout.Inspector = paneSize{Width: inspector, Height: body}
	// two separator columns sit between the three panes
	layout.Workbench = paneSize{Width: maxInt(30, width-nav-inspector-2), Height: body}
	return layout
}

// tableWidth is the usable row width for the pipeline and escalation tables.
func (l uiLayout) tableWidth() int {
	return l.Workbench.Width - 4
}

func (l uiLayout) inspectorViewport() paneSize {
	return l.Inspector.content(2, 2)
}

// chatViewport leaves room under the transcript for the input box.
func (l uiLayout) chatViewport() paneSize {
	inner := l.Workbench.content(2, 0)
	inner.Height = maxInt(2, inner.Height-chatInputRows-2)
	return inner
}

// workbenchBody pads the intro so the primary block lands on primaryRow in
// every view, then appends the tail after a blank line.
func workbenchBody(intro, primary, tail []string) string {
	var b strings.Builder
	row := 0
	for ; row < len(intro) || row < primaryRow; row++ {
		if row < len(intro) {
			b.WriteString(intro[row])
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(primary, "\n"))
	if len(tail) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(tail, "\n"))
	}
	return b.String()
}
