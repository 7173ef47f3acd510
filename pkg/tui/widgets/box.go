package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/bigredbutton/pkg/tui/styles"
)

// Box renders a bordered panel with a title line.
type Box struct {
	Title      string
	TitleRight string
	Content    string
	Width      int
	theme      styles.Theme
}

func NewBox(title string) Box {
	return Box{Title: title, theme: styles.DefaultTheme()}
}

func (b Box) WithContent(content string) Box {
	b.Content = content
	return b
}

func (b Box) WithTitleRight(text string) Box {
	b.TitleRight = text
	return b
}

func (b Box) WithWidth(width int) Box {
	b.Width = width
	return b
}

func (b Box) Render() string {
	contentWidth := b.Width - 2
	if contentWidth < 0 {
		contentWidth = 0
	}

	left := b.theme.Title.Render(b.Title)
	right := b.theme.TitleMuted.Render(b.TitleRight)
	spacing := contentWidth - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(spacing).Render(""), right)

	style := b.theme.Border
	if b.Width > 0 {
		style = style.Width(contentWidth)
	}
	return style.Render(header + "\n" + b.Content)
}
