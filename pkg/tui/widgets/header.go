package widgets

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/bigredbutton/pkg/tui/styles"
)

// Header renders the title bar: name, connection status and uptime.
type Header struct {
	Title    string
	Status   string
	StatusOK bool
	Uptime   time.Duration
	Width    int
	theme    styles.Theme
}

func NewHeader(title string) Header {
	return Header{Title: title, theme: styles.DefaultTheme()}
}

func (h Header) WithStatus(status string, ok bool) Header {
	h.Status = status
	h.StatusOK = ok
	return h
}

func (h Header) WithUptime(d time.Duration) Header {
	h.Uptime = d
	return h
}

func (h Header) WithWidth(w int) Header {
	h.Width = w
	return h
}

func (h Header) Render() string {
	theme := h.theme

	titlePart := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary).
		Padding(0, 1).
		Render(h.Title)

	left := titlePart
	if h.Status != "" {
		statusStyle := theme.StatusBad
		if h.StatusOK {
			statusStyle = theme.StatusOK
		}
		left = lipgloss.JoinHorizontal(lipgloss.Center, titlePart, "  ", statusStyle.Render(styles.IconLED), " ", theme.Value.Render(h.Status))
	}

	right := ""
	if h.Uptime > 0 {
		right = theme.TitleMuted.Render(fmt.Sprintf("Uptime: %s", formatDuration(h.Uptime)))
	}

	spacing := h.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(spacing).Render(""), right)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
