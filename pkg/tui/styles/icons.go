package styles

import "strings"

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconBullet  = "•"
	IconLED     = "●"
	IconLEDOff  = "○"
)

// EventIcon returns the icon for a device event type.
func EventIcon(eventType string, ok bool) string {
	switch {
	case eventType == "task.failed":
		return IconError
	case eventType == "dispatch.finished" && ok:
		return IconSuccess
	case eventType == "dispatch.finished":
		return IconError
	case strings.HasPrefix(eventType, "dispatch."):
		return IconWarning
	case eventType == "candidate.published", eventType == "link.established":
		return IconInfo
	default:
		return IconBullet
	}
}
