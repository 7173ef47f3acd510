package tui

import "time"

type EventEntry struct {
	At      time.Time
	Type    string
	Summary string
	OK      bool
}

type EventMsg struct {
	Entry EventEntry
}
