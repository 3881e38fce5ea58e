package tui

import (
	"echopress/internal/api"
	"echopress/internal/apiclient"
)

// StreamItemMsg wraps one frame from the run's event stream.
type StreamItemMsg struct {
	Item apiclient.StreamItem
}

// StreamClosedMsg is sent when the event stream ends. Err is nil when the
// server closed the stream normally.
type StreamClosedMsg struct {
	Err error
}

// PollResultMsg carries one poll of the run.
type PollResultMsg struct {
	Run api.Run
	Err error
}

// PollTickMsg schedules the next poll.
type PollTickMsg struct{}
