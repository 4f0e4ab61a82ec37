package ui

import (
	"github.com/desertthunder/prismatify/internal/formatter"
	"github.com/desertthunder/prismatify/internal/tasks"
)

// sessionCheckedMsg reports whether a stored session produced a usable token.
type sessionCheckedMsg struct {
	err error
}

// progressUpdateMsg wraps an engine progress event for the Elm loop.
type progressUpdateMsg tasks.ProgressUpdate

// analysisCompleteMsg carries the finished report (or the failure) back to
// the model.
type analysisCompleteMsg struct {
	report *formatter.Report
	err    error
}
