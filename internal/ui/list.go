package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/prismatify/internal/services"
	"github.com/desertthunder/prismatify/internal/shared"
)

var _ list.Item = trackItem{}

// trackItem wraps [services.Track] to implement [list.Item].
type trackItem struct {
	track services.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string {
	return fmt.Sprintf("%s [%s]", i.track.Name, shared.FormatDuration(i.track.DurationMS))
}

func (i trackItem) Description() string {
	desc := strings.Join(i.track.Artists, ", ")
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	desc = fmt.Sprintf("%s • popularity %d", desc, i.track.Popularity)
	if i.track.TempoBPM > 0 {
		desc = fmt.Sprintf("%s • %.0f BPM", desc, i.track.TempoBPM)
	}
	return desc
}
