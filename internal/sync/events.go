package sync

import (
	"time"

	"carddash/internal/dashboard"
)

const (
	TypeWelcome        = "welcome"
	TypeReloaded       = "dashboard.reloaded"
	TypeReloadFailed   = "dashboard.reload_failed"
	transportTCP       = "tcp"
	transportWebsocket = "websocket"
)

// Event is one message pushed to sync clients.
type Event struct {
	Type       string    `json:"type"`
	Snapshot   string    `json:"snapshot,omitempty"`
	Source     string    `json:"source,omitempty"`
	Cards      int       `json:"cards"`
	Generation uint64    `json:"generation"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Welcome is sent once on connect.
type Welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

// FromReload converts a finished reload into its event.
func FromReload(ev dashboard.ReloadEvent, at time.Time) Event {
	if ev.Err != nil {
		return Event{
			Type:       TypeReloadFailed,
			Generation: ev.Generation,
			Error:      ev.Err.Error(),
			At:         at,
		}
	}
	return Event{
		Type:       TypeReloaded,
		Snapshot:   ev.Snapshot.ID,
		Source:     ev.Snapshot.Source,
		Cards:      ev.Snapshot.CardCount,
		Generation: ev.Generation,
		At:         at,
	}
}
