package models

import "time"

// Snapshot is one fetched copy of the card collection.
type Snapshot struct {
	ID        string    `json:"id"`         // uuid assigned at fetch time
	Source    string    `json:"source"`     // name of the source it came from
	FetchedAt time.Time `json:"fetched_at"` // when the fetch completed
	Cards     []Card    `json:"cards"`
}

// Info is the snapshot without its cards.
func (s Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{ID: s.ID, Source: s.Source, FetchedAt: s.FetchedAt, CardCount: len(s.Cards)}
}

// SnapshotInfo describes a snapshot without carrying its records.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	CardCount int       `json:"card_count"`
}
