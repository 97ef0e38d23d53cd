package domain

import "time"

// HistoryEntry records one successful try-on.
type HistoryEntry struct {
	ID        string    `json:"id"`
	PersonRef string    `json:"person_ref"`
	ClothRef  string    `json:"cloth_ref"`
	ResultRef string    `json:"result_ref"`
	Timestamp time.Time `json:"timestamp"`
}
