// Package notify announces finished exports to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Completed is published once per successful run.
type Completed struct {
	RunID         string    `json:"run_id"`
	URI           string    `json:"uri"`
	Records       int       `json:"records"`
	SchemaVersion int       `json:"schema_version"`
	Attempts      int       `json:"attempts"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Publisher delivers completion events.
type Publisher interface {
	Publish(ctx context.Context, ev Completed) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Completed) error { return nil }

func encode(ev Completed) ([]byte, error) {
	ev.FinishedAt = ev.FinishedAt.UTC()
	return json.Marshal(ev)
}
