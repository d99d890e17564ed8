// Package ui provides the Bubble Tea TUI for browsing product mentions.
package ui

import "github.com/abelbrown/mentions/internal/pipeline"

// LoadComplete is sent when a load cycle finishes. Results whose LoadID is
// older than the model's current load are discarded.
type LoadComplete struct {
	State pipeline.State
}

// ReloadRequested asks the model to start a new load, cancelling any load
// still in flight. Sent by the background coordinator.
type ReloadRequested struct {
	Reason string // "startup", "watch", "schedule" or "key"
	Path   string // changed file, for watch reloads
}
