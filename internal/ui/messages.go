// Package ui provides the Bubble Tea TUI for StaffProof.
//
// Each tab is a Screen bound to one list controller. Screens never fetch on
// their own: they forward keys to the controller and render its State.
package ui

import "github.com/abelbrown/staffproof/internal/controller"

// listEvent relays a controller event to the screen that owns it.
type listEvent struct {
	Resource string
	Type     controller.EventType
	Err      error
}

// mutationDone is sent when a mutation started from a screen finishes.
type mutationDone struct {
	Resource string
	Verb     string
	Key      string
	Err      error
}
