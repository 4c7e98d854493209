// Package ui implements the terminal status shell using bubbletea's Elm architecture.
//
// The TUI has two views driven by the supervisor's state:
//  1. [PairingView] : Shows the pairing code until an operator activates the screen
//  2. [StatusView] : Shows the running program, connection health and queue depth
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// A one-second tick polls the supervisor for a status snapshot, and sync
// progress flows through a channel so downloads report without blocking the
// sync engine.
package ui
