package tasks

import (
	"fmt"
	"path"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	PhaseRegister Phase = iota
	PhaseSync
	PhaseDownload
	PhaseSweep
	PhaseFlush
	PhasePairing
)

func (p Phase) String() string {
	switch p {
	case PhaseRegister:
		return "register"
	case PhaseSync:
		return "sync"
	case PhaseDownload:
		return "download"
	case PhaseSweep:
		return "sweep"
	case PhaseFlush:
		return "flush"
	case PhasePairing:
		return "pairing"
	default:
		return ""
	}
}

func syncingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseSync,
		Step:    1,
		Total:   1,
		Message: "Checking for playlist updates...",
	}
}

func downloadUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseDownload,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Caching %s (%d/%d)", path.Base(url), step, total),
	}
}

func sweepUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseSweep,
		Step:    1,
		Total:   1,
		Message: "Removing unreferenced media...",
	}
}

func pairingUpdate(attempt, max int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePairing,
		Step:    attempt,
		Total:   max,
		Message: fmt.Sprintf("Waiting for activation... (attempt %d/%d)", attempt, max),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
