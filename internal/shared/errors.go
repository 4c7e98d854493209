package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Identity and pairing errors
	ErrNotRegistered  = fmt.Errorf("screen not registered")
	ErrNotActivated   = fmt.Errorf("screen not activated")
	ErrScreenNotFound = fmt.Errorf("screen not found on server")
	ErrPairingTimeout = fmt.Errorf("activation polling timed out")

	// Transport errors
	ErrNetwork = fmt.Errorf("network request failed")
	ErrServer  = fmt.Errorf("server error")

	// Cache errors
	ErrIntegrity     = fmt.Errorf("cached file failed integrity check")
	ErrCacheDownload = fmt.Errorf("media download failed")

	// Playback errors
	ErrNoPlaylist = fmt.Errorf("no playlist available")
)
