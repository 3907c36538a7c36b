package lobby

import "errors"

// ErrStaleCommand indicates a command older than the staleness window
var ErrStaleCommand = errors.New("stale command")
