package lock

import "errors"

// ErrLocked is returned by Acquire when the lock is held by another process
// and no wait was requested. Check it with errors.Is().
var ErrLocked = errors.New("lock is held by another process")
