package account

import "time"

// Clock returns the current wall-clock time. Tests substitute a fake.
type Clock func() time.Time

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 { return t.UnixMilli() }
