package util

import "time"

// Clock is the ledger clock. Order validity windows are checked against it,
// so tests substitute a fake to pin time.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
