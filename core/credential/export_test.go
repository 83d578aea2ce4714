package credential

import "time"

// SetNow freezes the clock of the package until the returned func is called.
func SetNow(now time.Time) (reset func()) {
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = time.Now }
}
