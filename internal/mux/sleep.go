package mux

import "time"

// sleepMs blocks for waitMs milliseconds. Used when a backend has nothing
// registered yet Poll must still honor its timeout contract.
func sleepMs(waitMs int) {
	if waitMs <= 0 {
		return
	}
	time.Sleep(time.Duration(waitMs) * time.Millisecond)
}
