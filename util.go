package flagcore

import "time"

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

// now is a package-level variable so the clock can be swapped; getUnixMilli
// and the store's watchdog read it.
var now = time.Now

func getUnixMilli() int64 {
	return now().UnixMilli()
}

func intAbs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
