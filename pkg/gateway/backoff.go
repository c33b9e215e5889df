package gateway

import (
	"math/rand"
	"time"
)

func dsec(v, def int) time.Duration {
	if v <= 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(v) * time.Second
}

// jitteredDelay spreads reconnect attempts around base, capped, so a burst
// of dropped clients does not stampede the gateway.
func jitteredDelay(base, cap time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 {
		jitterPct = 25
	}
	delta := (rand.Float64()*2 - 1) * float64(jitterPct) / 100.0
	wait := time.Duration(float64(base) * (1 + delta))
	if wait < 0 {
		wait = base
	}
	if wait > cap {
		wait = cap
	}
	return wait
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
