package cache

import (
	"time"
)

// Resolution tiers recorded by metrics and logs.
const (
	TierMemory    = "memory"
	TierDisk      = "disk"
	TierCoalesced = "coalesced"
	TierTransfer  = "transfer"
)

// CacheMetrics receives resolution and transfer observations.
//
// A nil CacheMetrics is valid and costs nothing; call sites guard every
// observation. The Prometheus implementation lives in pkg/metrics.
type CacheMetrics interface {
	// ObserveResolve records a successful resolution and the tier that
	// served it.
	ObserveResolve(tier string, duration time.Duration)

	// ObserveResolveError records a failed resolution by error code.
	ObserveResolveError(code ErrorCode)

	// TransferStarted and TransferFinished bracket one physical transfer.
	TransferStarted()
	TransferFinished(duration time.Duration, success bool)

	// ObserveInFlight records the registry size after a change.
	ObserveInFlight(count int)
}

func observeResolve(m CacheMetrics, tier string, start time.Time) {
	if m != nil {
		m.ObserveResolve(tier, time.Since(start))
	}
}

func observeResolveError(m CacheMetrics, err error) {
	if m != nil {
		m.ObserveResolveError(codeOf(err))
	}
}
