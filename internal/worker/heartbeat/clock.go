// Package heartbeat implements the HeartbeatClock from spec.md §3: a
// per-worker monotonic counter ticked at 10ms granularity that drives a
// periodic sweep evicting idle connections.
package heartbeat

import "time"

// TickGranularity matches spec.md §3's "tick granularity 10 ms".
const TickGranularity = 10 * time.Millisecond

// Clock accumulates elapsed wall-clock time and reports whether enough
// has elapsed for another tick, the way wServer::CheckTick compares
// against its own mLatestTm snapshot.
type Clock struct {
	now   func() time.Time
	last  time.Time
	ticks uint64
}

// New creates a Clock using time.Now, or an injected now for tests.
func New(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, last: now()}
}

// CheckTick advances the clock and reports true if at least
// TickGranularity has elapsed since the last tick (spec.md §4.3
// "CheckTick runs every iteration. If >=10ms have elapsed...").
func (c *Clock) CheckTick() bool {
	now := c.now()
	if now.Sub(c.last) < TickGranularity {
		return false
	}
	c.last = now
	c.ticks++
	return true
}

func (c *Clock) Ticks() uint64 { return c.ticks }

// Params bundles the keepalive tuning spec.md §3/§8 reference.
type Params struct {
	KeepAliveMs  int
	KeepAliveCnt int
}

// Idle reports whether lastSend is stale enough to warrant a probe.
func (p Params) Idle(lastSend time.Time, now time.Time) bool {
	return now.Sub(lastSend) >= time.Duration(p.KeepAliveMs)*time.Millisecond
}

// Exhausted reports whether probesOutstanding exceeds the configured
// count (spec.md §4.3 "if probes-outstanding exceeds KeepAliveCnt,
// evict").
func (p Params) Exhausted(probesOutstanding int) bool {
	return probesOutstanding > p.KeepAliveCnt
}
