package stream

import "time"

// probeAction is what the heartbeat tick decided to do.
type probeAction int

const (
	probeSkip probeAction = iota
	probeSend
	probeDead
)

func (a probeAction) String() string {
	switch a {
	case probeSend:
		return "sent"
	case probeDead:
		return "dead"
	default:
		return "skipped"
	}
}

// decideProbe is the heartbeat rule. A connection that saw traffic within
// interval-grace is alive and is not probed. An idle connection is probed,
// unless the previous probe is still unanswered, in which case it is dead.
func decideProbe(now, lastActivity time.Time, awaitingPong bool, interval, grace time.Duration) probeAction {
	if now.Sub(lastActivity) < interval-grace {
		return probeSkip
	}
	if awaitingPong {
		return probeDead
	}
	return probeSend
}
