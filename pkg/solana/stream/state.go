package stream

// State is the lifecycle state of the subscription connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	// StateDegraded means a liveness probe is outstanding.
	StateDegraded State = "degraded"
)
