package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecideProbe(t *testing.T) {
	interval := 30 * time.Second
	grace := 5 * time.Second
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		idle         time.Duration
		awaitingPong bool
		want         probeAction
	}{
		{"recent traffic skips probe", 10 * time.Second, false, probeSkip},
		{"recent traffic wins over outstanding probe", 24 * time.Second, true, probeSkip},
		{"idle at threshold is probed", 25 * time.Second, false, probeSend},
		{"idle connection is probed", time.Minute, false, probeSend},
		{"idle with unanswered probe is dead", 31 * time.Second, true, probeDead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decideProbe(base.Add(tt.idle), base, tt.awaitingPong, interval, grace)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultHeartbeatGrace, cfg.HeartbeatGrace)
	assert.Equal(t, DefaultPongTimeout, cfg.PongTimeout)
	assert.Equal(t, DefaultReconnectDelay, cfg.ReconnectDelay)

	short := Config{HeartbeatInterval: 3 * time.Second}.withDefaults()
	assert.Less(t, short.HeartbeatGrace, short.HeartbeatInterval)
}
