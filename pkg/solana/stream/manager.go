// Package stream keeps one websocket subscription to a Solana node alive for
// the current watch target and hands notifications to a Handler in order.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"snipewatch/pkg/metrics"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatGrace    = 5 * time.Second
	DefaultPongTimeout       = 10 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
	DefaultDialTimeout       = 10 * time.Second

	writeWait = 5 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("stream manager already started")
	ErrEmptyTarget    = errors.New("target address is empty")
	ErrStopped        = errors.New("stream manager stopped")
)

// Config controls connection and heartbeat timing. Zero values take defaults.
type Config struct {
	Endpoint          string
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	PongTimeout       time.Duration
	ReconnectDelay    time.Duration
	DialTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatGrace <= 0 {
		c.HeartbeatGrace = DefaultHeartbeatGrace
	}
	if c.HeartbeatGrace >= c.HeartbeatInterval {
		c.HeartbeatGrace = c.HeartbeatInterval / 6
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	return c
}

// Handler receives notifications one at a time, in arrival order.
type Handler interface {
	HandleBalance(ctx context.Context, n BalanceNotification)
	HandleLogs(ctx context.Context, n LogsNotification)
}

type notification struct {
	balance *BalanceNotification
	logs    *LogsNotification
}

// connectionState belongs to the connection loop goroutine and is never shared.
type connectionState struct {
	conn          *websocket.Conn
	target        string
	subscriptions map[int]uint64
	alive         bool
	lastActivity  time.Time
	pongDeadline  *time.Timer
}

// Manager owns the subscription socket. Start launches it, SwitchTarget moves it
// to another address and Stop shuts it down.
type Manager struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time

	mu      sync.RWMutex
	target  string
	state   State
	started bool

	queue    *notificationQueue
	switchCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager creates a manager for target. Nothing connects until Start.
func NewManager(cfg Config, target string) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		now:      time.Now,
		target:   target,
		state:    StateDisconnected,
		queue:    newNotificationQueue(),
		switchCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Target returns the address the next connection subscribes to.
func (m *Manager) Target() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start launches the connection loop and the dispatcher. It does not block.
func (m *Manager) Start(ctx context.Context, h Handler) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	if m.target == "" {
		m.mu.Unlock()
		return ErrEmptyTarget
	}
	select {
	case <-m.stopCh:
		m.mu.Unlock()
		return ErrStopped
	default:
	}
	ctx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel
	m.wg.Add(2)
	m.mu.Unlock()

	go m.run(ctx)
	go m.dispatch(ctx, h)

	log.WithFields(log.Fields{
		"endpoint": m.cfg.Endpoint,
		"target":   m.Target(),
	}).Info("Stream manager started")
	return nil
}

// SwitchTarget points the subscription at address. The live socket is closed and
// the next connection subscribes to the new address. Switching to the current
// address is a no-op.
func (m *Manager) SwitchTarget(address string) error {
	if address == "" {
		return ErrEmptyTarget
	}

	m.mu.Lock()
	if m.target == address {
		m.mu.Unlock()
		return nil
	}
	previous := m.target
	m.target = address
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"from": previous,
		"to":   address,
	}).Info("Switching stream target")

	select {
	case m.switchCh <- struct{}{}:
	default:
	}
	return nil
}

// Stop closes the socket, cancels timers and waits for the loop and the
// dispatcher to exit. Safe to call more than once. Must not be called from a Handler.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		close(m.stopCh)
		cancel := m.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		m.wg.Wait()
		m.setState(StateDisconnected)
		log.Info("Stream manager stopped")
	})
}

func (m *Manager) stopping(ctx context.Context) bool {
	select {
	case <-m.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// run is the connection loop: connect, serve the session, wait, repeat.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for !m.stopping(ctx) {
		target := m.Target()
		m.setState(StateConnecting)
		metrics.StreamConnects.Inc()

		conn, _, err := m.dialer.DialContext(ctx, m.cfg.Endpoint, nil)
		if err != nil {
			log.WithFields(log.Fields{
				"endpoint": m.cfg.Endpoint,
				"target":   target,
				"error":    err.Error(),
			}).Error("Failed to connect to Solana WebSocket")
			metrics.StreamDisconnects.WithLabelValues("dial").Inc()
		} else {
			reason := m.session(ctx, conn, target)
			metrics.StreamDisconnects.WithLabelValues(reason).Inc()
			if reason == "stop" {
				return
			}
		}
		m.setState(StateDisconnected)

		delay := time.NewTimer(m.cfg.ReconnectDelay)
		select {
		case <-delay.C:
		case <-m.stopCh:
			delay.Stop()
			return
		case <-ctx.Done():
			delay.Stop()
			return
		}
	}
}

// session serves one connection until it closes and returns why it closed.
func (m *Manager) session(ctx context.Context, conn *websocket.Conn, target string) string {
	st := &connectionState{
		conn:          conn,
		target:        target,
		subscriptions: make(map[int]uint64),
		alive:         true,
		lastActivity:  m.now(),
	}
	logger := log.WithField("target", target)

	pongs := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongs <- struct{}{}:
		default:
		}
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for _, req := range subscribeRequests(target) {
		if err := conn.WriteJSON(req); err != nil {
			logger.WithError(err).Error("Failed to send subscription message")
			conn.Close()
			return "subscribe"
		}
	}
	m.setState(StateSubscribed)
	logger.Info("Subscribed to account and logs")

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	var pongTimeout <-chan time.Time
	defer func() {
		ticker.Stop()
		if st.pongDeadline != nil {
			st.pongDeadline.Stop()
		}
		close(quit)
		conn.Close()
		<-readerDone
	}()

	for {
		select {
		case data := <-frames:
			st.lastActivity = m.now()
			m.handleFrame(st, data)

		case <-pongs:
			st.alive = true
			if st.pongDeadline != nil {
				st.pongDeadline.Stop()
				st.pongDeadline = nil
			}
			pongTimeout = nil
			m.setState(StateSubscribed)

		case <-ticker.C:
			action := decideProbe(m.now(), st.lastActivity, !st.alive, m.cfg.HeartbeatInterval, m.cfg.HeartbeatGrace)
			metrics.StreamProbes.WithLabelValues(action.String()).Inc()
			switch action {
			case probeDead:
				logger.Warn("Previous probe unanswered, closing connection")
				return "dead"
			case probeSend:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					logger.WithError(err).Warn("Failed to send ping")
					return "ping"
				}
				st.alive = false
				st.pongDeadline = time.NewTimer(m.cfg.PongTimeout)
				pongTimeout = st.pongDeadline.C
				m.setState(StateDegraded)
			}

		case <-pongTimeout:
			logger.WithField("pong_timeout", m.cfg.PongTimeout.String()).Warn("Pong not received, closing connection")
			return "pong_timeout"

		case <-m.switchCh:
			if m.Target() != target {
				logger.Info("Target switched, closing connection")
				return "switch"
			}

		case err := <-readErr:
			logger.WithError(err).Warn("WebSocket read failed")
			return "read"

		case <-m.stopCh:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return "stop"

		case <-ctx.Done():
			return "stop"
		}
	}
}

func (m *Manager) handleFrame(st *connectionState, data []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.StreamFrames.WithLabelValues("malformed").Inc()
		log.WithFields(log.Fields{
			"target": st.target,
			"error":  err.Error(),
		}).Warn("Dropping malformed frame")
		return
	}

	if msg.ID != nil {
		m.handleResponse(st, &msg)
		return
	}

	switch msg.Method {
	case methodAccountNotification:
		var res accountResult
		if msg.Params == nil || json.Unmarshal(msg.Params.Result, &res) != nil {
			metrics.StreamFrames.WithLabelValues("malformed").Inc()
			log.WithField("target", st.target).Warn("Dropping malformed account notification")
			return
		}
		metrics.StreamFrames.WithLabelValues("account").Inc()
		m.enqueue(notification{balance: &BalanceNotification{
			Target:   st.target,
			Slot:     res.Context.Slot,
			Lamports: res.Value.Lamports,
		}})

	case methodLogsNotification:
		var res logsResult
		if msg.Params == nil || json.Unmarshal(msg.Params.Result, &res) != nil {
			metrics.StreamFrames.WithLabelValues("malformed").Inc()
			log.WithField("target", st.target).Warn("Dropping malformed logs notification")
			return
		}
		metrics.StreamFrames.WithLabelValues("logs").Inc()
		m.enqueue(notification{logs: &LogsNotification{
			Target:    st.target,
			Slot:      res.Context.Slot,
			Signature: res.Value.Signature,
			Logs:      res.Value.Logs,
			Err:       res.Value.Err,
		}})

	default:
		metrics.StreamFrames.WithLabelValues("other").Inc()
		log.WithFields(log.Fields{
			"target": st.target,
			"method": msg.Method,
		}).Debug("Ignoring frame")
	}
}

func (m *Manager) handleResponse(st *connectionState, msg *rpcMessage) {
	id := *msg.ID
	if msg.Error != nil {
		metrics.StreamFrames.WithLabelValues("error").Inc()
		log.WithFields(log.Fields{
			"target":     st.target,
			"request_id": id,
			"code":       msg.Error.Code,
			"error":      msg.Error.Message,
		}).Error("Subscription request failed")
		return
	}

	var sub uint64
	if err := json.Unmarshal(msg.Result, &sub); err != nil {
		metrics.StreamFrames.WithLabelValues("malformed").Inc()
		log.WithFields(log.Fields{
			"target":     st.target,
			"request_id": id,
			"result":     string(msg.Result),
		}).Warn("Unexpected subscription response")
		return
	}
	st.subscriptions[id] = sub
	metrics.StreamFrames.WithLabelValues("response").Inc()
	log.WithFields(log.Fields{
		"target":          st.target,
		"request_id":      id,
		"subscription_id": sub,
	}).Info("Subscription confirmed")
}

func (m *Manager) enqueue(n notification) {
	m.queue.push(n)
}

// dispatch delivers queued notifications one at a time.
func (m *Manager) dispatch(ctx context.Context, h Handler) {
	defer m.wg.Done()
	for {
		select {
		case <-m.queue.signal:
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}

		for !m.stopping(ctx) {
			n, ok := m.queue.pop()
			if !ok {
				break
			}
			m.deliver(ctx, h, n)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, h Handler, n notification) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Notification handler panicked")
		}
	}()

	switch {
	case n.balance != nil:
		h.HandleBalance(ctx, *n.balance)
	case n.logs != nil:
		h.HandleLogs(ctx, *n.logs)
	}
}
