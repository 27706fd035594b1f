package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"augur/internal/config"
	"augur/internal/logger"
)

const (
	writeWait         = 10 * time.Second
	initialReconnect  = time.Second
	defaultHeartbeat  = 30 * time.Second
	defaultReconnect  = 60 * time.Second
	missedHeartbeats  = 3
	defaultHandshake  = 15 * time.Second
	updateBufferDepth = 16
)

// Client keeps a subscription to the lobby topic alive and turns inbound
// game_update frames into GameUpdate values.
type Client struct {
	url          string
	topic        string
	apiKey       string
	heartbeat    time.Duration
	reconnectMax time.Duration
	dialer       websocket.Dialer
	ref          atomic.Uint64
	now          func() time.Time
	sleep        func(context.Context, time.Duration) bool
}

func NewClient(cfg config.LobbyConfig, apiKey string) *Client {
	c := &Client{
		url:          cfg.URL,
		topic:        cfg.Topic,
		apiKey:       apiKey,
		heartbeat:    cfg.HeartbeatInterval(),
		reconnectMax: cfg.ReconnectMax(),
		now:          time.Now,
		sleep:        sleepWithContext,
	}
	if c.heartbeat <= 0 {
		c.heartbeat = defaultHeartbeat
	}
	if c.reconnectMax <= 0 {
		c.reconnectMax = defaultReconnect
	}
	handshake := time.Duration(cfg.HandshakeTimeoutSecs) * time.Second
	if handshake <= 0 {
		handshake = defaultHandshake
	}
	c.dialer = websocket.Dialer{HandshakeTimeout: handshake}
	return c
}

// Updates starts the connection loop and returns the update stream. The
// channel is closed once ctx is cancelled and the loop has exited.
func (c *Client) Updates(ctx context.Context) <-chan GameUpdate {
	out := make(chan GameUpdate, updateBufferDepth)
	go func() {
		defer close(out)
		c.Run(ctx, out)
	}()
	return out
}

// Run connects, subscribes and reads until ctx is done, reconnecting with
// capped exponential backoff. The backoff restarts after any session that
// got as far as joining the topic. It never closes out.
func (c *Client) Run(ctx context.Context, out chan<- GameUpdate) {
	delay := time.Duration(0)
	for {
		joined, err := c.session(ctx, out)
		if ctx.Err() != nil {
			logger.Infof("[lobby] stopped")
			return
		}
		if joined {
			delay = 0
		}
		delay = nextDelay(delay, c.reconnectMax)
		logger.Warnf("[lobby] connection lost: %v, reconnecting in %s", err, delay)
		if !c.sleep(ctx, delay) {
			return
		}
	}
}

// session runs one connection; joined reports whether the topic join was sent.
func (c *Client) session(ctx context.Context, out chan<- GameUpdate) (joined bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	var writeMu sync.Mutex
	send := func(topic, event string, payload any) error {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		ref := strconv.FormatUint(c.ref.Add(1), 10)
		frame := Frame{Topic: topic, Event: event, Payload: body, Ref: &ref}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(c.now().Add(writeWait))
		return conn.WriteJSON(frame)
	}

	if err := send(c.topic, eventJoin, map[string]string{"api_key": c.apiKey}); err != nil {
		return false, fmt.Errorf("join %s: %w", c.topic, err)
	}
	logger.Infof("[lobby] connected to %s, joined %s", c.url, c.topic)

	go func() {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-sessCtx.Done():
				return
			case <-ticker.C:
				if err := send(heartbeatTopic, eventHeartbeat, struct{}{}); err != nil {
					logger.Warnf("[lobby] heartbeat failed: %v", err)
					cancel()
					return
				}
			}
		}
	}()

	readWindow := c.heartbeat * missedHeartbeats
	for {
		_ = conn.SetReadDeadline(c.now().Add(readWindow))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warnf("[lobby] dropping undecodable frame: %v", err)
			continue
		}
		switch frame.Event {
		case eventGameUpdate:
			upd, err := DecodeGameUpdate(frame.Payload)
			if err != nil {
				logger.Warnf("[lobby] %v", err)
				continue
			}
			upd.ReceivedAt = c.now()
			select {
			case out <- upd:
			case <-sessCtx.Done():
				return true, sessCtx.Err()
			}
		case eventReply:
			if frame.Topic == c.topic {
				logger.Debugf("[lobby] reply on %s: %s", frame.Topic, string(frame.Payload))
			}
		case eventError, eventClose:
			if frame.Topic == c.topic {
				return true, fmt.Errorf("server sent %s on %s", frame.Event, frame.Topic)
			}
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current, limit time.Duration) time.Duration {
	if current <= 0 {
		return initialReconnect
	}
	next := current * 2
	if next > limit {
		next = limit
	}
	return next
}
