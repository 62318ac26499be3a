package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bomsabor-web/config"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrClosed       = errors.New("realtime: client closed")
	ErrNoCredential = errors.New("realtime: private channel needs a credential")
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	authTimeout      = 10 * time.Second
)

// Authorizer signs private channel subscriptions (POST /broadcasting/auth).
type Authorizer interface {
	AuthorizeChannel(ctx context.Context, endpoint, token, socketID, channel string) (string, error)
}

type Handler func(Event)

// Client owns one websocket connection. Every consumer (an SSE stream, the
// Telegram notifier) creates its own and closes it on teardown. The connection
// is not re-established once lost; Done reports that.
type Client struct {
	url          string
	authEndpoint string
	auth         Authorizer
	log          zerolog.Logger
	dialer       *websocket.Dialer

	writeMu sync.Mutex

	mu       sync.Mutex
	conn     *websocket.Conn
	socketID string
	token    string
	channels map[string]map[uint64]Handler
	nextID   uint64
	closed   bool

	done     chan struct{}
	doneOnce sync.Once
}

func New(cfg config.RealtimeConfig, auth Authorizer, log zerolog.Logger) *Client {
	return NewWithURL(cfg.URL(), cfg.AuthEndpoint, auth, log)
}

func NewWithURL(url, authEndpoint string, auth Authorizer, log zerolog.Logger) *Client {
	return &Client{
		url:          url,
		authEndpoint: authEndpoint,
		auth:         auth,
		log:          log.With().Str("component", "realtime").Logger(),
		dialer:       &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		channels:     map[string]map[uint64]Handler{},
		done:         make(chan struct{}),
	}
}

// SetCredential installs the bearer token used to authorize private channels and
// re-authorizes the private channels already joined.
func (c *Client) SetCredential(token string) {
	c.mu.Lock()
	changed := c.token != token
	c.token = token
	connected := c.conn != nil
	private := c.privateChannelsLocked()
	c.mu.Unlock()

	if !changed || !connected {
		return
	}
	for _, ch := range private {
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		if err := c.sendSubscribe(ctx, ch); err != nil {
			c.log.Warn().Err(err).Str("channel", ch).Msg("re-authorize channel")
		}
		cancel()
	}
}

// ClearCredential forgets the token and leaves every private channel.
func (c *Client) ClearCredential() {
	c.mu.Lock()
	c.token = ""
	private := c.privateChannelsLocked()
	for _, ch := range private {
		delete(c.channels, ch)
	}
	connected := c.conn != nil
	c.mu.Unlock()

	if connected {
		for _, ch := range private {
			c.sendUnsubscribe(ch)
		}
	}
}

func (c *Client) privateChannelsLocked() []string {
	var out []string
	for ch := range c.channels {
		if isPrivate(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Client) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// Done is closed when the connection ends, for whatever reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect dials the server, waits for the handshake and joins every channel
// subscribed so far.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}
	established, err := readHandshake(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.socketID = established.SocketID
	pending := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		pending = append(pending, ch)
	}
	c.mu.Unlock()

	c.log.Debug().Str("socket_id", established.SocketID).Msg("connected")
	go c.readLoop(conn)
	if established.ActivityTimeout > 0 {
		go c.keepAlive(time.Duration(established.ActivityTimeout) * time.Second)
	}

	for _, ch := range pending {
		if err := c.sendSubscribe(ctx, ch); err != nil {
			c.log.Warn().Err(err).Str("channel", ch).Msg("subscribe")
		}
	}
	return nil
}

func readHandshake(ctx context.Context, conn *websocket.Conn) (*connectionData, error) {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, fmt.Errorf("realtime: handshake: %w", err)
	}
	raw, err := unwrapData(env.Data)
	if err != nil {
		return nil, fmt.Errorf("realtime: handshake data: %w", err)
	}
	switch env.Event {
	case eventConnectionEstablished:
		var cd connectionData
		if err := json.Unmarshal(raw, &cd); err != nil {
			return nil, fmt.Errorf("realtime: handshake data: %w", err)
		}
		if cd.SocketID == "" {
			return nil, errors.New("realtime: handshake without socket id")
		}
		return &cd, nil
	case eventError:
		var e errorData
		_ = json.Unmarshal(raw, &e)
		return nil, fmt.Errorf("realtime: server error %d: %s", e.Code, e.Message)
	default:
		return nil, fmt.Errorf("realtime: unexpected first event %q", env.Event)
	}
}

// Subscribe registers h for events on channel. The channel is joined on the
// server for its first handler.
func (c *Client) Subscribe(ctx context.Context, channel string, h Handler) (*Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if isPrivate(channel) && c.token == "" {
		c.mu.Unlock()
		return nil, ErrNoCredential
	}
	handlers, joined := c.channels[channel]
	if !joined {
		handlers = map[uint64]Handler{}
		c.channels[channel] = handlers
	}
	c.nextID++
	id := c.nextID
	handlers[id] = h
	connected := c.conn != nil
	c.mu.Unlock()

	sub := &Subscription{client: c, channel: channel, id: id}
	if !joined && connected {
		if err := c.sendSubscribe(ctx, channel); err != nil {
			c.removeHandler(channel, id)
			return nil, err
		}
	}
	return sub, nil
}

func (c *Client) sendSubscribe(ctx context.Context, channel string) error {
	data := subscribeData{Channel: channel}
	if isPrivate(channel) {
		c.mu.Lock()
		token, socketID := c.token, c.socketID
		c.mu.Unlock()
		if token == "" {
			return ErrNoCredential
		}
		if c.auth == nil {
			return fmt.Errorf("realtime: no authorizer for %s", channel)
		}
		sig, err := c.auth.AuthorizeChannel(ctx, c.authEndpoint, token, socketID, channel)
		if err != nil {
			return fmt.Errorf("realtime: authorize %s: %w", channel, err)
		}
		data.Auth = sig
	}
	return c.send(eventSubscribe, data)
}

func (c *Client) sendUnsubscribe(channel string) {
	if err := c.send(eventUnsubscribe, subscribeData{Channel: channel}); err != nil {
		c.log.Debug().Err(err).Str("channel", channel).Msg("unsubscribe")
	}
}

func (c *Client) send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(envelope{Event: event, Data: b})
}

// removeHandler drops one handler and reports whether the channel has none left.
func (c *Client) removeHandler(channel string, id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	handlers, ok := c.channels[channel]
	if !ok {
		return false
	}
	delete(handlers, id)
	if len(handlers) == 0 {
		delete(c.channels, channel)
		return true
	}
	return false
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.finish()
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !c.isClosed() {
				c.log.Warn().Err(err).Msg("connection lost")
			}
			return
		}
		switch env.Event {
		case eventPing:
			if err := c.send(eventPong, struct{}{}); err != nil {
				c.log.Debug().Err(err).Msg("pong")
			}
		case eventPong:
		case eventError:
			var e errorData
			if raw, err := unwrapData(env.Data); err == nil {
				_ = json.Unmarshal(raw, &e)
			}
			c.log.Error().Int("code", e.Code).Str("message", e.Message).Msg("server error")
		case eventSubscriptionSucceeded:
			c.log.Debug().Str("channel", env.Channel).Msg("subscribed")
		default:
			if env.Channel == "" {
				continue
			}
			c.dispatch(Event{Name: NormalizeEventName(env.Event), Channel: env.Channel, Data: env.Data})
		}
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.channels[ev.Channel]))
	for _, h := range c.channels[ev.Channel] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (c *Client) keepAlive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.send(eventPing, struct{}{}); err != nil {
				return
			}
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Close releases the connection and drops every handler.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.channels = map[string]map[uint64]Handler{}
	c.mu.Unlock()

	defer c.finish()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// Subscription is one handler on one channel.
type Subscription struct {
	client  *Client
	channel string
	id      uint64
	once    sync.Once
}

func (s *Subscription) Channel() string { return s.channel }

// Close removes the handler; the channel is left when no handler remains.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.client.removeHandler(s.channel, s.id) && !s.client.isClosed() {
			s.client.sendUnsubscribe(s.channel)
		}
	})
}
