package notifications

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"
	cgerrors "github.com/jrsteele09/cyberguard-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StreamPath is the notification service's WebSocket endpoint.
const StreamPath = "/api/notification-service/ws"

const (
	DefaultMaxAttempts  = 3
	DefaultRetryDelay   = 5 * time.Second
	DefaultInitialDelay = 2 * time.Second
	closeGrace          = time.Second
)

// ErrStreamFailed is returned once the stream has given up reconnecting.
var ErrStreamFailed = errors.New("notification stream failed")

// State is where the stream is in its connection lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Backoff
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// TokenSource supplies the session token each dial authenticates with.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Handler receives each notification pushed by the server.
type Handler func(Notification)

// Stream keeps a WebSocket open to the notification service. After MaxAttempts consecutive
// failed dials it stops in the Failed state; a successful connect resets the count.
type Stream struct {
	baseURL      *url.URL
	host         string
	tokens       TokenSource
	handler      Handler
	dialer       *websocket.Dialer
	maxAttempts  int
	retryDelay   time.Duration
	initialDelay time.Duration
	onState      func(State)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

type StreamOption func(*Stream)

// WithHost dials host instead of the API base URL's host.
func WithHost(host string) StreamOption {
	return func(s *Stream) {
		s.host = host
	}
}

func WithMaxAttempts(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) StreamOption {
	return func(s *Stream) {
		s.retryDelay = d
	}
}

func WithInitialDelay(d time.Duration) StreamOption {
	return func(s *Stream) {
		s.initialDelay = d
	}
}

func WithDialer(d *websocket.Dialer) StreamOption {
	return func(s *Stream) {
		s.dialer = d
	}
}

// WithStateListener is called on every state change, from the goroutine running Run.
func WithStateListener(fn func(State)) StreamOption {
	return func(s *Stream) {
		s.onState = fn
	}
}

func NewStream(apiBaseURL string, tokens TokenSource, handler Handler, opts ...StreamOption) (*Stream, error) {
	base, err := url.Parse(apiBaseURL)
	if err != nil || base.Host == "" {
		return nil, errors.Errorf("[notifications.NewStream] invalid base url %q", apiBaseURL)
	}
	if tokens == nil || handler == nil {
		return nil, errors.New("[notifications.NewStream] token source and handler are required")
	}
	s := &Stream{
		baseURL:      base,
		tokens:       tokens,
		handler:      handler,
		dialer:       websocket.DefaultDialer,
		maxAttempts:  DefaultMaxAttempts,
		retryDelay:   DefaultRetryDelay,
		initialDelay: DefaultInitialDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// URL is the dial address for token: ws or wss following the API scheme.
func (s *Stream) URL(token string) string {
	scheme := "ws"
	if s.baseURL.Scheme == "https" {
		scheme = "wss"
	}
	host := s.host
	if host == "" {
		host = s.baseURL.Host
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     StreamPath,
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	return u.String()
}

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed {
		log.Debug().Str("state", state.String()).Msg("Notification stream state")
		if s.onState != nil {
			s.onState(state)
		}
	}
}

// Run connects and delivers notifications until ctx ends, Close is called, the server closes
// cleanly or reconnecting fails. It returns nil on a clean stop, ErrStreamFailed after the
// attempts are used up, and ErrNoSession when there is no token to connect with.
func (s *Stream) Run(ctx context.Context) error {
	if _, ok := s.tokens.Token(ctx); !ok {
		log.Info().Msg("Notification stream disabled, no session")
		return cgerrors.ErrNoSession
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer func() {
		if s.State() != Failed {
			s.setState(Disconnected)
		}
	}()

	if !sleep(ctx, s.initialDelay) {
		return nil
	}

	for {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.setState(Failed)
			log.Err(err).Int("attempts", s.maxAttempts).Msg("Maximum WebSocket reconnection attempts reached")
			return errors.Wrap(ErrStreamFailed, err.Error())
		}

		err = s.read(ctx, conn)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Msg("Notification stream dropped")
		s.setState(Backoff)
		if !sleep(ctx, s.retryDelay) {
			return nil
		}
	}
}

// Close stops Run, closing the connection with a normal closure.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Stream) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := retry.Do(func() error {
		s.setState(Connecting)
		token, ok := s.tokens.Token(ctx)
		if !ok {
			return retry.Unrecoverable(cgerrors.ErrNoSession)
		}
		c, resp, err := s.dialer.DialContext(ctx, s.URL(token), nil)
		if err != nil {
			if resp != nil {
				return errors.Wrapf(err, "[Stream.connect] handshake status %d", resp.StatusCode)
			}
			return errors.Wrap(err, "[Stream.connect]")
		}
		conn = c
		return nil
	},
		retry.Attempts(uint(s.maxAttempts)),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.setState(Backoff)
			log.Info().Err(err).Uint("attempt", n+1).Int("max_attempts", s.maxAttempts).Msg("WebSocket reconnect attempt")
		}),
	)
	if err != nil {
		return nil, err
	}
	s.setState(Connected)
	log.Info().Msg("WebSocket connection established")
	return conn, nil
}

// read delivers messages until the connection ends. A normal closure, from either side,
// returns nil.
func (s *Stream) read(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
	}()

	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Client closed")
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil {
				log.Debug().Err(err).Msg("Error sending close frame")
			}
			select {
			case <-done:
			case <-time.After(closeGrace):
				conn.Close()
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("WebSocket closed")
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			log.Err(err).Str("payload", truncate(string(data), 120)).Msg("Error parsing WebSocket message")
			continue
		}
		s.handler(n)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
