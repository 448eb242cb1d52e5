package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairchat/internal/domain"
)

const (
	defaultRetry    = 250 * time.Millisecond
	maxRetry        = 5 * time.Second
	putAttempts     = 3
	requestTimeout  = 15 * time.Second
	dialHandshake   = 10 * time.Second
	closeGrace      = 2 * time.Second
	subscribeBuffer = 64
)

// ErrClosed is returned for writes issued after Close.
var ErrClosed = errors.New("relay client closed")

// Client is a domain.Store backed by a relay. Call Run to keep the live
// subscription channel connected; Put and Once work without it.
type Client struct {
	base  string
	http  *http.Client
	log   *zap.Logger
	retry time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	puts   sync.WaitGroup

	mu      sync.Mutex
	closing bool
	subs   map[uint64]*subscription
	nextID uint64
	conn   *websocket.Conn
	out    chan subscribeFrame
}

type subscription struct {
	op   string
	path []string
	cb   domain.Listener
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient replaces the HTTP client used for put and once.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetry sets the first reconnect and retry delay. Delays double up to
// five seconds.
func WithRetry(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retry = d
		}
	}
}

// NewClient returns a client for the relay at base, e.g. http://host:8080.
func NewClient(base string, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: requestTimeout},
		log:    zap.NewNop(),
		retry:  defaultRetry,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a handle on the top-level key.
func (c *Client) Get(key string) domain.Node { return &remoteNode{c: c, path: []string{key}} }

// Close stops background work and waits for it. Puts already in flight get
// up to closeGrace to land; after that pending Put acks receive ErrClosed.
// Pending Once callbacks are dropped.
func (c *Client) Close() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.puts.Wait()
		close(drained)
	}()
	t := time.NewTimer(closeGrace)
	select {
	case <-drained:
	case <-t.C:
		c.log.Debug("closing with puts in flight")
	}
	t.Stop()

	c.cancel()
	c.wg.Wait()
	c.http.CloseIdleConnections()
}

// Run keeps the subscription websocket connected until ctx ends or the
// client is closed, re-sending every subscription after each reconnect.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	wsURL, err := c.wsURL()
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: dialHandshake}
	delay := c.retry
	for {
		conn, _, err := dialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Debug("relay dial failed", zap.String("url", wsURL), zap.Duration("retry", delay), zap.Error(err))
			if !sleep(ctx, delay) {
				return nil
			}
			delay = backoff(delay)
			continue
		}
		delay = c.retry
		c.log.Debug("relay connected", zap.String("url", wsURL))
		c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Debug("relay connection lost; reconnecting")
	}
}

// Connected reports whether the subscription channel is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// serve runs one websocket connection until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	out := make(chan subscribeFrame, subscribeBuffer)
	c.mu.Lock()
	c.conn = conn
	c.out = out
	replay := make([]subscribeFrame, 0, len(c.subs))
	for id, s := range c.subs {
		replay = append(replay, subscribeFrame{Op: s.op, ID: id, Path: s.path})
	}
	c.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for _, f := range replay {
			if err := c.write(conn, f); err != nil {
				cancel()
				return
			}
		}
		for {
			select {
			case <-connCtx.Done():
				return
			case f := <-out:
				if err := c.write(conn, f); err != nil {
					cancel()
					return
				}
			}
		}
	}()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	for {
		var d deliveryFrame
		if err := conn.ReadJSON(&d); err != nil {
			break
		}
		c.mu.Lock()
		s := c.subs[d.ID]
		c.mu.Unlock()
		if s != nil {
			s.cb(d.Value, d.Key)
		}
	}

	cancel()
	<-writerDone
	c.mu.Lock()
	c.conn = nil
	c.out = nil
	c.mu.Unlock()
}

func (c *Client) write(conn *websocket.Conn, f subscribeFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}

// send queues f on the live connection, if any. Subscriptions made while
// disconnected are sent on the next connect.
func (c *Client) send(f subscribeFrame) {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- f:
	default:
		// Writer is stuck; the connection will be replaced and every
		// subscription re-sent.
		c.log.Debug("subscription frame dropped", zap.Uint64("id", f.ID))
	}
}

func (c *Client) subscribe(op string, path []string, cb domain.Listener) domain.Unsubscribe {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = &subscription{op: op, path: path, cb: cb}
	c.mu.Unlock()
	c.send(subscribeFrame{Op: op, ID: id, Path: path})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			c.send(subscribeFrame{Op: opOff, ID: id})
		})
	}
}

func (c *Client) put(path []string, v domain.Value, ack func(error)) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		if ack != nil {
			ack(ErrClosed)
		}
		return
	}
	c.puts.Add(1)
	c.mu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.puts.Done()
		var err error
		delay := c.retry
		for attempt := 0; attempt < putAttempts; attempt++ {
			if err = c.post(c.ctx, "/v1/put", putRequest{Path: path, Value: v}, nil); err == nil || errors.Is(err, ErrStatus) {
				break
			}
			if !sleep(c.ctx, delay) {
				err = ErrClosed
				break
			}
			delay = backoff(delay)
		}
		if err != nil {
			c.log.Warn("relay put failed", zap.Strings("path", path), zap.Error(err))
		}
		if ack != nil {
			ack(err)
		}
	}()
}

// once retries until the relay answers, so a network error is never
// mistaken for an empty value. A status reply will not change on retry; the
// read is dropped instead.
func (c *Client) once(path []string, cb domain.Listener) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		delay := c.retry
		for {
			var resp onceResponse
			err := c.post(c.ctx, "/v1/once", onceRequest{Path: path}, &resp)
			if err == nil {
				cb(resp.Value, path[len(path)-1])
				return
			}
			if errors.Is(err, ErrStatus) {
				c.log.Warn("relay once rejected", zap.Strings("path", path), zap.Error(err))
				return
			}
			c.log.Debug("relay once failed", zap.Strings("path", path), zap.Error(err))
			if !sleep(c.ctx, delay) {
				return
			}
			delay = backoff(delay)
		}
	}()
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: post %s: %s", ErrStatus, path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.base + "/v1/subscribe")
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("relay url: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func backoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetry {
		return maxRetry
	}
	return d
}

type remoteNode struct {
	c    *Client
	path []string
}

func (n *remoteNode) Get(key string) domain.Node {
	return &remoteNode{c: n.c, path: append(append([]string(nil), n.path...), key)}
}

func (n *remoteNode) On(cb domain.Listener) domain.Unsubscribe { return n.c.subscribe(opOn, n.path, cb) }

func (n *remoteNode) Once(cb domain.Listener) { n.c.once(n.path, cb) }

func (n *remoteNode) Map() domain.Collection { return &remoteCollection{n: n} }

func (n *remoteNode) Put(v domain.Value, ack func(error)) { n.c.put(n.path, v, ack) }

type remoteCollection struct{ n *remoteNode }

func (rc *remoteCollection) On(cb domain.Listener) domain.Unsubscribe {
	return rc.n.c.subscribe(opMap, rc.n.path, cb)
}

// Compile-time assertion that Client implements domain.Store.
var _ domain.Store = (*Client)(nil)
