// Package nats publishes bridge output on NATS subjects. Topic separators
// become subject tokens, so p/state is sent on p.state.
//
// Core NATS keeps no retained messages and has no last will: the retain flag
// is ignored and Close publishes the will payload itself before draining.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

// ErrNotConnected is returned by Publish before Connect or after Close.
var ErrNotConnected = errors.New("nats: not connected")

// Options configures the NATS connection.
type Options struct {
	URL           string
	Name          string
	Username      string
	Password      string
	WillTopic     string
	WillPayload   string
	ReconnectWait time.Duration
	FlushTimeout  time.Duration
}

type conn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
	Close()
}

// Client is a ports.BusClient backed by a NATS connection.
type Client struct {
	conn      conn
	dial      func() (conn, error)
	events    *events.ConnSubject
	logger    *zap.Logger
	opts      Options
	mu        sync.RWMutex
	connected atomic.Bool
}

var _ ports.BusClient = (*Client)(nil)

// New prepares a client; Connect opens the connection.
func New(o Options, subj *events.ConnSubject, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = 5 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	c := &Client{
		events: subj,
		logger: logger.With(zap.String("component", "nats")),
		opts:   o,
	}
	c.dial = func() (conn, error) {
		return nats.Connect(o.URL, c.connectionOptions()...)
	}
	return c
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(c.opts.ReconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(c.handleConnect),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
	}
	if c.opts.Username != "" {
		opts = append(opts, nats.UserInfo(c.opts.Username, c.opts.Password))
	}
	if c.opts.Name != "" {
		opts = append(opts, nats.Name(c.opts.Name))
	}
	return opts
}

// Connect creates the connection without waiting for the server. An
// unreachable server is retried in the background every ReconnectWait and
// reported through the connectivity subject once it answers.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := c.dial()
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.conn = nc
	c.mu.Unlock()

	if nc.IsConnected() {
		c.markConnected()
	} else {
		c.logger.Warn("nats server not reachable yet, retrying in background", zap.String("url", c.opts.URL))
	}
	return nil
}

// Publish sends payload on the subject derived from topic.
func (c *Client) Publish(topic string, payload []byte, _ bool) error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	if nc == nil {
		return ErrNotConnected
	}
	if err := nc.Publish(Subject(topic), payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close announces the will payload when connected and drains the connection.
func (c *Client) Close() {
	c.mu.Lock()
	nc := c.conn
	c.conn = nil
	c.mu.Unlock()
	if nc == nil {
		return
	}

	if c.opts.WillTopic != "" && nc.IsConnected() {
		if err := nc.Publish(Subject(c.opts.WillTopic), []byte(c.opts.WillPayload)); err != nil {
			c.logger.Warn("publish will failed", zap.Error(err))
		} else if err := nc.FlushTimeout(c.opts.FlushTimeout); err != nil {
			c.logger.Warn("flush will failed", zap.Error(err))
		}
	}
	if err := nc.Drain(); err != nil {
		c.logger.Warn("nats drain failed, closing", zap.Error(err))
		nc.Close()
	}
}

// Subject converts a slash separated topic into a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

func (c *Client) handleConnect(*nats.Conn) {
	c.markConnected()
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.logger.Warn("nats disconnected", zap.Error(err))
	c.connected.Store(false)
	c.emit(domain.ConnEvent{Err: err})
}

func (c *Client) handleReconnect(*nats.Conn) {
	c.markConnected()
}

func (c *Client) handleClosed(*nats.Conn) {
	c.logger.Info("nats connection closed")
	c.connected.Store(false)
	c.emit(domain.ConnEvent{Err: nats.ErrConnectionClosed})
}

// markConnected emits a Connected event once per transition to connected.
func (c *Client) markConnected() {
	if c.connected.Swap(true) {
		return
	}
	c.logger.Info("nats connected", zap.String("url", c.opts.URL))
	c.emit(domain.ConnEvent{Connected: true})
}

func (c *Client) emit(evt domain.ConnEvent) {
	if err := c.events.Publish(context.Background(), evt); err != nil {
		c.logger.Warn("connectivity observer failed", zap.Error(err))
	}
}
