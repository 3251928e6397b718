// Package mqtt adapts the Eclipse Paho client to the bridge's bus port.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

var (
	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrNotConnected is returned by Publish while the broker is unreachable.
	ErrNotConnected = errors.New("mqtt: not connected")
)

const (
	qos           = 0
	quiesceMillis = 250
)

// Options configures the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	WillTopic      string
	WillPayload    string
	Port           int
	KeepAlive      time.Duration
	PublishTimeout time.Duration
	RetryInterval  time.Duration
}

// Client publishes retained messages and reports connectivity changes.
type Client struct {
	client      paho.Client
	events      *events.ConnSubject
	logger      *zap.Logger
	willTopic   string
	willPayload string
	timeout     time.Duration
}

var _ ports.BusClient = (*Client)(nil)

// New builds a client with the last will registered. It does not connect.
func New(o Options, subj *events.ConnSubject, logger *zap.Logger) *Client {
	c := newClient(subj, logger, o.PublishTimeout)
	if o.RetryInterval <= 0 {
		o.RetryInterval = 10 * time.Second
	}

	opts := paho.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(o.Broker, strconv.Itoa(o.Port))).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetKeepAlive(o.KeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(o.RetryInterval).
		SetConnectTimeout(c.timeout).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if o.WillTopic != "" {
		opts.SetWill(o.WillTopic, o.WillPayload, qos, true)
		c.willTopic, c.willPayload = o.WillTopic, o.WillPayload
	}
	c.client = paho.NewClient(opts)
	return c
}

func newClient(subj *events.ConnSubject, logger *zap.Logger, timeout time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		events:  subj,
		logger:  logger.With(zap.String("component", "mqtt")),
		timeout: timeout,
	}
}

// Connect starts connecting without waiting for the broker. The client
// retries every RetryInterval until the broker answers and reconnects on its
// own afterwards; each success is reported as a Connected event.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok := c.client.Connect()
	go func() {
		select {
		case <-tok.Done():
			if err := tok.Error(); err != nil {
				c.logger.Warn("broker connect ended", zap.Error(err))
			}
		case <-ctx.Done():
		}
	}()
	return nil
}

// Publish sends payload with QoS 0 and waits for the client to hand it off.
// It fails at once while the broker is unreachable.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}
	tok := c.client.Publish(topic, qos, retain, payload)
	if !tok.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close publishes the will payload and disconnects. The broker does not send
// the will on a clean disconnect.
func (c *Client) Close() {
	if c.willTopic != "" && c.client.IsConnectionOpen() {
		if err := c.Publish(c.willTopic, []byte(c.willPayload), true); err != nil {
			c.logger.Warn("publish will failed", zap.Error(err))
		}
	}
	c.client.Disconnect(quiesceMillis)
}

func (c *Client) onConnect(paho.Client) {
	c.logger.Info("broker connected")
	c.emit(domain.ConnEvent{Connected: true})
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("broker connection lost", zap.Error(err))
	c.emit(domain.ConnEvent{Err: err})
}

func (c *Client) emit(evt domain.ConnEvent) {
	if err := c.events.Publish(context.Background(), evt); err != nil {
		c.logger.Warn("connectivity observer failed", zap.Error(err))
	}
}
