// Package telnet is the device transport: a TCP byte stream that refuses
// every telnet option the modem offers and strips the negotiation bytes.
package telnet

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
)

const (
	cmdSE   = 240
	cmdSB   = 250
	cmdWILL = 251
	cmdWONT = 252
	cmdDO   = 253
	cmdDONT = 254
	cmdIAC  = 255
)

// DefaultEagerWindow bounds how long DiscardEager waits for more output.
const DefaultEagerWindow = 20 * time.Millisecond

type parseState uint8

const (
	stData parseState = iota
	stIAC
	stOption
	stSub
	stSubIAC
)

// Dialer opens telnet connections to the modem.
type Dialer struct {
	// DialTimeout limits the TCP connect; zero leaves it to the OS.
	DialTimeout time.Duration
	// ReadTimeout limits every ReadUntil; zero blocks forever.
	ReadTimeout time.Duration
}

var _ ports.DeviceDialer = Dialer{}

// Dial connects to addr.
func (d Dialer) Dial(ctx context.Context, addr string) (ports.DeviceConn, error) {
	nd := net.Dialer{Timeout: d.DialTimeout}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("telnet dial %s: %w", addr, err)
	}
	return NewConn(c, d.ReadTimeout), nil
}

// Conn wraps a net.Conn with telnet negotiation filtering.
type Conn struct {
	conn        net.Conn
	r           *bufio.Reader
	closeErr    error
	readTimeout time.Duration
	eagerWindow time.Duration
	closeOnce   sync.Once
	state       parseState
	verb        byte
}

var _ ports.DeviceConn = (*Conn)(nil)

// NewConn wraps an established connection.
func NewConn(c net.Conn, readTimeout time.Duration) *Conn {
	return &Conn{
		conn:        c,
		r:           bufio.NewReader(c),
		readTimeout: readTimeout,
		eagerWindow: DefaultEagerWindow,
	}
}

// ReadUntil reads until delim and returns all data up to and including it.
// When the stream ends or times out first, the partial data is returned
// together with an error wrapping domain.ErrPromptNotFound.
func (c *Conn) ReadUntil(delim []byte) ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}

	var buf bytes.Buffer
	for {
		b, err := c.readByte()
		if err != nil {
			return buf.Bytes(), fmt.Errorf("read until %q: %w: %w", delim, domain.ErrPromptNotFound, err)
		}
		buf.WriteByte(b)
		if bytes.HasSuffix(buf.Bytes(), delim) {
			return buf.Bytes(), nil
		}
	}
}

// DiscardEager drops whatever the device has already sent, waiting at most
// the eager window for more.
func (c *Conn) DiscardEager() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.eagerWindow)); err != nil {
		return err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		if _, err := c.readByte(); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("discard: %w", err)
		}
	}
}

// Write sends p verbatim.
func (c *Conn) Write(p []byte) error {
	if _, err := c.conn.Write(p); err != nil {
		return fmt.Errorf("telnet write: %w", err)
	}
	return nil
}

// Close releases the connection. Only the first call closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

func (c *Conn) readByte() (byte, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, err
		}
		out, ok, err := c.feed(b)
		if err != nil {
			return 0, err
		}
		if ok {
			return out, nil
		}
	}
}

// feed advances the negotiation parser by one byte and reports whether b is data.
func (c *Conn) feed(b byte) (byte, bool, error) {
	switch c.state {
	case stIAC:
		switch b {
		case cmdIAC:
			c.state = stData
			return b, true, nil
		case cmdWILL, cmdWONT, cmdDO, cmdDONT:
			c.verb = b
			c.state = stOption
		case cmdSB:
			c.state = stSub
		default:
			c.state = stData
		}
		return 0, false, nil
	case stOption:
		c.state = stData
		return 0, false, c.refuse(c.verb, b)
	case stSub:
		if b == cmdIAC {
			c.state = stSubIAC
		}
		return 0, false, nil
	case stSubIAC:
		if b == cmdSE {
			c.state = stData
		} else {
			c.state = stSub
		}
		return 0, false, nil
	}

	switch b {
	case cmdIAC:
		c.state = stIAC
		return 0, false, nil
	case 0:
		return 0, false, nil
	}
	return b, true, nil
}

func (c *Conn) refuse(verb, opt byte) error {
	var reply byte
	switch verb {
	case cmdDO:
		reply = cmdWONT
	case cmdWILL:
		reply = cmdDONT
	default:
		return nil
	}
	if _, err := c.conn.Write([]byte{cmdIAC, reply, opt}); err != nil {
		return fmt.Errorf("telnet refuse option %d: %w", opt, err)
	}
	return nil
}
