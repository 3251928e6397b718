package telnet

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshulcz/dslbridge/internal/domain"
)

func pipe(t *testing.T, readTimeout time.Duration) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return NewConn(client, readTimeout), server
}

func serve(t *testing.T, fn func()) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func TestReadUntil(t *testing.T) {
	c, srv := pipe(t, 0)
	serve(t, func() { _, _ = srv.Write([]byte("ALL0333B\r\nlogin: ")) })

	got, err := c.ReadUntil([]byte("login:"))
	require.NoError(t, err)
	assert.Equal(t, "ALL0333B\r\nlogin:", string(got))

	rest, err := c.ReadUntil([]byte(" "))
	require.NoError(t, err)
	assert.Equal(t, " ", string(rest), "bytes after the delimiter stay buffered")
}

func TestReadUntil_RefusesOptions(t *testing.T) {
	c, srv := pipe(t, 0)
	replies := make(chan []byte, 1)
	serve(t, func() {
		_, _ = srv.Write([]byte{cmdIAC, cmdDO, 1, cmdIAC, cmdWILL, 3, cmdIAC, cmdDONT, 5, 'o', 'k', '>'})
		buf := make([]byte, 6)
		_, _ = io.ReadFull(srv, buf)
		replies <- buf
	})

	got, err := c.ReadUntil([]byte(">"))
	require.NoError(t, err)
	assert.Equal(t, "ok>", string(got))

	select {
	case r := <-replies:
		assert.Equal(t, []byte{cmdIAC, cmdWONT, 1, cmdIAC, cmdDONT, 3}, r)
	case <-time.After(time.Second):
		t.Fatal("no negotiation replies")
	}
}

func TestReadUntil_StripsControlSequences(t *testing.T) {
	c, srv := pipe(t, 0)
	serve(t, func() {
		_, _ = srv.Write([]byte{
			'a', cmdIAC, cmdIAC, 'b',
			cmdIAC, cmdSB, 24, 1, cmdIAC, cmdIAC, cmdIAC, cmdSE,
			'\r', 0, 'c', cmdIAC, 241, '#', ' ',
		})
	})

	got, err := c.ReadUntil([]byte("# "))
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', cmdIAC, 'b', '\r', 'c', '#', ' '}, got)
}

func TestReadUntil_EOF(t *testing.T) {
	c, srv := pipe(t, 0)
	serve(t, func() {
		_, _ = srv.Write([]byte("partial"))
		_ = srv.Close()
	})

	got, err := c.ReadUntil([]byte("# "))
	require.ErrorIs(t, err, domain.ErrPromptNotFound)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "partial", string(got))
}

func TestReadUntil_Timeout(t *testing.T) {
	c, _ := pipe(t, 30*time.Millisecond)

	_, err := c.ReadUntil([]byte("# "))
	require.ErrorIs(t, err, domain.ErrPromptNotFound)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestDiscardEager(t *testing.T) {
	c, srv := pipe(t, 0)
	c.eagerWindow = 50 * time.Millisecond
	next := make(chan struct{})
	serve(t, func() {
		_, _ = srv.Write([]byte("login:stale banner\r\n"))
		<-next
		_, _ = srv.Write([]byte("fresh# "))
	})

	_, err := c.ReadUntil([]byte("login:"))
	require.NoError(t, err)

	require.NoError(t, c.DiscardEager())
	close(next)

	got, err := c.ReadUntil([]byte("# "))
	require.NoError(t, err)
	assert.Equal(t, "fresh# ", string(got))
}

func TestWriteAndClose(t *testing.T) {
	c, srv := pipe(t, 0)
	got := make(chan string, 1)
	serve(t, func() {
		buf := make([]byte, 5)
		_, _ = io.ReadFull(srv, buf)
		got <- string(buf)
	})

	require.NoError(t, c.Write([]byte("root\n")))
	assert.Equal(t, "root\n", <-got)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close reports the first result")
	assert.Error(t, c.Write([]byte("x")))
}

func TestDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("login:"))
		time.Sleep(50 * time.Millisecond)
	}()

	conn, err := Dialer{DialTimeout: time.Second}.Dial(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	got, err := conn.ReadUntil([]byte("login:"))
	require.NoError(t, err)
	assert.Equal(t, "login:", string(got))
}

func TestDialer_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dialer{DialTimeout: time.Second}.Dial(context.Background(), addr)
	assert.Error(t, err)
}
