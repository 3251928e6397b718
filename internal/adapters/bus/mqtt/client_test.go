package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	payload  any
	topic    string
	qos      byte
	retained bool
}

type fakePaho struct {
	paho.Client
	mu           sync.Mutex
	connectToks  []paho.Token
	publishTok   paho.Token
	published    []published
	offline      bool
	disconnected bool
}

func (f *fakePaho) IsConnectionOpen() bool { return !f.offline }

func (f *fakePaho) Connect() paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := f.connectToks[0]
	if len(f.connectToks) > 1 {
		f.connectToks = f.connectToks[1:]
	}
	return tok
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: payload})
	return f.publishTok
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func newTestClient(fp *fakePaho, subj *events.ConnSubject) *Client {
	c := newClient(subj, nil, 50*time.Millisecond)
	c.client = fp
	return c
}

func TestPublish(t *testing.T) {
	fp := &fakePaho{publishTok: doneToken(nil)}
	c := newTestClient(fp, nil)

	require.NoError(t, c.Publish("p/state", []byte("IDLE"), true))

	require.Len(t, fp.published, 1)
	assert.Equal(t, published{topic: "p/state", qos: 0, retained: true, payload: []byte("IDLE")}, fp.published[0])
}

func TestPublish_Errors(t *testing.T) {
	boom := errors.New("not connected")

	c := newTestClient(&fakePaho{publishTok: doneToken(boom)}, nil)
	assert.ErrorIs(t, c.Publish("p/state", nil, true), boom)

	c = newTestClient(&fakePaho{publishTok: pendingToken()}, nil)
	assert.ErrorIs(t, c.Publish("p/state", nil, true), ErrTimeout)
}

func TestPublish_NotConnected(t *testing.T) {
	fp := &fakePaho{offline: true, publishTok: pendingToken()}
	c := newTestClient(fp, nil)
	c.timeout = time.Hour

	start := time.Now()
	assert.ErrorIs(t, c.Publish("p/state", nil, true), ErrNotConnected)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, fp.published)
}

func TestConnect_DoesNotWaitForBroker(t *testing.T) {
	fp := &fakePaho{connectToks: []paho.Token{pendingToken()}}
	c := newTestClient(fp, nil)
	c.timeout = time.Hour

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Connect blocked on an unreachable broker")
	}
}

func TestConnect_ContextCanceled(t *testing.T) {
	fp := &fakePaho{connectToks: []paho.Token{pendingToken()}}
	c := newTestClient(fp, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Connect(ctx), context.Canceled)
}

func TestConnectivityEvents(t *testing.T) {
	subj := events.NewConnSubject()
	var got []domain.ConnEvent
	subj.Attach(events.ConnObserverFunc(func(_ context.Context, evt domain.ConnEvent) error {
		got = append(got, evt)
		return nil
	}))
	c := newTestClient(&fakePaho{}, subj)

	lost := errors.New("EOF")
	c.onConnect(nil)
	c.onConnectionLost(nil, lost)
	c.onConnect(nil)

	require.Len(t, got, 3)
	assert.True(t, got[0].Connected)
	assert.False(t, got[1].Connected)
	assert.ErrorIs(t, got[1].Err, lost)
	assert.True(t, got[2].Connected)
}

func TestClose(t *testing.T) {
	fp := &fakePaho{}
	newTestClient(fp, nil).Close()
	assert.True(t, fp.disconnected)
	assert.Empty(t, fp.published)
}

func TestClose_PublishesWill(t *testing.T) {
	fp := &fakePaho{publishTok: doneToken(nil)}
	c := newTestClient(fp, nil)
	c.willTopic, c.willPayload = "p/status", "offline"

	c.Close()

	require.Len(t, fp.published, 1)
	assert.Equal(t, published{topic: "p/status", retained: true, payload: []byte("offline")}, fp.published[0])
	assert.True(t, fp.disconnected)
}

func TestClose_OfflineSkipsWill(t *testing.T) {
	fp := &fakePaho{offline: true, publishTok: doneToken(nil)}
	c := newTestClient(fp, nil)
	c.willTopic, c.willPayload = "p/status", "offline"

	c.Close()

	assert.Empty(t, fp.published)
	assert.True(t, fp.disconnected)
}

func TestClose_WillFailureStillDisconnects(t *testing.T) {
	fp := &fakePaho{publishTok: doneToken(errors.New("not connected"))}
	c := newTestClient(fp, nil)
	c.willTopic, c.willPayload = "p/status", "offline"

	c.Close()

	assert.True(t, fp.disconnected)
}
