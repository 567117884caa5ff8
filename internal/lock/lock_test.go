package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

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

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	calls []publishCall
	token *fakeToken
}

func (f *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.calls = append(f.calls, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	return f.token
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopic(t *testing.T) {
	if got := Topic("b-1"); got != "bike/b-1/command" {
		t.Errorf("unexpected topic %q", got)
	}
}

func TestSend_Publishes(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	c := NewCommander(client, discard())

	if err := c.Send(context.Background(), "b-1", Unlock); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(client.calls))
	}
	call := client.calls[0]
	if call.topic != "bike/b-1/command" || string(call.payload) != "unlock" || call.qos != 1 {
		t.Errorf("unexpected publish %+v", call)
	}
}

func TestSend_BrokerError(t *testing.T) {
	boom := errors.New("not connected")
	c := NewCommander(&fakeClient{token: newFakeToken(boom, true)}, discard())

	if err := c.Send(context.Background(), "b-1", Lock); !errors.Is(err, boom) {
		t.Errorf("expected broker error, got %v", err)
	}
}

func TestSend_Timeout(t *testing.T) {
	c := NewCommander(&fakeClient{token: newFakeToken(nil, false)}, discard())
	c.timeout = 10 * time.Millisecond

	if err := c.Send(context.Background(), "b-1", Unlock); !errors.Is(err, ErrPublishTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	c := NewCommander(&fakeClient{token: newFakeToken(nil, false)}, discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Send(ctx, "b-1", Unlock); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
