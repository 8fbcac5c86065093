package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/gse.go/pkg/telem"
)

type testMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m *testMessage) Topic() string   { return m.topic }
func (m *testMessage) Payload() []byte { return m.payload }

// testBroker is an in-process stand-in for a connected paho client
// keeping retained messages.
type testBroker struct {
	paho.Client

	lock     sync.Mutex
	retained map[string][]byte
	subs     map[string]paho.MessageHandler
}

func (b *testBroker) Subscribe(filter string, qos byte, handler paho.MessageHandler) paho.Token {
	var msgs []*testMessage
	b.lock.Lock()
	b.subs[filter] = handler
	for topic, payload := range b.retained {
		if MatchTopic(topic, filter) {
			msgs = append(msgs, &testMessage{topic: topic, payload: payload})
		}
	}
	b.lock.Unlock()
	go func() {
		for _, msg := range msgs {
			handler(b, msg)
		}
	}()
	return &paho.DummyToken{}
}

func (b *testBroker) Unsubscribe(filters ...string) paho.Token {
	b.lock.Lock()
	for _, filter := range filters {
		delete(b.subs, filter)
	}
	b.lock.Unlock()
	return &paho.DummyToken{}
}

func (b *testBroker) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	data := payload.([]byte)
	var handlers []paho.MessageHandler
	b.lock.Lock()
	if retained {
		if len(data) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = data
		}
	}
	for filter, handler := range b.subs {
		if MatchTopic(topic, filter) {
			handlers = append(handlers, handler)
		}
	}
	b.lock.Unlock()
	for _, handler := range handlers {
		handler(b, &testMessage{topic: topic, payload: data})
	}
	return &paho.DummyToken{}
}

func newTestClient() *Client {
	q := NewQueue(paho.NewClientOptions(), "test/")
	q.Client = &testBroker{
		retained: make(map[string][]byte),
		subs:     make(map[string]paho.MessageHandler),
	}
	return &Client{
		Queue:          q,
		FetchTimeout:   20 * time.Millisecond,
		PublishTimeout: time.Second,
		channels:       make(map[string]telem.Channel),
	}
}

func TestActiveRange(t *testing.T) {
	ctx := context.Background()
	c := newTestClient()

	// nothing retained: unknown, not unset.
	_, err := c.ActiveRange(ctx)
	require.True(t, errors.Is(err, ErrFetchTimeout))
	require.False(t, errors.Is(err, telem.ErrNoActiveRange))

	require.NoError(t, c.SetActiveRange(ctx, &telem.Range{Key: "r1", Name: "hotfire", KV: map[string]string{"a": "1"}}))
	r, err := c.ActiveRange(ctx)
	require.NoError(t, err)
	require.Equal(t, "r1", r.Key)
	require.Equal(t, "1", r.KV["a"])

	require.NoError(t, c.SetActiveRange(ctx, nil))
	_, err = c.ActiveRange(ctx)
	require.Equal(t, telem.ErrNoActiveRange, err)
}

func TestDecodeActiveRange(t *testing.T) {
	_, err := decodeActiveRange(nil)
	require.Equal(t, telem.ErrNoActiveRange, err)
	_, err = decodeActiveRange([]byte(`{}`))
	require.Equal(t, telem.ErrNoActiveRange, err)
	_, err = decodeActiveRange([]byte(`{`))
	require.Error(t, err)
	require.False(t, errors.Is(err, telem.ErrNoActiveRange))
	r, err := decodeActiveRange([]byte(`{"key":"r2"}`))
	require.NoError(t, err)
	require.Equal(t, "r2", r.Key)
}

func TestChannels(t *testing.T) {
	ctx := context.Background()
	c := newTestClient()

	_, err := c.RetrieveChannel(ctx, "gse_ai_1")
	require.True(t, telem.IsNotFound(err))

	created, err := c.CreateChannels(ctx, telem.Channel{Name: "gse_ai_1", DataType: telem.Float32})
	require.NoError(t, err)
	require.NotZero(t, created[0].Key)

	// a fresh client reads the retained document.
	other := newTestClient()
	other.Queue.Client = c.Queue.Client
	ch, err := other.RetrieveChannel(ctx, "gse_ai_1")
	require.NoError(t, err)
	require.Equal(t, created[0], ch)
}

func TestSetActiveRangeTrigger(t *testing.T) {
	ctx := context.Background()
	c := newTestClient()
	trigger, err := c.CreateChannels(ctx, telem.Channel{Name: telem.ActiveRangeSetChannel, DataType: telem.TimeStamp, IsIndex: true})
	require.NoError(t, err)

	s, err := c.OpenStreamer(ctx, telem.StreamerConfig{Keys: telem.Keys(trigger)})
	require.NoError(t, err)
	defer s.CloseSend()

	require.NoError(t, c.SetActiveRange(ctx, &telem.Range{Key: "r1"}))
	f, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, telem.Keys(trigger), f.Keys)
}
