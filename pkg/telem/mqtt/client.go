package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/gse.go/pkg/telem"
)

const (
	topicChannels    = "channels/"
	topicActiveRange = "ranges/active"
	topicWriters     = "writers/"
	topicFrames      = "frames/"
	topicCommits     = "commits/"

	// rangeSubject is the frame subject of active range notifications.
	rangeSubject = "_ranges"
)

// DefaultFetchTimeout is how long to wait for a retained document.
const DefaultFetchTimeout = 500 * time.Millisecond

// ErrFetchTimeout is returned when no retained document arrives in time.
var ErrFetchTimeout = errors.New("retained document not received")

// DefaultPublishTimeout bounds a blocking publish.
const DefaultPublishTimeout = 5 * time.Second

// Client implements telem.Client and telem.Admin.
type Client struct {
	Queue          *Queue
	FetchTimeout   time.Duration
	PublishTimeout time.Duration

	channelsLock sync.RWMutex
	channels     map[string]telem.Channel
}

// NewClient creates a Client for the broker.
func NewClient(brokerURL string) (*Client, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		Queue:          q,
		FetchTimeout:   DefaultFetchTimeout,
		PublishTimeout: DefaultPublishTimeout,
		channels:       make(map[string]telem.Channel),
	}, nil
}

// Connect connects to the broker.
func (c *Client) Connect(ctx context.Context) error {
	if err := waitToken(ctx, c.Queue.Connect()); err != nil {
		return fmt.Errorf("%w: %v", telem.ErrNotConnected, err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	return c.Queue.Close()
}

// RetrieveChannel implements telem.Client.
func (c *Client) RetrieveChannel(ctx context.Context, name string) (ch telem.Channel, err error) {
	c.channelsLock.RLock()
	ch, ok := c.channels[name]
	c.channelsLock.RUnlock()
	if ok {
		return ch, nil
	}
	payload, err := c.fetchRetained(ctx, topicChannels+name)
	if errors.Is(err, ErrFetchTimeout) || err == nil && len(payload) == 0 {
		return ch, &telem.NotFoundError{Kind: "channel", Name: name}
	}
	if err != nil {
		return ch, err
	}
	if err = json.Unmarshal(payload, &ch); err != nil {
		return ch, fmt.Errorf("channel %q: %w", name, err)
	}
	c.cacheChannel(ch)
	return ch, nil
}

// RetrieveChannels implements telem.Client.
func (c *Client) RetrieveChannels(ctx context.Context, names ...string) ([]telem.Channel, error) {
	channels := make([]telem.Channel, 0, len(names))
	for _, name := range names {
		ch, err := c.RetrieveChannel(ctx, name)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// ActiveRange implements telem.Client.
// The active range is never cached. Only the retained range document
// without a key means no active range. A missing document is
// ErrFetchTimeout, the range being unknown rather than unset.
func (c *Client) ActiveRange(ctx context.Context) (*telem.Range, error) {
	payload, err := c.fetchRetained(ctx, topicActiveRange)
	if err != nil {
		return nil, fmt.Errorf("active range: %w", err)
	}
	return decodeActiveRange(payload)
}

func decodeActiveRange(payload []byte) (*telem.Range, error) {
	if len(payload) == 0 {
		return nil, telem.ErrNoActiveRange
	}
	var r telem.Range
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("active range: %w", err)
	}
	if r.Key == "" {
		return nil, telem.ErrNoActiveRange
	}
	return &r, nil
}

// CreateChannels implements telem.Admin.
func (c *Client) CreateChannels(ctx context.Context, channels ...telem.Channel) ([]telem.Channel, error) {
	res := make([]telem.Channel, len(channels))
	for i, ch := range channels {
		existing, err := c.RetrieveChannel(ctx, ch.Name)
		if err == nil {
			res[i] = existing
			continue
		}
		if !telem.IsNotFound(err) {
			return nil, err
		}
		for ch.Key == 0 {
			ch.Key = telem.ChannelKey(uuid.New().ID())
		}
		payload, err := json.Marshal(&ch)
		if err != nil {
			panic(err)
		}
		if err := c.publish(ctx, topicChannels+ch.Name, payload, 1, true); err != nil {
			return nil, err
		}
		glog.Infof("channel %q created: key=%d", ch.Name, ch.Key)
		c.cacheChannel(ch)
		res[i] = ch
	}
	return res, nil
}

// SetActiveRange implements telem.Admin.
// A nil range is published as the retained document {}.
func (c *Client) SetActiveRange(ctx context.Context, r *telem.Range) error {
	if r == nil {
		r = &telem.Range{}
	}
	payload, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	if err = c.publish(ctx, topicActiveRange, payload, 1, true); err != nil {
		return err
	}
	trigger, err := c.RetrieveChannel(ctx, telem.ActiveRangeSetChannel)
	if telem.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var f telem.Frame
	f.Append(trigger.Key, telem.TimeStampSeries([]telem.Nanos{telem.Now()}))
	return c.publish(ctx, topicFrames+rangeSubject, telem.MarshalFrame(f), 1, false)
}

// OpenWriter implements telem.Client.
func (c *Client) OpenWriter(ctx context.Context, cfg telem.WriterConfig) (telem.Writer, error) {
	w := &Writer{
		client:  c,
		subject: topicSafe(cfg.Subject),
		session: uuid.New().String(),
		cfg:     cfg,
	}
	if err := w.announce(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// OpenStreamer implements telem.Client.
func (c *Client) OpenStreamer(ctx context.Context, cfg telem.StreamerConfig) (telem.Streamer, error) {
	s := &Streamer{
		keys:   append([]telem.ChannelKey(nil), cfg.Keys...),
		start:  cfg.Start,
		frames: make(chan telem.Frame, streamerBufferSize),
		done:   make(chan struct{}),
	}
	s.sub = c.Queue.Sub(topicFrames+"+", s.handleMsg)
	if err := waitToken(ctx, s.sub.Token); err != nil {
		s.sub.Close()
		return nil, err
	}
	return s, nil
}

func (c *Client) cacheChannel(ch telem.Channel) {
	c.channelsLock.Lock()
	c.channels[ch.Name] = ch
	c.channelsLock.Unlock()
}

func (c *Client) publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.publishTimeout())
	defer cancel()
	return waitToken(ctx, c.Queue.PubWith(topic, payload, qos, retain))
}

func (c *Client) publishTimeout() time.Duration {
	if c.PublishTimeout > 0 {
		return c.PublishTimeout
	}
	return DefaultPublishTimeout
}

// fetchRetained waits for the retained message of topic.
// It returns ErrFetchTimeout if nothing arrives before FetchTimeout.
func (c *Client) fetchRetained(ctx context.Context, topic string) ([]byte, error) {
	resCh := make(chan []byte, 1)
	sub := c.Queue.Sub(topic, func(_ string, payload []byte) {
		select {
		case resCh <- payload:
		default:
		}
	})
	defer sub.Close()
	if err := waitToken(ctx, sub.Token); err != nil {
		return nil, fmt.Errorf("%w: %v", telem.ErrNotConnected, err)
	}
	dur := c.FetchTimeout
	if dur == 0 {
		dur = DefaultFetchTimeout
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case payload := <-resCh:
		return payload, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrFetchTimeout, topic)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func topicSafe(name string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(name)
}
