package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gse.go/pkg/telem"
)

func TestChannels(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	created, err := h.CreateChannels(ctx,
		telem.Channel{Name: "t", DataType: telem.TimeStamp, IsIndex: true},
		telem.Channel{Name: "a", DataType: telem.Float32})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.NotEqual(t, created[0].Key, created[1].Key)

	again, err := h.CreateChannels(ctx, telem.Channel{Name: "a", DataType: telem.Float64})
	require.NoError(t, err)
	require.Equal(t, created[1], again[0])

	channels, err := h.RetrieveChannels(ctx, "a", "t")
	require.NoError(t, err)
	require.Equal(t, []telem.Channel{created[1], created[0]}, channels)

	_, err = h.RetrieveChannel(ctx, "b")
	require.True(t, telem.IsNotFound(err))
}

func TestActiveRange(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	_, err := h.ActiveRange(ctx)
	require.Equal(t, telem.ErrNoActiveRange, err)

	trigger, err := h.CreateChannels(ctx, telem.Channel{Name: telem.ActiveRangeSetChannel, DataType: telem.TimeStamp})
	require.NoError(t, err)
	s, err := h.OpenStreamer(ctx, telem.StreamerConfig{Keys: telem.Keys(trigger)})
	require.NoError(t, err)

	require.NoError(t, h.SetActiveRange(ctx, &telem.Range{Key: "r1"}))
	r, err := h.ActiveRange(ctx)
	require.NoError(t, err)
	require.Equal(t, "r1", r.Key)
	f, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, telem.Keys(trigger), f.Keys)

	require.NoError(t, h.SetActiveRange(ctx, nil))
	_, err = h.ActiveRange(ctx)
	require.Equal(t, telem.ErrNoActiveRange, err)
}

func TestWriteStream(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	s, err := h.OpenStreamer(ctx, telem.StreamerConfig{Keys: []telem.ChannelKey{2}})
	require.NoError(t, err)
	w, err := h.OpenWriter(ctx, telem.WriterConfig{Keys: []telem.ChannelKey{1, 2, 3}, Subject: "test"})
	require.NoError(t, err)

	var f telem.Frame
	f.Append(1, telem.TimeStampSeries([]telem.Nanos{1}))
	f.Append(2, telem.Float32Series([]float32{2}))
	require.NoError(t, w.Write(f))

	var other telem.Frame
	other.Append(3, telem.Float32Series([]float32{3}))
	require.NoError(t, w.Write(other))
	require.NoError(t, w.Commit())

	read, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, []telem.ChannelKey{2}, read.Keys)
	require.Len(t, h.Frames("test"), 2)
	require.Equal(t, 1, h.Commits("test"))

	require.NoError(t, w.Close())
	require.Equal(t, telem.ErrWriterClosed, w.Write(f))
}

func TestCloseSend(t *testing.T) {
	h := NewHub()
	s, err := h.OpenStreamer(context.Background(), telem.StreamerConfig{Keys: []telem.ChannelKey{1}})
	require.NoError(t, err)
	require.Equal(t, 1, h.Streamers())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read()
		errCh <- err
	}()
	require.NoError(t, s.CloseSend())
	require.Equal(t, telem.ErrStreamClosed, <-errCh)
	require.NoError(t, s.CloseSend())
	require.Equal(t, 0, h.Streamers())
	_, err = s.Read()
	require.Equal(t, telem.ErrStreamClosed, err)
}
