package calibration

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gse.go/pkg/telem"
)

func makeEntries(n int, kind Kind) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i].Channel = telem.Channel{
			Key:      telem.ChannelKey(i + 1),
			Name:     fmt.Sprintf("gse_ai_%d", i),
			DataType: telem.Float32,
		}
		switch kind {
		case KindPT:
			entries[i].Calibrator = NewPT(0.5, 250)
		case KindTC:
			entries[i].Calibrator = NewTC()
		default:
			entries[i].Calibrator = NewNOOP()
		}
	}
	return entries
}

func TestDirectoryInstall(t *testing.T) {
	d := NewDirectory()
	require.Equal(t, 0, d.Len())
	require.Empty(t, d.Snapshot())

	d.Install(makeEntries(3, KindTC))
	require.Equal(t, 3, d.Len())
	cal := d.Lookup(2)
	require.NotNil(t, cal)
	require.Equal(t, KindTC, cal.Kind)
	require.Nil(t, d.Lookup(100))

	snapshot := d.Snapshot()
	d.Clear()
	require.Equal(t, 0, d.Len())
	require.Len(t, snapshot, 3)
}

func TestDirectoryConcurrentRebuild(t *testing.T) {
	d := NewDirectory()
	d.Install(makeEntries(4, KindPT))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				d.Install(makeEntries(8, KindTC))
			} else {
				d.Install(makeEntries(4, KindPT))
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		entries := d.Snapshot()
		// a snapshot is always one complete generation.
		switch len(entries) {
		case 4:
			for _, e := range entries {
				require.Equal(t, KindPT, e.Calibrator.Kind)
			}
		case 8:
			for _, e := range entries {
				require.Equal(t, KindTC, e.Calibrator.Kind)
			}
		default:
			t.Fatalf("unexpected snapshot size %d", len(entries))
		}
	}
	close(stop)
	wg.Wait()
}
