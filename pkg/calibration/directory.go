package calibration

import (
	"errors"
	"sync"

	"github.com/robotalks/gse.go/pkg/telem"
)

// ErrMissingParameter indicates a calibration parameter is absent or invalid.
var ErrMissingParameter = errors.New("missing calibration parameter")

// Entry binds a channel to its calibrator.
type Entry struct {
	Channel    telem.Channel
	Calibrator *Calibrator
}

// Directory is the channel to calibrator table.
// The entries are replaced as a whole and never modified after Install,
// so a snapshot stays valid without holding the lock.
type Directory struct {
	entries []Entry
	lock    sync.RWMutex
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Snapshot returns the current entries.
// The returned slice must not be modified.
func (d *Directory) Snapshot() []Entry {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.entries
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.entries)
}

// Install replaces all entries. The caller gives up ownership of entries.
func (d *Directory) Install(entries []Entry) {
	d.lock.Lock()
	d.entries = entries
	d.lock.Unlock()
}

// Clear removes all entries.
func (d *Directory) Clear() {
	d.Install(nil)
}

// Lookup finds the calibrator currently bound to a channel.
func (d *Directory) Lookup(key telem.ChannelKey) *Calibrator {
	for _, e := range d.Snapshot() {
		if e.Channel.Key == key {
			return e.Calibrator
		}
	}
	return nil
}
