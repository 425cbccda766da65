package buffers

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Readback states.
const (
	readbackIdle int32 = iota
	readbackPending
	readbackDone
	readbackFailed
)

// ErrReadbackBusy is returned by Request while a transfer is in flight or cooling down.
var ErrReadbackBusy = errors.New("readback busy")

// TransferFunc converts a staged device array into the host vertex layout.
type TransferFunc func(src []r3.Vec, dst []float32) error

// PackVertices writes src as tightly packed xyz float32 triples.
func PackVertices(src []r3.Vec, dst []float32) error {
	if len(dst) < len(src)*3 {
		return fmt.Errorf("host buffer holds %d floats, need %d", len(dst), len(src)*3)
	}
	for i, v := range src {
		dst[i*3] = float32(v.X)
		dst[i*3+1] = float32(v.Y)
		dst[i*3+2] = float32(v.Z)
	}
	return nil
}

// Readback moves a Vec3 buffer from the device to host memory without blocking the caller.
//
// Request snapshots the device buffer into a staging area (ordered after every dispatch that
// preceded it) and starts the host transfer in the background. The caller polls once per
// tick; a failed transfer is dropped and no new request is accepted until the cooldown has
// passed.
type Readback struct {
	Cooldown time.Duration
	Transfer TransferFunc

	now     func() time.Time
	state   atomic.Int32
	staging []r3.Vec
	result  []float32
	count   int
	err     error
	retryAt time.Time

	completed uint64
	failed    uint64
}

// NewReadback creates an idle readback.
func NewReadback(cooldown time.Duration) *Readback {
	return &Readback{
		Cooldown: cooldown,
		Transfer: PackVertices,
		now:      time.Now,
	}
}

// Pending reports whether a transfer is in flight.
func (r *Readback) Pending() bool {
	return r.state.Load() == readbackPending
}

// Request starts a transfer of the named Vec3 buffer.
func (r *Readback) Request(s *Store, name string) error {
	switch r.state.Load() {
	case readbackPending, readbackDone:
		return ErrReadbackBusy
	case readbackFailed:
		r.settleFailure()
	}
	if r.now().Before(r.retryAt) {
		return ErrReadbackBusy
	}

	src, err := View[r3.Vec](s, name)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	if cap(r.staging) < len(src) {
		r.staging = make([]r3.Vec, len(src))
		r.result = make([]float32, len(src)*3)
	}
	r.staging = r.staging[:len(src)]
	r.result = r.result[:len(src)*3]
	copy(r.staging, src)
	r.count = len(src)

	transfer := r.Transfer
	if transfer == nil {
		transfer = PackVertices
	}
	r.state.Store(readbackPending)
	go func(staging []r3.Vec, result []float32) {
		if err := transfer(staging, result); err != nil {
			r.err = err
			r.state.Store(readbackFailed)
			return
		}
		r.state.Store(readbackDone)
	}(r.staging, r.result)
	return nil
}

// Poll copies a completed transfer into dst and returns the vertex count. ready is false while
// the transfer is pending, after a failure, or when nothing was requested.
func (r *Readback) Poll(dst []float32) (n int, ready bool) {
	switch r.state.Load() {
	case readbackDone:
		copy(dst, r.result)
		n = r.count
		r.completed++
		r.state.Store(readbackIdle)
		return n, true
	case readbackFailed:
		r.settleFailure()
	}
	return 0, false
}

// settleFailure starts the retry cooldown after a failed transfer.
func (r *Readback) settleFailure() {
	r.failed++
	r.retryAt = r.now().Add(r.Cooldown)
	r.state.Store(readbackIdle)
}

// Err returns the error of the most recent failed transfer.
func (r *Readback) Err() error {
	if r.state.Load() == readbackPending {
		return nil
	}
	return r.err
}

// Counts returns the number of completed and failed transfers.
func (r *Readback) Counts() (completed, failed uint64) {
	return r.completed, r.failed
}
