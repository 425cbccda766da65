// Package device runs data-parallel kernels on a pool of persistent worker goroutines.
//
// A kernel processes a half-open index range [start, end). Dispatch splits the element count
// into chunks, hands them to the workers and returns only when every chunk is done, so
// consecutive dispatches are separated by a full barrier: a later kernel observes every write
// of an earlier one. Within a dispatch, chunks run in no particular order.
package device

import (
	"runtime"
	"sync"
)

// DefaultSerialThreshold is the minimum element count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const DefaultSerialThreshold = 256

// Kernel processes elements [start, end).
type Kernel func(start, end int)

// workChunk represents a range of elements for a worker to process.
type workChunk struct {
	start, end int
	kernel     Kernel
}

// Device is a compute device backed by goroutines.
type Device struct {
	numWorkers      int
	serialThreshold int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
	mu       sync.Mutex // serializes dispatches from different callers

	dispatches uint64
}

// New creates a device with the given worker count (0 = GOMAXPROCS).
func New(workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{
		numWorkers:      workers,
		serialThreshold: DefaultSerialThreshold,
	}
}

// SetSerialThreshold changes the element count below which kernels run on the caller.
func (d *Device) SetSerialThreshold(n int) {
	d.serialThreshold = n
}

// Workers returns the size of the worker pool.
func (d *Device) Workers() int {
	return d.numWorkers
}

// Dispatches returns the number of kernel dispatches issued so far.
func (d *Device) Dispatches() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatches
}

// start launches persistent worker goroutines.
func (d *Device) start() {
	if d.running {
		return
	}

	d.workChan = make(chan workChunk, d.numWorkers)
	d.doneChan = make(chan struct{}, d.numWorkers)
	d.stopChan = make(chan struct{})
	d.running = true

	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Close signals all workers to exit and waits for them.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	close(d.stopChan)
	d.wg.Wait()
	close(d.workChan)
	close(d.doneChan)
	d.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (d *Device) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case chunk, ok := <-d.workChan:
			if !ok {
				return
			}
			chunk.kernel(chunk.start, chunk.end)
			d.doneChan <- struct{}{}
		}
	}
}

// Dispatch runs kernel over n elements and blocks until all of them are processed.
func (d *Device) Dispatch(n int, kernel Kernel) {
	if n <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatches++

	if n < d.serialThreshold || d.numWorkers == 1 {
		kernel(0, n)
		return
	}

	if !d.running {
		d.start()
	}

	chunkSize := (n + d.numWorkers - 1) / d.numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < d.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		d.workChan <- workChunk{start: start, end: end, kernel: kernel}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-d.doneChan
	}
}
