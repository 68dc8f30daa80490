package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultAcquireTimeout bounds how long a request waits for a free detector.
const DefaultAcquireTimeout = 30 * time.Second

var (
	ErrPoolClosed     = errors.New("detector pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for an available detector")
)

// Pool hands out detectors so that no network is shared by two goroutines.
// A detector is only ever closed while no caller holds it.
type Pool struct {
	detectors chan Detector
	all       []Detector
	timeout   time.Duration

	mu     sync.Mutex
	inUse  int
	closed bool
	idle   chan struct{} // closed when the last acquired detector comes back after Close
	errs   []error
}

// NewPool takes ownership of the given detectors.
func NewPool(detectors []Detector, timeout time.Duration) (*Pool, error) {
	if len(detectors) == 0 {
		return nil, fmt.Errorf("detector pool needs at least one detector")
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	pool := &Pool{
		detectors: make(chan Detector, len(detectors)),
		all:       detectors,
		timeout:   timeout,
		idle:      make(chan struct{}),
	}
	for _, d := range detectors {
		pool.detectors <- d
	}
	return pool, nil
}

// Acquire waits for a free detector, the pool timeout, or ctx cancellation.
// Every successful Acquire must be paired with Release.
func (p *Pool) Acquire(ctx context.Context) (Detector, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case d := <-p.detectors:
		return p.checkout(d)
	case <-timer.C:
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// checkout marks d as in use unless Close ran while the caller was waiting.
func (p *Pool) checkout(d Detector) (Detector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		// Close drained the channel without seeing d, so it is ours to close.
		if err := d.Close(); err != nil {
			p.errs = append(p.errs, err)
		}
		return nil, ErrPoolClosed
	}
	p.inUse++
	return d, nil
}

// Release returns a detector obtained from Acquire. After Close the
// detector is closed here instead of going back to the pool.
func (p *Pool) Release(d Detector) {
	if d == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.inUse--
	if !p.closed {
		p.detectors <- d
		return
	}

	if err := d.Close(); err != nil {
		p.errs = append(p.errs, err)
	}
	if p.inUse == 0 {
		close(p.idle)
	}
}

// Size is the number of detectors owned by the pool.
func (p *Pool) Size() int {
	return len(p.all)
}

// InUse is the number of detectors currently acquired.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Close stops handing out detectors and closes the idle ones. Detectors
// still acquired are closed by their Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for {
		select {
		case d := <-p.detectors:
			if err := d.Close(); err != nil {
				p.errs = append(p.errs, err)
			}
		default:
			if p.inUse == 0 {
				close(p.idle)
			}
			return errors.Join(p.errs...)
		}
	}
}

// Shutdown closes the pool and waits until every acquired detector has been
// released and closed, or ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	// Close errors are kept in p.errs and reported below.
	p.Close()

	select {
	case <-p.idle:
		p.mu.Lock()
		defer p.mu.Unlock()
		return errors.Join(p.errs...)
	case <-ctx.Done():
		return fmt.Errorf("%d detectors still in use: %w", p.InUse(), ctx.Err())
	}
}
