package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/rplidar.report/internal/timeutil"
)

var (
	ErrWriteFailed = fmt.Errorf("failed to write to serial port")
	ErrReadTimeout = errors.New("serial read timed out")
	ErrPortClosed  = errors.New("serial port closed")
)

// idlePoll is how long ReadExact backs off when a port returns no data
// without honouring a read timeout itself.
const idlePoll = time.Millisecond

const scratchSize = 4096

// Port is a buffered byte transport over a SerialPorter. Bytes read from the
// device are held until a caller consumes them, so a frame split across
// several reads is reassembled rather than lost.
type Port struct {
	mu      sync.Mutex
	port    SerialPorter
	opts    PortOptions
	clock   timeutil.Clock
	pending []byte
	scratch []byte
	closed  bool
}

// NewPort wraps port. opts should already be normalized; zero timeouts fall
// back to their defaults.
func NewPort(port SerialPorter, opts PortOptions) *Port {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Port{
		port:    port,
		opts:    opts,
		clock:   timeutil.RealClock{},
		scratch: make([]byte, scratchSize),
	}
}

// SetClock replaces the clock used for read deadlines.
func (p *Port) SetClock(clock timeutil.Clock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
}

// WriteAll writes every byte of data to the port.
func (p *Port) WriteAll(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	for len(data) > 0 {
		n, err := p.port.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrWriteFailed
		}
		data = data[n:]
	}
	return nil
}

// ReadExact returns exactly n bytes, waiting up to the configured read
// timeout. On timeout the bytes received so far stay buffered and
// ErrReadTimeout is returned.
func (p *Port) ReadExact(n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPortClosed
	}

	deadline := p.clock.Now().Add(p.opts.ReadTimeout)
	for len(p.pending) < n {
		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrReadTimeout, len(p.pending), n)
		}
		got, err := p.fill(remaining)
		if err != nil {
			return nil, err
		}
		if got == 0 {
			p.clock.Sleep(idlePoll)
		}
	}

	out := make([]byte, n)
	copy(out, p.pending)
	p.pending = p.pending[n:]
	return out, nil
}

// BytesAvailable drains whatever the device has ready into the buffer and
// returns the number of buffered bytes. It waits at most the poll timeout.
func (p *Port) BytesAvailable() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	for {
		got, err := p.fill(p.opts.PollTimeout)
		if err != nil {
			return len(p.pending), err
		}
		if got < len(p.scratch) {
			break
		}
	}
	return len(p.pending), nil
}

// Buffered returns the number of bytes held without touching the device.
func (p *Port) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// ClearInputBuffer discards buffered bytes and, when the device supports it,
// bytes still queued in the driver.
func (p *Port) ClearInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.pending = p.pending[:0]
	if r, ok := p.port.(InputResetter); ok {
		return r.ResetInputBuffer()
	}
	return nil
}

// Close closes the underlying port. Later calls fail with ErrPortClosed.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}

// fill performs one read of at most len(scratch) bytes, bounded by timeout
// when the port supports it. A port reporting io.EOF has nothing to offer
// right now, which is not an error for a serial line.
func (p *Port) fill(timeout time.Duration) (int, error) {
	if tp, ok := p.port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(timeout); err != nil {
			return 0, err
		}
	}

	n, err := p.port.Read(p.scratch)
	if n > 0 {
		p.pending = append(p.pending, p.scratch[:n]...)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}
