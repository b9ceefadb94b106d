package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultBufferSize is the capacity of the scratch buffer shared by both
// forwarding directions.
const DefaultBufferSize = 8192

const readyEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR

// Forwarder relays bytes between a serial Port and a pair of stdio files.
// Run is single-threaded; only Stop may be called from another goroutine.
type Forwarder struct {
	dev *Port
	in  *os.File // held so the descriptors below stay open
	out *os.File

	inFd  int
	outFd int

	buf    []byte
	logger *zap.Logger

	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd

	stopOnce  sync.Once
	closeOnce sync.Once

	toStdout atomic.Uint64
	toDevice atomic.Uint64
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithBufferSize sets the scratch buffer capacity. Values below 1 are ignored.
func WithBufferSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.buf = make([]byte, n)
		}
	}
}

// WithLogger sets the logger used for per-transfer debug output.
func WithLogger(l *zap.Logger) Option {
	return func(f *Forwarder) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewForwarder returns a Forwarder that copies dev to out and in to dev.
// The Forwarder takes ownership of dev; Close releases it.
func NewForwarder(dev *Port, in, out *os.File, opts ...Option) (*Forwarder, error) {
	f := &Forwarder{
		dev:    dev,
		in:     in,
		out:    out,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.buf == nil {
		f.buf = make([]byte, DefaultBufferSize)
	}

	// Create self-pipe so Stop can wake the poll
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("%w: pipe: %v", ErrPoll, err)
	}
	f.pipeR, f.pipeW = pipeFds[0], pipeFds[1]

	// Fd puts both files into blocking mode, which the raw reads below rely on.
	f.inFd = int(in.Fd())
	f.outFd = int(out.Fd())
	return f, nil
}

// Run waits until the device or stdin is readable and copies what arrived to
// the opposite side, forever. When both are ready in the same wake-up the
// device is serviced first. Run returns only on a fatal error, which wraps
// one of the Err* sentinels, or ErrStopped after Stop.
//
// A read of zero bytes is end of stream and fatal. A write that accepts
// fewer bytes than were read is fatal too. Interrupted system calls are
// retried.
func (f *Forwarder) Run() error {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(f.dev.Fd()), Events: unix.POLLIN},
			{Fd: int32(f.inFd), Events: unix.POLLIN},
			{Fd: int32(f.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrPoll, err)
		}

		if pfd[2].Revents != 0 {
			// Drain pipe
			var b [1]byte
			unix.Read(f.pipeR, b[:])
			return ErrStopped
		}
		for _, p := range pfd[:2] {
			if p.Revents&unix.POLLNVAL != 0 {
				return fmt.Errorf("%w: invalid descriptor %d", ErrPoll, p.Fd)
			}
		}

		if pfd[0].Revents&readyEvents != 0 {
			n, err := f.forward(f.dev.Fd(), f.outFd, ErrDeviceRead, ErrStdoutWrite)
			if err != nil {
				return err
			}
			f.toStdout.Add(uint64(n))
			f.logger.Debug("forwarded", zap.String("direction", "device->stdout"), zap.Int("bytes", n))
		}
		if pfd[1].Revents&readyEvents != 0 {
			n, err := f.forward(f.inFd, f.dev.Fd(), ErrStdinRead, ErrDeviceWrite)
			if err != nil {
				return err
			}
			f.toDevice.Add(uint64(n))
			f.logger.Debug("forwarded", zap.String("direction", "stdin->device"), zap.Int("bytes", n))
		}
	}
}

func (f *Forwarder) forward(from, to int, readErr, writeErr *ExitError) (int, error) {
	n, err := retryEINTR(func() (int, error) { return unix.Read(from, f.buf) })
	if err != nil {
		return 0, fmt.Errorf("%w: %w", readErr, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %w", readErr, io.EOF)
	}

	w, err := retryEINTR(func() (int, error) { return unix.Write(to, f.buf[:n]) })
	if err != nil {
		return 0, fmt.Errorf("%w: %w", writeErr, err)
	}
	if w != n {
		return 0, fmt.Errorf("%w: %w: wrote %d of %d bytes", writeErr, io.ErrShortWrite, w, n)
	}
	return n, nil
}

func retryEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if !errors.Is(err, unix.EINTR) {
			return n, err
		}
	}
}

// Stats is a snapshot of the bytes forwarded in each direction.
type Stats struct {
	DeviceToStdout uint64
	StdinToDevice  uint64
}

// Stats returns the byte counters. Safe to call while Run is active.
func (f *Forwarder) Stats() Stats {
	return Stats{
		DeviceToStdout: f.toStdout.Load(),
		StdinToDevice:  f.toDevice.Load(),
	}
}

// Stop makes Run return ErrStopped. Safe to call from any goroutine and
// multiple times.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() {
		unix.Write(f.pipeW, []byte{1})
	})
}

// Close releases the self-pipe and the device. Call it after Run has
// returned. Safe to call multiple times; subsequent calls are no-ops.
// Stop calls made after Close do nothing.
func (f *Forwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		// Waits for an in-flight Stop and disarms later ones, so pipeW is
		// never written after it is closed.
		f.stopOnce.Do(func() {})
		err = multierr.Combine(
			unix.Close(f.pipeR),
			unix.Close(f.pipeW),
			f.dev.Close(),
		)
	})
	return err
}
