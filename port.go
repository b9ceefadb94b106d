package serial

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Port is an open serial device configured for raw, unbuffered operation.
// A Port has a single owner; it is not safe for concurrent reads.
type Port struct {
	fd        int
	file      *os.File
	closeOnce sync.Once
	config    Config
}

// Open opens the device named by cfg without making it the controlling
// terminal, discards any input already queued, and applies cfg's line
// settings immediately.
func Open(cfg Config) (*Port, error) {
	// O_NONBLOCK keeps open from waiting on carrier detect; it is cleared
	// again once the line has CLOCAL set.
	fd, err := unix.Open(cfg.Device(), unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, cfg.Device(), err)
	}

	if err := configure(fd, cfg); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Port{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Device()),
		config: cfg,
	}, nil
}

func configure(fd int, cfg Config) error {
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("%w: flush input: %v", ErrDeviceConfigure, err)
	}
	// TCSETS applies the settings now, without draining pending output.
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, cfg.Termios()); err != nil {
		return fmt.Errorf("%w: set termios: %v", ErrDeviceConfigure, err)
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		return fmt.Errorf("%w: set blocking: %v", ErrDeviceConfigure, err)
	}
	return nil
}

// Fd returns the device's file descriptor.
func (p *Port) Fd() int { return p.fd }

// Name returns the device path the port was opened with.
func (p *Port) Name() string { return p.config.Device() }

// Config returns the configuration applied to the port.
func (p *Port) Config() Config { return p.config }

// Read reads raw bytes from the device.
func (p *Port) Read(b []byte) (int, error) {
	return p.file.Read(b)
}

// Write writes raw bytes to the device.
func (p *Port) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

// Close closes the device. Safe to call multiple times; subsequent calls are
// no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.file.Close()
	})
	return err
}
