package serial

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	minBaudRate = 1200
	maxBaudRate = 115200
)

// Positions of the bridge parameters in the argument list.
const (
	paramDevice = iota
	paramSpeed
	paramDataBits
	paramParity
	paramStopBits
	paramCount
)

// Parity is the parity mode of a serial line.
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityOdd  Parity = 'O'
	ParityEven Parity = 'E'
)

// String returns the parity symbol: "N", "O" or "E".
func (p Parity) String() string {
	return string(rune(p))
}

// Config is a validated serial line configuration. The zero value is not
// usable; obtain one from Translate.
type Config struct {
	device   string
	baudRate int
	dataBits int
	parity   Parity
	stopBits int

	speed uint32 // unix.B* code
	size  uint32 // unix.CS* flag
}

// Device returns the path of the serial device.
func (c Config) Device() string { return c.device }

// BaudRate returns the line speed in bits per second.
func (c Config) BaudRate() int { return c.baudRate }

// DataBits returns the character size, 5 to 8.
func (c Config) DataBits() int { return c.dataBits }

// Parity returns the parity mode.
func (c Config) Parity() Parity { return c.parity }

// StopBits returns the number of stop bits, 1 or 2.
func (c Config) StopBits() int { return c.stopBits }

// SpeedCode returns the termios speed code (unix.B*) for BaudRate.
func (c Config) SpeedCode() uint32 { return c.speed }

// SizeFlag returns the termios character size flag (unix.CS*) for DataBits.
func (c Config) SizeFlag() uint32 { return c.size }

// Frame returns the compact notation for the character frame, e.g. "8-N-1".
func (c Config) Frame() string {
	return fmt.Sprintf("%d-%c-%d", c.dataBits, c.parity, c.stopBits)
}

// String returns the device, speed and frame, e.g. "/dev/ttyS0, 9600, 8-N-1".
func (c Config) String() string {
	return fmt.Sprintf("%s, %d, %s", c.device, c.baudRate, c.Frame())
}

// Termios returns the line settings for c: raw mode, receiver enabled, modem
// control lines ignored, reads returning as soon as one byte is available.
func (c Config) Termios() *unix.Termios {
	t := &unix.Termios{
		Cflag:  unix.CLOCAL | unix.CREAD | c.speed | c.size,
		Ispeed: c.speed,
		Ospeed: c.speed,
	}
	if c.stopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}
	switch c.parity {
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		t.Cflag |= unix.PARENB
	}
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return t
}

// Translate validates the five bridge parameters (device, speed, data bits,
// parity, stop bits) and returns the resulting Config. The accepted
// configuration is logged once, before the symbolic values are mapped to
// line-discipline codes. Every failure wraps one of the Err* sentinels.
func Translate(args []string, logger *zap.Logger) (Config, error) {
	if len(args) != paramCount {
		return Config{}, fmt.Errorf("%w: got %d parameters", ErrUsage, len(args))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		c   = Config{device: args[paramDevice]}
		err error
	)
	if c.baudRate, err = parseInt(args[paramSpeed], minBaudRate, maxBaudRate); err != nil {
		return Config{}, fmt.Errorf("%w: %q: %v", ErrInvalidSpeed, args[paramSpeed], err)
	}
	if c.dataBits, err = parseInt(args[paramDataBits], 5, 8); err != nil {
		return Config{}, fmt.Errorf("%w: %q: %v", ErrInvalidDataBits, args[paramDataBits], err)
	}
	if c.parity, err = parseParity(args[paramParity]); err != nil {
		return Config{}, fmt.Errorf("%w: %q: %v", ErrInvalidParity, args[paramParity], err)
	}
	if c.stopBits, err = parseInt(args[paramStopBits], 1, 2); err != nil {
		return Config{}, fmt.Errorf("%w: %q: %v", ErrInvalidStopBits, args[paramStopBits], err)
	}

	logger.Info("uart-config",
		zap.String("device", c.device),
		zap.Int("speed", c.baudRate),
		zap.String("frame", c.Frame()),
	)

	var ok bool
	if c.speed, ok = speedCode(c.baudRate); !ok {
		return Config{}, fmt.Errorf("%w: %d is not a standard rate", ErrInvalidSpeed, c.baudRate)
	}
	if c.size, ok = sizeFlag(c.dataBits); !ok {
		return Config{}, fmt.Errorf("%w: %d", ErrInvalidDataBits, c.dataBits)
	}
	return c, nil
}

func parseInt(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if n < lo {
		return 0, fmt.Errorf("too small, minimum %d", lo)
	}
	if n > hi {
		return 0, fmt.Errorf("too large, maximum %d", hi)
	}
	return n, nil
}

// Only the first character is significant: "Even" is accepted as 'E'.
func parseParity(s string) (Parity, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	switch p := Parity(s[0]); p {
	case ParityNone, ParityOdd, ParityEven:
		return p, nil
	default:
		return 0, errors.New("want N, O or E")
	}
}

func speedCode(baud int) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 1800:
		return unix.B1800, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	default:
		return 0, false
	}
}

func sizeFlag(bits int) (uint32, bool) {
	switch bits {
	case 5:
		return unix.CS5, true
	case 6:
		return unix.CS6, true
	case 7:
		return unix.CS7, true
	case 8:
		return unix.CS8, true
	default:
		return 0, false
	}
}
