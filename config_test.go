package serial

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sys/unix"
)

func params(device, speed, bits, parity, stop string) []string {
	return []string{device, speed, bits, parity, stop}
}

func TestTranslate_StandardSpeeds(t *testing.T) {
	want := map[int]uint32{
		1200:   unix.B1200,
		1800:   unix.B1800,
		2400:   unix.B2400,
		4800:   unix.B4800,
		9600:   unix.B9600,
		19200:  unix.B19200,
		38400:  unix.B38400,
		57600:  unix.B57600,
		115200: unix.B115200,
	}
	for baud, code := range want {
		cfg, err := Translate(params("/dev/ttyS0", strconv.Itoa(baud), "8", "N", "1"), nil)
		require.NoError(t, err, "baud %d", baud)
		require.Equal(t, baud, cfg.BaudRate())
		require.Equal(t, code, cfg.SpeedCode(), "baud %d", baud)

		tio := cfg.Termios()
		require.Equal(t, code, tio.Ispeed)
		require.Equal(t, code, tio.Ospeed)
		require.Equal(t, code, tio.Cflag&unix.CBAUD)
	}
}

func TestTranslate_NonStandardSpeedsInRange(t *testing.T) {
	standard := map[int]bool{
		1200: true, 1800: true, 2400: true, 4800: true, 9600: true,
		19200: true, 38400: true, 57600: true, 115200: true,
	}
	for baud := minBaudRate; baud <= maxBaudRate; baud++ {
		if standard[baud] {
			continue
		}
		_, err := Translate(params("/dev/ttyS0", strconv.Itoa(baud), "8", "N", "1"), nil)
		if !assert.ErrorIs(t, err, ErrInvalidSpeed, "baud %d", baud) {
			return
		}
	}
}

func TestTranslate_InvalidSpeed(t *testing.T) {
	for _, speed := range []string{"1199", "115201", "0", "-9600", "abc", "9600baud", " 9600", ""} {
		t.Run(speed, func(t *testing.T) {
			_, err := Translate(params("/dev/ttyS0", speed, "8", "N", "1"), nil)
			require.ErrorIs(t, err, ErrInvalidSpeed)
			require.Equal(t, ExitInvalidSpeed, ExitCode(err))
		})
	}
}

func TestTranslate_DataBits(t *testing.T) {
	want := map[string]uint32{"5": unix.CS5, "6": unix.CS6, "7": unix.CS7, "8": unix.CS8}
	for bits, flag := range want {
		cfg, err := Translate(params("/dev/ttyS0", "9600", bits, "N", "1"), nil)
		require.NoError(t, err)
		require.Equal(t, flag, cfg.SizeFlag())
		require.Equal(t, flag, cfg.Termios().Cflag&unix.CSIZE)
	}

	for _, bits := range []string{"4", "9", "0", "-8", "eight", ""} {
		// Parity and stop bits are invalid too; the data-bits check comes first.
		_, err := Translate(params("/dev/ttyS0", "9600", bits, "X", "3"), nil)
		require.ErrorIs(t, err, ErrInvalidDataBits, "data bits %q", bits)
		require.Equal(t, ExitInvalidDataBits, ExitCode(err))
	}
}

func TestTranslate_Parity(t *testing.T) {
	tests := []struct {
		in     string
		parity Parity
		enable bool
		odd    bool
	}{
		{"N", ParityNone, false, false},
		{"O", ParityOdd, true, true},
		{"E", ParityEven, true, false},
		{"Odd", ParityOdd, true, true},
		{"Even", ParityEven, true, false},
		{"None", ParityNone, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg, err := Translate(params("/dev/ttyS0", "9600", "8", tt.in, "1"), nil)
			require.NoError(t, err)
			require.Equal(t, tt.parity, cfg.Parity())

			cflag := cfg.Termios().Cflag
			assert.Equal(t, tt.enable, cflag&unix.PARENB != 0, "PARENB")
			assert.Equal(t, tt.odd, cflag&unix.PARODD != 0, "PARODD")
		})
	}

	for _, in := range []string{"n", "o", "e", "X", "M", "S", "1", ""} {
		_, err := Translate(params("/dev/ttyS0", "9600", "8", in, "1"), nil)
		require.ErrorIs(t, err, ErrInvalidParity, "parity %q", in)
		require.Equal(t, ExitInvalidParity, ExitCode(err))
	}
}

func TestTranslate_StopBits(t *testing.T) {
	cfg, err := Translate(params("/dev/ttyS0", "9600", "8", "N", "1"), nil)
	require.NoError(t, err)
	require.Zero(t, cfg.Termios().Cflag&unix.CSTOPB)

	cfg, err = Translate(params("/dev/ttyS0", "9600", "8", "N", "2"), nil)
	require.NoError(t, err)
	require.NotZero(t, cfg.Termios().Cflag&unix.CSTOPB)

	for _, stop := range []string{"0", "3", "-1", "1.5", "two", ""} {
		_, err := Translate(params("/dev/ttyS0", "9600", "8", "N", stop), nil)
		require.ErrorIs(t, err, ErrInvalidStopBits, "stop bits %q", stop)
		require.Equal(t, ExitInvalidStopBits, ExitCode(err))
	}
}

func TestTranslate_Arity(t *testing.T) {
	// Every value is invalid; the count must be rejected before any is looked at.
	bad := []string{"", "x", "x", "x", "x", "x", "x"}
	for _, n := range []int{0, 1, 4, 6, 7} {
		_, err := Translate(bad[:n], nil)
		require.ErrorIs(t, err, ErrUsage, "%d parameters", n)
		require.Equal(t, ExitUsage, ExitCode(err))
	}
}

func TestTranslate_Termios(t *testing.T) {
	cfg, err := Translate(params("/dev/ttyFAKE", "19200", "7", "E", "2"), nil)
	require.NoError(t, err)

	tio := cfg.Termios()
	require.Equal(t, uint32(unix.CLOCAL|unix.CREAD|unix.B19200|unix.CS7|unix.CSTOPB|unix.PARENB), tio.Cflag)
	require.Zero(t, tio.Iflag)
	require.Zero(t, tio.Oflag)
	require.Zero(t, tio.Lflag)
	require.Equal(t, uint8(1), tio.Cc[unix.VMIN])
	require.Equal(t, uint8(0), tio.Cc[unix.VTIME])

	require.Equal(t, "/dev/ttyFAKE", cfg.Device())
	require.Equal(t, 7, cfg.DataBits())
	require.Equal(t, 2, cfg.StopBits())
	require.Equal(t, "7-E-2", cfg.Frame())
	require.Equal(t, "/dev/ttyFAKE, 19200, 7-E-2", cfg.String())
}

func TestTranslate_LogsAcceptedConfig(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	_, err := Translate(params("/dev/ttyUSB0", "115200", "8", "O", "1"), logger)
	require.NoError(t, err)

	entries := logs.FilterMessage("uart-config").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, "/dev/ttyUSB0", fields["device"])
	require.Equal(t, int64(115200), fields["speed"])
	require.Equal(t, "8-O-1", fields["frame"])
}

func TestTranslate_LogOrdering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	// In range but not a standard rate: logged, then rejected at code mapping.
	_, err := Translate(params("/dev/ttyUSB0", "3000", "8", "N", "1"), logger)
	require.ErrorIs(t, err, ErrInvalidSpeed)
	require.Equal(t, 1, logs.FilterMessage("uart-config").Len())

	// Range failures are rejected before anything is logged.
	_, err = Translate(params("/dev/ttyUSB0", "9600", "8", "Z", "1"), logger)
	require.ErrorIs(t, err, ErrInvalidParity)
	_, err = Translate(params("/dev/ttyUSB0", "300", "8", "N", "1"), logger)
	require.ErrorIs(t, err, ErrInvalidSpeed)
	require.Equal(t, 1, logs.FilterMessage("uart-config").Len())
}
