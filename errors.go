package serial

import (
	"errors"
	"fmt"
)

// Exit statuses reported by the bridge, one per fatal error category.
const (
	ExitOK              = 0
	ExitInvalidSpeed    = 1
	ExitInvalidDataBits = 2
	ExitInvalidParity   = 3
	ExitInvalidStopBits = 4
	ExitDeviceOpen      = 5
	ExitUsage           = 6
	ExitStdinRead       = 7
	ExitDeviceRead      = 8
	ExitDeviceWrite     = 9
	ExitStdoutWrite     = 10
	ExitDeviceConfigure = 11
	ExitPoll            = 12
	ExitLogSetup        = 13
	ExitListPorts       = 14
	ExitUnclassified    = 15
)

var (
	ErrUsage           = &ExitError{Code: ExitUsage, msg: "usage: <device> <speed> <data-bits> <parity> <stop-bits>"}
	ErrInvalidSpeed    = &ExitError{Code: ExitInvalidSpeed, msg: "invalid speed"}
	ErrInvalidDataBits = &ExitError{Code: ExitInvalidDataBits, msg: "invalid data bits"}
	ErrInvalidParity   = &ExitError{Code: ExitInvalidParity, msg: "invalid parity"}
	ErrInvalidStopBits = &ExitError{Code: ExitInvalidStopBits, msg: "invalid stop bits"}
	ErrDeviceOpen      = &ExitError{Code: ExitDeviceOpen, msg: "device open failed"}
	ErrDeviceConfigure = &ExitError{Code: ExitDeviceConfigure, msg: "device configure failed"}
	ErrDeviceRead      = &ExitError{Code: ExitDeviceRead, msg: "device read failed"}
	ErrDeviceWrite     = &ExitError{Code: ExitDeviceWrite, msg: "device write failed"}
	ErrStdinRead       = &ExitError{Code: ExitStdinRead, msg: "stdin read failed"}
	ErrStdoutWrite     = &ExitError{Code: ExitStdoutWrite, msg: "stdout write failed"}
	ErrPoll            = &ExitError{Code: ExitPoll, msg: "poll failed"}
	ErrLogSetup        = &ExitError{Code: ExitLogSetup, msg: "log setup failed"}
	ErrListPorts       = &ExitError{Code: ExitListPorts, msg: "port listing failed"}

	// ErrStopped is returned by Forwarder.Run after Stop was called.
	ErrStopped = errors.New("forwarder stopped")
)

// ExitError is a fatal bridge error carrying the process exit status.
// The package-level Err* values are the sentinels; wrap them with fmt.Errorf
// and %w to add the underlying cause.
type ExitError struct {
	Code int
	msg  string
}

// Error returns the category message and its exit status.
func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (exit %d)", e.msg, e.Code)
}

// ExitCode maps err to the process exit status. nil and ErrStopped map to
// ExitOK; errors outside the taxonomy map to ExitUnclassified.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrStopped) {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitUnclassified
}
