// Package serial bridges a Linux serial (UART) device to a pair of stdio
// descriptors, attaching a terminal or another program to embedded hardware.
//
// The package is split into two strictly ordered stages:
//   - Translate validates the five bridge parameters (device path, speed,
//     data bits, parity, stop bits) and maps them to termios codes
//   - Open activates the device; a Forwarder then relays raw bytes between
//     the device and stdin/stdout in a single-threaded poll loop
//
// Properties of the forwarding loop:
//   - Raw syscall-based I/O, no buffering delays and no framing
//   - Blocks indefinitely in poll; never busy-polls
//   - Device-to-stdout is serviced before stdin-to-device in each wake-up
//   - Every I/O failure, including end of stream, is fatal and carries an
//     exit status (see ExitCode)
//   - Self-pipe mechanism for stopping from another goroutine
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	cfg, err := serial.Translate([]string{"/dev/ttyUSB0", "9600", "8", "N", "1"}, logger)
//	if err != nil {
//	    os.Exit(serial.ExitCode(err))
//	}
//	port, err := serial.Open(cfg)
//	if err != nil {
//	    os.Exit(serial.ExitCode(err))
//	}
//	fwd, err := serial.NewForwarder(port, os.Stdin, os.Stdout, serial.WithLogger(logger))
//	if err != nil {
//	    port.Close()
//	    os.Exit(serial.ExitCode(err))
//	}
//	err = fwd.Run() // returns only on a fatal error or after fwd.Stop()
//	fwd.Close()
//	os.Exit(serial.ExitCode(err))
package serial
