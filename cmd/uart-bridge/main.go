//go:build linux
// +build linux

// Command uart-bridge relays bytes between stdin/stdout and a serial device.
//
//	uart-bridge <device-path> <speed> <data-bits> <parity> <stop-bits>
//
// The exit status identifies the fatal error that stopped the bridge; see
// the Exit* constants of the serial package.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-uart-bridge"
)

var version = "dev"

// Log settings used when the command line could not be parsed.
const (
	defaultLogFile  = "log.txt"
	defaultLogLevel = "info"
)

type options struct {
	Params []string `arg:"" optional:"" passthrough:"" name:"param" help:"<device-path> <speed> <data-bits> <parity> <stop-bits>, e.g. /dev/ttyUSB0 9600 8 N 1"`

	LogFile    string           `default:"log.txt" help:"file the session log is appended to"`
	LogLevel   string           `default:"info" help:"minimum log level: debug, info, warn or error"`
	LogStderr  bool             `help:"also write log lines to stderr"`
	BufferSize int              `default:"8192" help:"forwarding buffer size in bytes"`
	List       bool             `short:"l" help:"list serial ports and exit"`
	Version    kong.VersionFlag `short:"v" help:"show program version"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the single place where bridge errors turn into an exit status.
func run(args []string, stdin, stdout *os.File, stderr io.Writer) int {
	var (
		opts   options
		exited = -1
	)
	parser, err := kong.New(&opts,
		kong.Name("uart-bridge"),
		kong.Description("Bridge stdin/stdout to a serial device."),
		kong.Writers(stderr, stderr),
		kong.Vars{"version": version},
		kong.Exit(func(code int) {
			if exited < 0 {
				exited = code
			}
		}),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return serial.ExitUsage
	}
	_, parseErr := parser.Parse(args)
	if exited >= 0 {
		return exited
	}
	if parseErr != nil {
		// Flags may be unset; fall back so the failure still reaches the log.
		parseErr = fmt.Errorf("%w: %v", serial.ErrUsage, parseErr)
		if opts.LogFile == "" {
			opts.LogFile = defaultLogFile
		}
		if opts.LogLevel == "" {
			opts.LogLevel = defaultLogLevel
		}
	} else if opts.List {
		return listPorts(stdout, stderr)
	}

	logger, sink, err := newLogger(opts.LogFile, opts.LogLevel, stderr, opts.LogStderr)
	if err != nil {
		fmt.Fprintf(stderr, "uart-bridge: %v: %v\n", serial.ErrLogSetup, err)
		return serial.ExitLogSetup
	}
	defer sink.Close()
	defer logger.Sync()

	err = parseErr
	if err == nil {
		err = bridge(opts, logger, stdin, stdout)
	}
	code := serial.ExitCode(err)
	if code != serial.ExitOK {
		logger.Error(fmt.Sprintf("exit(%d)", code), zap.Error(err))
		fmt.Fprintf(stderr, "uart-bridge: %v\n", err)
	} else {
		logger.Info("exit(0)")
	}
	return code
}

func bridge(opts options, logger *zap.Logger, stdin, stdout *os.File) error {
	cfg, err := serial.Translate(opts.Params, logger)
	if err != nil {
		return err
	}

	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}

	fwd, err := serial.NewForwarder(port, stdin, stdout,
		serial.WithBufferSize(opts.BufferSize),
		serial.WithLogger(logger),
	)
	if err != nil {
		return multierr.Append(err, port.Close())
	}
	defer func() {
		if cerr := fwd.Close(); cerr != nil {
			logger.Warn("release device", zap.Error(cerr))
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigs:
			logger.Info("signal received, stopping", zap.Stringer("signal", sig))
			fwd.Stop()
		case <-done:
		}
	}()

	err = fwd.Run()
	stats := fwd.Stats()
	logger.Info("forwarder finished",
		zap.Uint64("device_to_stdout", stats.DeviceToStdout),
		zap.Uint64("stdin_to_device", stats.StdinToDevice),
	)
	return err
}

func listPorts(stdout, stderr io.Writer) int {
	ports, err := serial.ListPorts()
	if err != nil {
		fmt.Fprintf(stderr, "uart-bridge: %v\n", err)
		return serial.ExitCode(err)
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	return serial.ExitOK
}
