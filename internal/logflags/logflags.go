package logflags

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	console  = false
	wire     = false
	debugger = false
	bridge   = false

	logOut io.Writer = os.Stderr
	format logrus.Formatter
)

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New()
	logger.Out = logOut
	if format != nil {
		logger.Formatter = format
	}
	logger.Level = logrus.DebugLevel
	if !flag {
		// warnings still surface so a silent debugger failure is visible
		logger.Level = logrus.WarnLevel
	}
	return logger.WithFields(fields)
}

// Console returns true if session startup and shutdown should be logged.
func Console() bool {
	return console
}

// ConsoleLogger returns a logger for debugger process management.
func ConsoleLogger() *logrus.Entry {
	return makeLogger(console, logrus.Fields{"layer": "console"})
}

// Wire returns true if every command and reply should be logged.
func Wire() bool {
	return wire
}

// WireLogger returns a logger for the text exchanged with the debugger.
func WireLogger() *logrus.Entry {
	return makeLogger(wire, logrus.Fields{"layer": "wire"})
}

func Debugger() bool {
	return debugger
}

// DebuggerLogger returns a logger for the memory facade.
func DebuggerLogger() *logrus.Entry {
	return makeLogger(debugger, logrus.Fields{"layer": "debugger"})
}

func Bridge() bool {
	return bridge
}

func BridgeLogger() *logrus.Entry {
	return makeLogger(bridge, logrus.Fields{"layer": "bridge"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the layer flags based on the contents of logstr and directs
// all loggers to dest. A nil dest keeps standard error.
func Setup(logFlag bool, logstr string, dest io.Writer) error {
	if dest != nil {
		logOut = dest
	}
	if !logFlag {
		console, wire, debugger, bridge = false, false, false, false
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debugger"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(logcmd) {
		case "console":
			console = true
		case "wire":
			wire = true
		case "debugger":
			debugger = true
		case "bridge":
			bridge = true
		default:
			return errors.New("unknown log layer: " + logcmd)
		}
	}
	return nil
}

// SetFormatter replaces the formatter of loggers created afterwards.
func SetFormatter(f logrus.Formatter) {
	format = f
}
