// Package certd implements a shared certificate directory, a local
// file-system-backed store for opaque certificate material keyed by
// fingerprint or by a reserved special name.
//
// The store abstractions live in the certstore package and the filesystem
// implementation in certstore/certdir. This root package only holds the
// resources shared by every component of the module.
package certd

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "CERTD_LOG_LEVEL"

const defaultLevel = zerolog.WarnLevel

func init() {
	switch os.Getenv(EnvLogLevel) {
	case "error":
		Logger = Logger.Level(zerolog.ErrorLevel)
	case "warn":
		Logger = Logger.Level(zerolog.WarnLevel)
	case "info":
		Logger = Logger.Level(zerolog.InfoLevel)
	case "debug":
		Logger = Logger.Level(zerolog.DebugLevel)
	case "trace":
		Logger = Logger.Level(zerolog.TraceLevel)
	case "":
		Logger = Logger.Level(defaultLevel)
	default:
		Logger = Logger.Level(zerolog.TraceLevel)
	}
}

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default it only prints
// warning level messages, which can be changed through the environment
// variable or by the consumer of the module.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger()

// PromCollectors exposes the prometheus collectors created in the module. A
// consumer is free to register them to serve metrics about the stores it
// opened.
var PromCollectors []prometheus.Collector

// Version contains the current or build version. This variable can be changed
// at build time with:
//
//	go build -ldflags="-X 'go.dedis.ch/certd.Version=v1.0.0'"
//
// Version should be fetched from git: `git describe --tags`
var Version = "unreleased"

// BuildTime indicates the time at which the binary has been built. Must be set
// as with Version.
var BuildTime = "unknown"
