package config

import "time"

const (
	// DefaultConnectTimeout bounds a single platform connect attempt.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultScanDuration is the time box applied by ScanFor.
	DefaultScanDuration = 4 * time.Second

	// DefaultInterAttemptDelay is the cooldown between sequential
	// auto-connect attempts. Issuing concurrent connect requests to
	// multiple peripherals is the dominant cause of platform radio stack
	// failures, so attempts are serialized with this window.
	DefaultInterAttemptDelay = 1 * time.Second

	// DefaultStartupDelay is the minimum delay after construction before
	// the first auto-connect attempt, to let the platform radio stack
	// finish initializing.
	DefaultStartupDelay = 1 * time.Second
)

// Configuration describes a general configuration.
type Configuration struct {
	// ConnectTimeout holds the deadline for a single connect attempt.
	ConnectTimeout time.Duration

	// ScanDuration holds the time box for ScanFor.
	ScanDuration time.Duration

	// InterAttemptDelay holds the cooldown between auto-connect attempts.
	InterAttemptDelay time.Duration

	// StartupDelay holds the minimum delay before the first auto-connect
	// attempt after construction.
	StartupDelay time.Duration

	// SocketPath holds the path to the helper process socket.
	// Specific to the shim radio on Windows, MacOS and FreeBSD.
	SocketPath string

	// ShimPath holds the path to the helper process executable.
	// Specific to the shim radio on Windows, MacOS and FreeBSD.
	ShimPath string
}

// New returns a new configuration with default timings.
func New() Configuration {
	return Configuration{
		ConnectTimeout:    DefaultConnectTimeout,
		ScanDuration:      DefaultScanDuration,
		InterAttemptDelay: DefaultInterAttemptDelay,
		StartupDelay:      DefaultStartupDelay,
	}
}
