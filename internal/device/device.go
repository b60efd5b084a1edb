// Package device defines a unified interface for line-oriented hardware links,
// such as the serial connection to the servo driver board. It abstracts reading
// and writing newline-delimited data with optional timeouts.
package device

import "time"

// Device is an abstract line-oriented communication device.
type Device interface {
	// ReadLine reads a single line terminated by '\n'.
	// If timeout > 0, it must return after timeout even if no data is available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by '\n' to the device.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	Close() error
}
