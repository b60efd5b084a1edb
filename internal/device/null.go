package device

import "time"

// Null is a Device connected to nothing. Writes succeed and vanish, reads time
// out. It stands in for the servo board when no serial path is configured, so
// the rest of the stack can run on a bench machine.
type Null struct{}

// NewNull returns a no-op device.
func NewNull() *Null { return &Null{} }

// ReadLine never yields data; it waits out the timeout and reports ErrReadTimeout.
func (n *Null) ReadLine(timeout time.Duration) (string, error) {
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return "", ErrReadTimeout
}

// WriteLine discards the line.
func (n *Null) WriteLine(string) error { return nil }

// Close is a no-op.
func (n *Null) Close() error { return nil }
