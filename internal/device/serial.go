// Package device: SerialDevice implements Device on go.bug.st/serial for
// physical serial ports (the servo board link).
package device

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	serial "go.bug.st/serial"
)

// ErrReadTimeout is returned by ReadLine when no line arrives in time.
var ErrReadTimeout = errors.New("read timeout")

// SerialDevice implements Device using go.bug.st/serial.
type SerialDevice struct {
	port serial.Port
	r    *bufio.Reader
	dev  string
}

// NewSerialDevice opens a serial device with the given path and baudrate.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", dev, err)
	}
	return &SerialDevice{port: p, r: bufio.NewReader(p), dev: dev}, nil
}

// ReadLine reads a single line from the serial port, blocking until newline or
// timeout. The read itself runs in a goroutine so the timeout stays bounded
// even when the port never delivers.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	if s.port == nil {
		return "", fmt.Errorf("serial %s not open", s.dev)
	}

	type readResult struct {
		line string
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := s.r.ReadString('\n')
		ch <- readResult{line, err}
	}()

	if timeout <= 0 {
		res := <-ch
		return res.line, res.err
	}
	select {
	case res := <-ch:
		return res.line, res.err
	case <-time.After(timeout):
		return "", ErrReadTimeout
	}
}

// WriteLine writes a single line followed by '\n' to the serial port.
func (s *SerialDevice) WriteLine(line string) error {
	if s.port == nil {
		return fmt.Errorf("serial %s not open", s.dev)
	}
	_, err := s.port.Write(append([]byte(line), '\n'))
	return err
}

// Close closes the underlying serial port. Safe to call more than once.
func (s *SerialDevice) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
