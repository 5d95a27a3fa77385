// internal/console/source.go
package console

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"
)

// Source yields console command bytes without blocking.
type Source interface {
	// Poll returns the next byte if one is available.
	Poll() (byte, bool)
}

// ReaderSource turns a blocking io.Reader into a Source.
// A goroutine reads into a small buffered channel; it exits on the
// first read error (io.EOF included).
type ReaderSource struct {
	ch chan byte
}

// NewReaderSource starts reading r.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{ch: make(chan byte, 64)}
	go s.pump(r)
	return s
}

func (s *ReaderSource) pump(r io.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			s.ch <- c
		}
		if err != nil {
			if err != io.EOF {
				slog.Debug("console: read stopped", "err", err)
			}
			return
		}
	}
}

func (s *ReaderSource) Poll() (byte, bool) {
	select {
	case c := <-s.ch:
		return c, true
	default:
		return 0, false
	}
}

// Serial is a console on a serial device: commands in, reports out.
type Serial struct {
	*ReaderSource
	port serial.Port
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int) (*Serial, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", name, err)
	}
	slog.Info("console: serial port opened", "device", name, "baud", baud)
	return &Serial{
		ReaderSource: NewReaderSource(p),
		port:         p,
	}, nil
}

// Write sends console output to the serial device.
func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close closes the serial device; the reader goroutine exits with it.
func (s *Serial) Close() error {
	return s.port.Close()
}
