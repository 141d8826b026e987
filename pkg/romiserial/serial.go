// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// serialStream adapts a go.bug.st/serial port to the byte-granular
// InputStream/OutputStream pair the transaction engine expects, the same
// role cmd/connection.go's SerialConnection plays in the teacher, narrowed
// to single-byte reads and writes.
type serialStream struct {
	port    serial.Port
	timeout time.Duration

	pending bool
	one     [1]byte
	oneOut  [1]byte
}

// OpenSerial opens device at baud using 8N1, no parity, no hardware or
// software flow control — the configuration §6 mandates. go.bug.st/serial
// does not expose raw termios flags (CLOCAL, HUPCL, VMIN/VTIME) directly, so
// reset is approximated via the library's DTR control line: when false, DTR
// is driven low after opening; when true, DTR is left as the driver set it.
func OpenSerial(device string, baud int, reset bool) (*serialStream, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	if err := port.SetRTS(false); err != nil {
		// Not all platforms/drivers support RTS/DTR control; this is a
		// best-effort convenience, never fatal.
		_ = err
	}
	if !reset {
		_ = port.SetDTR(false)
	}

	s := &serialStream{port: port, timeout: DefaultByteTimeout}
	s.SetTimeout(s.timeout)
	return s, nil
}

func (s *serialStream) SetTimeout(d time.Duration) {
	s.timeout = d
	_ = s.port.SetReadTimeout(d)
}

func (s *serialStream) Available() bool {
	// go.bug.st/serial has no poll-without-reading primitive; Read itself
	// honors the configured ReadTimeout, so Available's contract ("ready
	// within the poll window") is satisfied by attempting a zero-copy
	// single-byte read here and caching it for the next Read call.
	if s.pending {
		return true
	}
	n, err := s.port.Read(s.one[:])
	if err != nil || n == 0 {
		return false
	}
	s.pending = true
	return true
}

func (s *serialStream) Read() (byte, bool) {
	if s.pending {
		s.pending = false
		return s.one[0], true
	}
	n, err := s.port.Read(s.one[:])
	if err != nil || n == 0 {
		return 0, false
	}
	return s.one[0], true
}

func (s *serialStream) Write(b byte) bool {
	s.oneOut[0] = b
	n, err := s.port.Write(s.oneOut[:])
	return err == nil && n == 1
}

// Close releases the underlying port.
func (s *serialStream) Close() error {
	return s.port.Close()
}

// Create opens device at the default baud rate (115200 8N1) and returns a
// ready-to-use Client, waiting out the settling delay microcontroller
// bootloaders need after a USB-CDC port is opened (§6).
func Create(device, clientName string, logger Logger) (*Client, io.Closer, error) {
	stream, err := OpenSerial(device, defaultBaudRate, false)
	if err != nil {
		return nil, nil, err
	}

	time.Sleep(settlingDelay)

	client := NewClient(stream, stream, logger, clientName)
	return client, stream, nil
}
