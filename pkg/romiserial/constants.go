// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import "time"

// Envelope framing bytes.
const (
	startByte   = '#'
	idDelim     = ':'
	terminatorA = '\r'
	terminatorB = '\n'
)

// Size limits.
const (
	// MaxMessageLength is the largest command payload a caller may pass to
	// Send before metacharacter substitution and framing are applied.
	MaxMessageLength = 200

	// maxPayloadLength bounds the parser's internal buffer. It must stay at
	// or above the firmware's own cap so that oversize frames are rejected
	// with kEnvelopeTooLong rather than silently truncated.
	maxPayloadLength = 200
)

// Timing defaults, mirroring the original RomiSerialClient constants.
const (
	// DefaultTimeout bounds a whole Send call.
	DefaultTimeout = 2 * time.Second

	// DefaultByteTimeout is the per-byte poll window set on the input
	// stream. Its expiry never ends a transaction by itself; it only keeps
	// the read loop from blocking indefinitely between bytes.
	DefaultByteTimeout = 100 * time.Millisecond

	// retrySleep is the pause between envelope-layer retry attempts.
	retrySleep = 10 * time.Millisecond

	// maxAttempts bounds how many times a single Send call transmits the
	// same request, the first transmission included; only envelope-layer
	// failures lead to another transmission.
	maxAttempts = 3

	// defaultBaudRate is used by Create when opening a POSIX serial device.
	defaultBaudRate = 115200

	// settlingDelay gives a microcontroller bootloader time to reset and
	// re-enumerate after the port is opened.
	settlingDelay = 3 * time.Second
)

// kStatusCode and kErrorMessage index a response array.
const (
	kStatusCode   = 0
	kErrorMessage = 1
)
