// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package romiserial implements the host side of the RomiSerial protocol: a
// framed, acknowledged, line-oriented request/response protocol used to
// command and query a microcontroller firmware over a serial link (typically
// USB-CDC at 115200 8N1).
//
// A request is a text line of the form:
//
//	#<payload>:<id_hi><id_lo><crc_hi><crc_lo>\r\n
//
// where payload is the caller's command with every ':' replaced by '-', the
// id bytes are a lowercase hex encoding of an 8-bit per-client counter, and
// the crc bytes are a lowercase hex CRC-8 over every byte from '#' through
// the two id digits, inclusive. Responses share the same
// envelope shape; their payload is a JSON-like bracketed array whose first
// element is a numeric status code (0 for success, positive for an
// application error, negative for a client-synthesized error).
//
// Client drives one request/response transaction at a time: it serializes
// concurrent callers behind a mutex, transmits a request at most three times
// when envelope-layer corruption is reported, filters firmware log lines
// (payload starting with '!') out of the response stream, and bounds every
// call to a total timeout.
package romiserial
