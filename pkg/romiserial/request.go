// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import "strings"

// isValidOpcode reports whether b names a firmware opcode: any ASCII letter
// or digit, plus '?' (the canonical info/probe opcode). The firmware itself
// rejects unknown letters/digits at dispatch time; the client only needs to
// reject the obviously-wrong cases (punctuation other than '?', control
// characters) before spending a transaction on them.
func isValidOpcode(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '?'
}

// substituteMetachars replaces every ':' in cmd with '-', the one-way
// substitution applied to outgoing payloads so a caller's argument can never
// be mistaken for the id delimiter (§3).
func substituteMetachars(cmd string) string {
	return strings.ReplaceAll(cmd, ":", "-")
}

// requestBuilder assembles outgoing envelopes and owns the per-client id
// counter (§4.3). It holds no I/O state; Client embeds one.
type requestBuilder struct {
	id uint8
}

// newRequestBuilder returns a builder whose id counter starts at startID.
// The counter is incremented before use, so the first issued id is
// startID+1 (mod 256).
func newRequestBuilder(startID uint8) *requestBuilder {
	return &requestBuilder{id: startID}
}

// build produces the wire envelope for cmd, or a non-zero Code on a client-
// side validation failure (§4.3 steps 1-3). On success it returns the bytes
// to transmit and the id that was assigned to this request.
func (b *requestBuilder) build(cmd string) ([]byte, uint8, Code) {
	if len(cmd) == 0 {
		return nil, 0, EmptyRequest
	}
	if len(cmd) > MaxMessageLength {
		return nil, 0, ClientTooLong
	}
	if !isValidOpcode(cmd[0]) {
		return nil, 0, InvalidOpcode
	}

	b.id++
	id := b.id

	var pre strings.Builder
	pre.WriteByte(startByte)
	pre.WriteString(substituteMetachars(cmd))
	pre.WriteByte(idDelim)
	pre.WriteString(hex2(id))

	crc := CalculateCRC([]byte(pre.String()))

	var out strings.Builder
	out.WriteString(pre.String())
	out.WriteString(hex2(crc))
	out.WriteByte(terminatorA)
	out.WriteByte(terminatorB)

	return []byte(out.String()), id, NoError
}
