// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import "testing"

// feed drives p with every byte of s in order, reporting whether any call to
// Process returned true and the last non-zero error latched along the way
// (Error() itself only reflects the most recent step).
func feed(p *EnvelopeParser, s []byte) (completed bool, last Code) {
	for _, b := range s {
		if p.Process(b) {
			completed = true
		}
		if err := p.Error(); err != NoError {
			last = err
		}
	}
	return completed, last
}

func TestEnvelopeParser_RoundTrip(t *testing.T) {
	b := newRequestBuilder(0)
	envelope, id, code := b.build(`L[1,2]`)
	if code != NoError {
		t.Fatalf("build failed: %v", code)
	}

	p := NewEnvelopeParser()
	completed, _ := feed(p, envelope)
	if !completed {
		t.Fatalf("parser did not recognize a well-formed envelope: % x", envelope)
	}
	if p.ID() != id {
		t.Fatalf("ID() = %d, want %d", p.ID(), id)
	}
	if string(p.Message()) != `L[1,2]` {
		t.Fatalf("Message() = %q, want %q", p.Message(), `L[1,2]`)
	}
}

func TestEnvelopeParser_StringLiteralColonNotTreatedAsDelimiter(t *testing.T) {
	// Built by hand rather than through the request builder, which would
	// substitute the quoted colon before it reached the parser.
	envelope := buildEnvelope(`N["a:b"]`, 1)

	p := NewEnvelopeParser()
	completed, errCode := feed(p, envelope)
	if !completed {
		t.Fatalf("parser rejected envelope with quoted colon, last error %v: % x", errCode, envelope)
	}
	if string(p.Message()) != `N["a:b"]` {
		t.Fatalf("Message() = %q, want %q", p.Message(), `N["a:b"]`)
	}
}

func TestEnvelopeParser_RejectsCRCMismatch(t *testing.T) {
	b := newRequestBuilder(0)
	envelope, _, _ := b.build(`L[1]`)
	// Flip a payload bit without recomputing the trailing CRC digits.
	envelope[1] ^= 0x20

	p := NewEnvelopeParser()
	completed, last := feed(p, envelope)
	if completed {
		t.Fatalf("parser accepted a tampered envelope")
	}
	if last != EnvelopeCRCMismatch {
		t.Fatalf("last error = %v, want EnvelopeCRCMismatch", last)
	}
}

func TestEnvelopeParser_RejectsMissingMetadata(t *testing.T) {
	p := NewEnvelopeParser()
	completed, last := feed(p, []byte("#L[1]\r\n"))
	if completed {
		t.Fatalf("parser accepted an envelope with no id/CRC metadata")
	}
	if last != EnvelopeMissingMetadata {
		t.Fatalf("last error = %v, want EnvelopeMissingMetadata", last)
	}
}

func TestEnvelopeParser_RejectsBadHexID(t *testing.T) {
	p := NewEnvelopeParser()
	completed, last := feed(p, []byte("#L[1]:zz00\r\n"))
	if completed {
		t.Fatalf("parser accepted an envelope with non-hex id")
	}
	if last != EnvelopeInvalidID {
		t.Fatalf("last error = %v, want EnvelopeInvalidID", last)
	}
}

func TestEnvelopeParser_RejectsMissingTerminator(t *testing.T) {
	b := newRequestBuilder(0)
	envelope, _, _ := b.build(`L[1]`)
	truncated := envelope[:len(envelope)-2] // drop \r\n
	truncated = append(truncated, 'x', '\n')

	p := NewEnvelopeParser()
	completed, last := feed(p, truncated)
	if completed {
		t.Fatalf("parser accepted an envelope with a corrupt terminator")
	}
	if last != EnvelopeExpectedEnd {
		t.Fatalf("last error = %v, want EnvelopeExpectedEnd", last)
	}
}

func TestEnvelopeParser_OverlongPayloadRejected(t *testing.T) {
	p := NewEnvelopeParser()
	p.Process('#')
	for i := 0; i < maxPayloadLength+1; i++ {
		p.Process('x')
	}
	if p.Error() != EnvelopeTooLong {
		t.Fatalf("Error() = %v, want EnvelopeTooLong", p.Error())
	}
}

func TestEnvelopeParser_ResynchronizesOnHashMidPayload(t *testing.T) {
	b := newRequestBuilder(0)
	garbage := []byte("#L[broken")
	envelope, id, _ := b.build(`L[1]`)

	p := NewEnvelopeParser()
	feed(p, garbage)
	completed, _ := feed(p, envelope)
	if !completed {
		t.Fatalf("parser failed to resynchronize after a truncated leading envelope")
	}
	if p.ID() != id {
		t.Fatalf("ID() = %d, want %d", p.ID(), id)
	}
}

func TestEnvelopeParser_IgnoresNoiseWhileIdle(t *testing.T) {
	p := NewEnvelopeParser()
	completed, _ := feed(p, []byte("garbage\x00\xff\n\r"))
	if completed {
		t.Fatalf("parser reported completion on pure noise")
	}
	if p.Error() != NoError {
		t.Fatalf("Error() = %v, want NoError for inter-envelope noise", p.Error())
	}
}
