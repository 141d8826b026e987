// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// nopLogger discards everything; tests assert on Response values, not log
// output.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// buildEnvelope renders payload into a well-formed envelope carrying id, the
// same framing a firmware response and a client request share (§4.1).
func buildEnvelope(payload string, id uint8) []byte {
	pre := "#" + payload + ":" + hex2(id)
	crc := CalculateCRC([]byte(pre))
	return []byte(pre + hex2(crc) + "\r\n")
}

// fakeLink is an in-memory InputStream/OutputStream pair standing in for a
// real firmware: every time a complete request envelope arrives over Write,
// it invokes handler with the decoded id and command, and queues whatever
// envelopes handler returns onto the read side. This plays the same role in
// these tests that a loopback serial port or pseudo-terminal would.
type fakeLink struct {
	mu             sync.Mutex
	parser         *EnvelopeParser
	rx             []byte
	rxPos          int
	handler        func(id uint8, command string) [][]byte
	writeFailAfter int // -1 disables
	written        int
	concurrent     int
	maxConcurrent  int
}

func newFakeLink(handler func(id uint8, command string) [][]byte) *fakeLink {
	return &fakeLink{parser: NewEnvelopeParser(), handler: handler, writeFailAfter: -1}
}

func (f *fakeLink) SetTimeout(time.Duration) {}

func (f *fakeLink) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rxPos < len(f.rx)
}

func (f *fakeLink) Read() (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rxPos >= len(f.rx) {
		return 0, false
	}
	b := f.rx[f.rxPos]
	f.rxPos++
	return b, true
}

func (f *fakeLink) Write(b byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	defer func() { f.concurrent-- }()

	if f.writeFailAfter >= 0 && f.written >= f.writeFailAfter {
		return false
	}
	f.written++

	if f.parser.Process(b) {
		id := f.parser.ID()
		cmd := string(f.parser.Message())
		f.parser.Reset()
		for _, resp := range f.handler(id, cmd) {
			f.rx = append(f.rx, resp...)
		}
	}
	return true
}

func TestClient_HappyPath(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{buildEnvelope(`[0,"ok"]`, id)}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[1,0]")
	if !resp.OK() {
		t.Fatalf("Send returned non-OK response: %v", resp)
	}
	if resp.Message() != "ok" {
		t.Fatalf("Message() = %q, want %q", resp.Message(), "ok")
	}
	if c.Stats.Successes != 1 {
		t.Fatalf("Stats.Successes = %d, want 1", c.Stats.Successes)
	}
}

func TestClient_ApplicationErrorPassthrough(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{buildEnvelope(`[3,"bad argument"]`, id)}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[99]")
	if resp.OK() {
		t.Fatalf("Send returned OK for an application error response")
	}
	if resp.Code() != 3 {
		t.Fatalf("Code() = %d, want 3", resp.Code())
	}
	if resp.Message() != "bad argument" {
		t.Fatalf("Message() = %q, want %q", resp.Message(), "bad argument")
	}
	if c.Stats.ApplicationError != 1 {
		t.Fatalf("Stats.ApplicationError = %d, want 1", c.Stats.ApplicationError)
	}
}

func TestClient_EnvelopeRetryThenSuccess(t *testing.T) {
	attempt := 0
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		attempt++
		if attempt == 1 {
			return [][]byte{buildEnvelope(`[-4]`, id)} // EnvelopeCRCMismatch
		}
		return [][]byte{buildEnvelope(`[0]`, id)}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[1]")
	if !resp.OK() {
		t.Fatalf("Send did not recover after an envelope-layer retry: %v", resp)
	}
	if attempt != 2 {
		t.Fatalf("firmware handler invoked %d times, want 2", attempt)
	}
	if c.Stats.EnvelopeRetries != 1 {
		t.Fatalf("Stats.EnvelopeRetries = %d, want 1", c.Stats.EnvelopeRetries)
	}
}

func TestClient_ExhaustsRetriesAndReturnsLastEnvelopeError(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{buildEnvelope(`[-4]`, id)}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[1]")
	if resp.Code() != EnvelopeCRCMismatch {
		t.Fatalf("Code() = %v, want EnvelopeCRCMismatch after exhausting retries", resp.Code())
	}
	if c.Stats.EnvelopeRetries != maxAttempts {
		t.Fatalf("Stats.EnvelopeRetries = %d, want %d", c.Stats.EnvelopeRetries, maxAttempts)
	}
}

func TestClient_FiltersLogLinesBeforeTheRealResponse(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{
			buildEnvelope(`!boot complete`, id),
			buildEnvelope(`[0,"ok"]`, id),
		}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[1]")
	if !resp.OK() {
		t.Fatalf("Send did not see past a leading log line: %v", resp)
	}
	if c.Stats.LogLinesFiltered != 1 {
		t.Fatalf("Stats.LogLinesFiltered = %d, want 1", c.Stats.LogLinesFiltered)
	}
}

func TestClient_DropsMismatchedIDThenAcceptsCorrectOne(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{
			buildEnvelope(`[0,"stale"]`, id-1), // leftover reply to a previous request
			buildEnvelope(`[0,"fresh"]`, id),
		}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[1]")
	if !resp.OK() || resp.Message() != "fresh" {
		t.Fatalf("Send accepted the wrong response: %v", resp)
	}
	if c.Stats.IDMismatches != 1 {
		t.Fatalf("Stats.IDMismatches = %d, want 1", c.Stats.IDMismatches)
	}
}

func TestClient_ErrorResponseWithMismatchedIDIsAcceptedImmediately(t *testing.T) {
	// An envelope/application error may be emitted before the firmware has
	// finished parsing the request and so may carry a stale id; it should
	// still be accepted rather than dropped.
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{buildEnvelope(`[5,"early failure"]`, id-1)}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("L[1]")
	if resp.Code() != 5 {
		t.Fatalf("Code() = %v, want 5", resp.Code())
	}
	if c.Stats.IDMismatches != 0 {
		t.Fatalf("Stats.IDMismatches = %d, want 0 (error responses bypass id reconciliation)", c.Stats.IDMismatches)
	}
}

func TestClient_TimesOutWhenNothingEverArrives(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte { return nil })
	c := NewClient(link, link, nopLogger{}, "test", WithTimeout(20*time.Millisecond))

	start := time.Now()
	resp := c.Send("L[1]")
	elapsed := time.Since(start)

	if resp.Code() != ConnectionTimeout {
		t.Fatalf("Code() = %v, want ConnectionTimeout", resp.Code())
	}
	if elapsed > time.Second {
		t.Fatalf("Send took %s, far longer than its 20ms timeout", elapsed)
	}
	if c.Stats.Timeouts != 1 {
		t.Fatalf("Stats.Timeouts = %d, want 1", c.Stats.Timeouts)
	}
}

func TestClient_WriteFailureAbandonsTheAttemptWithDefaultResponse(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{buildEnvelope(`[0]`, id)}
	})
	link.writeFailAfter = 0 // fail on the very first byte written

	c := NewClient(link, link, nopLogger{}, "test", WithTimeout(20*time.Millisecond))
	resp := c.Send("L[1]")
	if resp.Code() != ConnectionTimeout {
		t.Fatalf("Code() = %v, want ConnectionTimeout (default response on write failure)", resp.Code())
	}
}

func TestClient_RejectsInvalidCommandWithoutTouchingTheWire(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		t.Fatalf("firmware handler invoked for a client-side-rejected command %q", cmd)
		return nil
	})
	c := NewClient(link, link, nopLogger{}, "test")

	resp := c.Send("")
	if resp.Code() != EmptyRequest {
		t.Fatalf("Code() = %v, want EmptyRequest", resp.Code())
	}
}

func TestClient_SerializesConcurrentSends(t *testing.T) {
	link := newFakeLink(func(id uint8, cmd string) [][]byte {
		return [][]byte{buildEnvelope(`[0]`, id)}
	})
	c := NewClient(link, link, nopLogger{}, "test")

	const n = 20
	var wg sync.WaitGroup
	results := make([]Response, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Send(fmt.Sprintf("L[%d]", i))
		}(i)
	}
	wg.Wait()

	for i, resp := range results {
		if !resp.OK() {
			t.Fatalf("result %d not OK: %v", i, resp)
		}
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	if link.maxConcurrent > 1 {
		t.Fatalf("observed %d concurrent writes; Send must serialize transactions", link.maxConcurrent)
	}
	if c.Stats.Transactions != n {
		t.Fatalf("Stats.Transactions = %d, want %d", c.Stats.Transactions, n)
	}
}
