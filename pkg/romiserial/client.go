// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import (
	"math/rand"
	"sync"
	"time"
)

// Client drives one RomiSerial request/response exchange at a time over a
// pair of byte streams. It is safe for concurrent use: Send serializes
// concurrent callers behind a mutex so at most one transaction is ever in
// flight (§3, §5).
type Client struct {
	in          InputStream
	out         OutputStream
	log         Logger
	clock       Clock
	name        string
	mu          sync.Mutex
	parser      *EnvelopeParser
	req         *requestBuilder
	debug       bool
	timeout     time.Duration
	byteTimeout time.Duration
	defaultResp Response
	Stats       *Stats
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides the default 2s total transaction timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithByteTimeout overrides the default 100ms per-byte poll window.
func WithByteTimeout(d time.Duration) Option {
	return func(c *Client) { c.byteTimeout = d }
}

// WithStartID sets the starting value of the request-id counter instead of
// choosing one pseudo-randomly; the first outbound request carries
// id+1 (mod 256). Exposed so construction never has to be a source of
// hidden global-clock coupling (§9).
func WithStartID(id uint8) Option {
	return func(c *Client) { c.req = newRequestBuilder(id) }
}

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// NewClient constructs a Client over an already-open stream pair. name
// identifies this client in log messages (useful when a process owns
// several links). The byte-timeout is applied to in immediately.
func NewClient(in InputStream, out OutputStream, logger Logger, name string, opts ...Option) *Client {
	if logger == nil {
		logger = NewConsoleLogger(nil)
	}
	c := &Client{
		in:          in,
		out:         out,
		log:         logger,
		clock:       systemClock{},
		name:        name,
		parser:      NewEnvelopeParser(),
		req:         newRequestBuilder(anyID()),
		timeout:     DefaultTimeout,
		byteTimeout: DefaultByteTimeout,
		Stats:       NewStats(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.defaultResp = errorResponse(ConnectionTimeout)
	c.in.SetTimeout(c.byteTimeout)
	return c
}

// anyID picks a pseudo-random starting id, matching the original client's
// any_id(): a convenience, not a source of protocol coupling (§9) — callers
// who need a specific start id should use WithStartID.
func anyID() uint8 {
	return uint8(rand.New(rand.NewSource(time.Now().UnixNano())).Intn(256))
}

// ID returns the most recently assigned request id.
func (c *Client) ID() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req.id
}

// SetDebug toggles verbose debug logging of every request and response.
func (c *Client) SetDebug(value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = value
}

// StatsSnapshot returns a copy of the client's running statistics, safe to
// read from a goroutine other than the one driving Send (e.g. a UI render
// loop): Stats' counters are otherwise only safe to read under the mutex
// Send holds while it updates them.
func (c *Client) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.Stats
}

// Send drives one request/response transaction for command. It never
// returns a Go error for a protocol-level failure: failures come back as a
// Response whose Code() is non-zero (§4.4). Send holds the client's mutex
// for the whole transaction, so concurrent callers run one after another.
func (c *Client) Send(command string) Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	envelope, id, buildErr := c.req.build(command)
	if buildErr != NoError {
		return errorResponse(buildErr)
	}

	if c.debug {
		c.log.Debug("Client<%s>: send: %s", c.name, command)
	}

	resp := c.defaultResp
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !c.transmit(envelope) {
			break
		}

		resp = c.readResponse(id)

		retry := isEnvelopeError(resp.Code())
		c.Stats.recordAttempt(retry)
		if !retry {
			break
		}

		if c.debug {
			c.log.Debug("Client<%s>: re-sending request: %s", c.name, command)
		}
		c.clock.Sleep(retrySleep)
	}

	c.Stats.recordOutcome(resp)
	return resp
}

// transmit writes envelope byte-by-byte. A write failure mid-frame abandons
// the attempt without flushing (§4.4, §9 open question ii); Send then stops
// its attempt loop and returns the default timeout response without
// retransmitting.
func (c *Client) transmit(envelope []byte) bool {
	for _, b := range envelope {
		if !c.out.Write(b) {
			return false
		}
	}
	return true
}

// readResponse implements the bounded-time read loop of §4.4.
func (c *Client) readResponse(requestID uint8) Response {
	start := c.clock.Now()

	for {
		if c.in.Available() {
			if b, ok := c.in.Read(); ok {
				if complete := c.parser.Process(b); complete {
					if resp, done := c.handleEnvelope(requestID); done {
						return resp
					}
				} else if err := c.parser.Error(); err != NoError {
					c.log.Warn("Client<%s>: invalid response: %s", c.name, c.parser.Message())
					return errorResponse(err)
				}
			}
		}

		if c.timeout > 0 && c.clock.Now().Sub(start) > c.timeout {
			return errorResponse(ConnectionTimeout)
		}
	}
}

// handleEnvelope processes one just-completed envelope: filtering log
// lines, parsing and validating the response payload, and reconciling the
// envelope id against the in-flight request. It returns (response, true)
// when the transaction should complete, or (_, false) to keep reading.
func (c *Client) handleEnvelope(requestID uint8) (Response, bool) {
	message := c.parser.Message()

	if isLogLine(message) {
		if len(message) > 2 {
			c.log.Debug("Client<%s>: firmware says: %s", c.name, message[1:])
		}
		c.Stats.recordLogLine()
		return nil, false
	}

	if c.debug {
		c.log.Debug("Client<%s>: read_response: %s", c.name, message)
	}

	resp := parseResponsePayload(c.parser.MessageContent())
	envelopeID := c.parser.ID()

	switch {
	case envelopeID == requestID:
		return resp, true
	case resp.Code() != NoError:
		// Envelope/application errors may be emitted by the firmware
		// before it finishes parsing the request, and therefore may
		// carry a stale or missing echoed id (§4.4).
		return resp, true
	default:
		c.log.Warn("Client<%s>: ID mismatch: request(%d) != response(%d): %s",
			c.name, requestID, envelopeID, message)
		c.Stats.recordIDMismatch()
		c.parser.Reset()
		return nil, false
	}
}

// isLogLine reports whether a completed envelope's payload is a firmware
// log line (§3): any payload beginning with '!'.
func isLogLine(payload []byte) bool {
	return len(payload) > 0 && payload[0] == '!'
}
