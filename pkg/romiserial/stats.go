// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import (
	"fmt"
	"time"
)

// Stats tracks per-client transaction outcomes: how many Send calls
// succeeded outright, needed an envelope-layer retry, returned an
// application error, timed out, or dropped a mismatched-id response. It has
// no effect on protocol behavior; it exists for diagnostics (the "monitor"
// and "console" example commands surface it).
type Stats struct {
	StartTime time.Time

	Transactions     uint64
	Successes        uint64
	ApplicationError uint64
	EnvelopeRetries  uint64
	Timeouts         uint64
	IDMismatches     uint64
	LogLinesFiltered uint64
}

// NewStats returns a zeroed tracker with StartTime set to now.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// recordAttempt is called once per transmit attempt within a Send call;
// retried reports whether that attempt's response carried an envelope-layer
// error. Such an attempt is counted even when it is the last one allowed and
// no retry follows it.
func (s *Stats) recordAttempt(retried bool) {
	if retried {
		s.EnvelopeRetries++
	}
}

// recordOutcome is called once per Send call with the final response.
func (s *Stats) recordOutcome(resp Response) {
	s.Transactions++
	switch {
	case resp.Code() == NoError:
		s.Successes++
	case resp.Code() == ConnectionTimeout:
		s.Timeouts++
	case resp.Code() > 0:
		s.ApplicationError++
	}
}

func (s *Stats) recordIDMismatch() {
	s.IDMismatches++
}

func (s *Stats) recordLogLine() {
	s.LogLinesFiltered++
}

// String renders a human-readable summary, in the spirit of the teacher's
// packet statistics report.
func (s *Stats) String() string {
	elapsed := time.Since(s.StartTime)
	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(s.Transactions) / elapsed.Seconds()
	}
	return fmt.Sprintf(
		"=== RomiSerial stats (%.0fs) ===\n"+
			"Transactions:     %6d (%.2f/sec)\n"+
			"Successes:        %6d\n"+
			"Application errs: %6d\n"+
			"Timeouts:         %6d\n"+
			"Envelope retries: %6d\n"+
			"ID mismatches:    %6d\n"+
			"Log lines:        %6d\n"+
			"================================\n",
		elapsed.Seconds(), s.Transactions, rate, s.Successes,
		s.ApplicationError, s.Timeouts, s.EnvelopeRetries,
		s.IDMismatches, s.LogLinesFiltered)
}
