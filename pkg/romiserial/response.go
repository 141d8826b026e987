// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package romiserial

import (
	"bytes"
	"encoding/json"
)

// Response is the value returned by Send: a non-empty array whose first
// element is always a number. code 0 means success; code > 0 is a
// firmware-defined application error; code < 0 is a client-synthesized
// error (§3).
type Response []interface{}

// Code returns the status code carried in element 0.
func (r Response) Code() Code {
	if len(r) == 0 {
		return InvalidResponse
	}
	return codeFromValue(r[0])
}

// OK reports whether the response represents success.
func (r Response) OK() bool {
	return r.Code() == NoError
}

// Message returns the human-readable message of an error response (element
// 1), or "" if there is none.
func (r Response) Message() string {
	if len(r) < 2 {
		return ""
	}
	s, _ := r[1].(string)
	return s
}

func codeFromValue(v interface{}) Code {
	switch n := v.(type) {
	case float64:
		return Code(int(n))
	case json.Number:
		f, _ := n.Float64()
		return Code(int(f))
	case int:
		return Code(n)
	default:
		return InvalidResponse
	}
}

// errorResponse builds a client-synthesized [code, message] response.
func errorResponse(code Code) Response {
	return Response{int(code), GetErrorMessage(code)}
}

// parseResponsePayload parses the bracketed-array payload of a completed
// envelope and validates its shape per §4.4: it must unmarshal to a
// non-empty array whose first element is a number. A malformed payload is
// reported as an error rather than propagated, matching the firmware-facing
// contract that Send never raises for protocol-level failures.
func parseResponsePayload(payload []byte) Response {
	if len(payload) == 0 {
		return errorResponse(EmptyResponse)
	}

	var values []interface{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return errorResponse(InvalidJSON)
	}
	if len(values) == 0 {
		return errorResponse(InvalidResponse)
	}
	if _, isNumber := values[0].(json.Number); !isNumber {
		return errorResponse(InvalidResponse)
	}

	resp := Response(values)
	if resp.Code() != NoError {
		resp = validateErrorShape(resp)
	}
	return resp
}

// validateErrorShape enforces the error-response contract of §3/§4.4: an
// error response must be an array of length 1 or 2, with a string second
// element when present. Length-1 responses get a default message filled in;
// any other shape is replaced with a client-synthesized InvalidErrorResponse.
func validateErrorShape(resp Response) Response {
	code := resp.Code()
	switch len(resp) {
	case 1:
		return Response{int(code), GetErrorMessage(code)}
	case 2:
		if _, ok := resp[1].(string); ok {
			return resp
		}
		return errorResponse(InvalidErrorResponse)
	default:
		return errorResponse(InvalidErrorResponse)
	}
}
