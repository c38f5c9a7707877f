package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the stable classification of a call's result. Every workflow
// branches on Kind and never on raw transport errors or status codes.
type Kind int

const (
	KindSuccess Kind = iota
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindClientError
	KindServerError
	KindTimeout
	KindNetworkFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	case KindNetworkFailure:
		return "network_failure"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a single gateway call.
type Outcome struct {
	Kind   Kind
	Status int    // HTTP status, 0 when the call never completed
	Body   []byte // Raw response body on completed calls
	Detail string // Server-supplied human-readable detail, if any
	Err    error  // Underlying transport error for Timeout/NetworkFailure
}

// Success reports whether the call completed with a 2xx status.
func (o Outcome) Success() bool { return o.Kind == KindSuccess }

// Decode unmarshals the response body into v.
func (o Outcome) Decode(v any) error {
	if len(o.Body) == 0 {
		return fmt.Errorf("gateway: empty response body")
	}
	if err := json.Unmarshal(o.Body, v); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// classify maps a completed HTTP response onto the outcome taxonomy.
func classify(status int, body []byte) Outcome {
	out := Outcome{Status: status, Body: body}

	var eb errorBody
	if status >= 400 && len(body) > 0 {
		if err := json.Unmarshal(body, &eb); err == nil {
			out.Detail = eb.Detail
		}
	}

	switch {
	case status >= 200 && status < 300:
		out.Kind = KindSuccess
	case status == http.StatusUnauthorized:
		out.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		out.Kind = KindForbidden
	case status == http.StatusTooManyRequests:
		out.Kind = KindRateLimited
	case status >= 400 && status < 500:
		if out.Detail != "" {
			out.Kind = KindClientError
		} else {
			// A 4xx with no server explanation is indistinguishable
			// from a backend fault to the caller.
			out.Kind = KindServerError
		}
	default:
		out.Kind = KindServerError
	}
	return out
}

// classifyErr maps a transport-level failure onto the outcome taxonomy.
func classifyErr(err error) Outcome {
	out := Outcome{Err: err}

	if errors.Is(err, context.DeadlineExceeded) {
		out.Kind = KindTimeout
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.Kind = KindTimeout
		return out
	}

	out.Kind = KindNetworkFailure
	return out
}
