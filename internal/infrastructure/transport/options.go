package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type requestOptions struct {
	query          url.Values
	headers        http.Header
	idempotencyKey string
	raw            *[]byte
}

// RequestOption customizes a single request
type RequestOption func(*requestOptions)

func buildOptions(opts []RequestOption) requestOptions {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithQuery attaches query parameters; empty values are dropped so the
// backend never sees ?status=&supplier_id= noise.
func WithQuery(query url.Values) RequestOption {
	return func(o *requestOptions) {
		clean := url.Values{}
		for key, values := range query {
			for _, value := range values {
				if value != "" {
					clean.Add(key, value)
				}
			}
		}
		o.query = clean
	}
}

// WithHeader adds an extra request header
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		o.headers.Add(key, value)
	}
}

// WithIdempotencyKey attaches a generated timestamp-random idempotency
// key, used on state-changing POSTs that are unsafe to double-apply
// (confirm-purchase, cancel, mark-paid).
func WithIdempotencyKey() RequestOption {
	return func(o *requestOptions) {
		o.idempotencyKey = NewIdempotencyKey()
	}
}

// WithRawBody captures the raw response body instead of JSON-decoding it,
// for binary downloads such as PDF or Excel exports.
func WithRawBody(dst *[]byte) RequestOption {
	return func(o *requestOptions) {
		o.raw = dst
	}
}

// NewIdempotencyKey generates a timestamp-random key per call
func NewIdempotencyKey() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
