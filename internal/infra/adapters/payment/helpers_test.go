//go:build !integration

package payment

import (
	"io"
	"net/url"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// signedFlowForm builds a confirmation body signed the way the processor
// signs its webhook deliveries.
func signedFlowForm(secret string, fields map[string]string) string {
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("s", signSortedParams(secret, vals))
	return vals.Encode()
}
