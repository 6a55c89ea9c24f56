package common

import "time"

const (
	// MaxRequestBody limits JSON request bodies. Inline media is base64 encoded inside the body.
	MaxRequestBody = 8 << 20
	// RequestTimeout bounds every store round trip started by a handler.
	RequestTimeout = 5 * time.Second
)
