package wstransport

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedScheme = errors.New("unsupported url scheme")

var wsSchemes = map[string]string{
	"http":  "ws",
	"https": "wss",
	"ws":    "ws",
	"wss":   "wss",
}

// FormatURL rewrites an http or https url to its ws or wss form. ws
// and wss urls are returned unchanged. Everything after the scheme is
// left as it is.
func FormatURL(rawURL string) (string, error) {
	scheme, rest, found := strings.Cut(rawURL, ":")
	if !found {
		return "", fmt.Errorf("%w: '%s' has no scheme", ErrUnsupportedScheme, rawURL)
	}
	wsScheme, ok := wsSchemes[strings.ToLower(scheme)]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedScheme, scheme)
	}
	return wsScheme + ":" + rest, nil
}
