package remoteauth

import (
	"net/url"
	"strings"
)

// QueryParameter scans the query component of rawURL left to right and
// returns the value of the first parameter whose name equals key,
// ignoring case. A parameter without '=' yields an empty value.
// '+' is decoded to a space before percent decoding; malformed escapes
// are kept as they are.
func QueryParameter(rawURL, key string) (string, bool) {
	query := rawURL
	if i := strings.IndexByte(query, '?'); i >= 0 {
		query = query[i+1:]
	} else {
		return "", false
	}
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}

	for query != "" {
		var segment string
		segment, query, _ = strings.Cut(query, "&")
		if segment == "" {
			continue
		}
		name, value, hasValue := strings.Cut(segment, "=")
		if !strings.EqualFold(unescapeComponent(name), key) {
			continue
		}
		if !hasValue {
			return "", true
		}
		return unescapeComponent(value), true
	}
	return "", false
}

func unescapeComponent(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			sb.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeDataString percent-encodes s for use as a query value, with
// spaces as %20.
func escapeDataString(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
