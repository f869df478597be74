package sigv4

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// PathEncoding selects how the request path is canonicalized.
type PathEncoding int

const (
	// PathNormalized removes dot segments and empty segments, then
	// percent-encodes the already escaped path a second time.
	PathNormalized PathEncoding = iota
	// PathRaw passes the path through untouched. Used for object storage
	// where "a//b" and "a/b" name different objects.
	PathRaw
)

func (e PathEncoding) String() string {
	switch e {
	case PathNormalized:
		return "normalized"
	case PathRaw:
		return "raw"
	default:
		return fmt.Sprintf("PathEncoding(%d)", int(e))
	}
}

// Canonicalize builds the canonical request string. path is the escaped
// request path (url.URL.EscapedPath), query the raw query string without
// the leading "?". The six lines are method, canonical path, canonical
// query, canonical headers, signed header list and payload hash.
func Canonicalize(method, path, query string, headers http.Header, payloadHash string, encoding PathEncoding) string {
	if method == "" {
		panic("sigv4: canonicalize called with empty method")
	}
	if !isHexSHA256(payloadHash) {
		panic(fmt.Sprintf("sigv4: payload hash %q is not a hex encoded SHA-256 digest", payloadHash))
	}

	return strings.Join([]string{
		strings.ToUpper(method),
		CanonicalPath(path, encoding),
		CanonicalQuery(query),
		CanonicalHeaders(headers),
		SignedHeaders(headers),
		payloadHash,
	}, "\n")
}

// CanonicalPath applies the path rule selected by encoding.
func CanonicalPath(path string, encoding PathEncoding) string {
	switch encoding {
	case PathRaw:
		if path == "" {
			return "/"
		}
		return path
	case PathNormalized:
		normalized := removeDotSegments(path)
		if normalized == "" {
			return "/"
		}
		return uriEncode(normalized, true)
	default:
		panic(fmt.Sprintf("sigv4: unknown path encoding %d", int(encoding)))
	}
}

// removeDotSegments follows RFC 3986 section 5.2.4 and also collapses
// consecutive slashes.
func removeDotSegments(path string) string {
	segments := make([]string, 0, strings.Count(path, "/")+1)
	for _, segment := range strings.Split(path, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, segment)
		}
	}

	var b strings.Builder
	if strings.HasPrefix(path, "/") {
		b.WriteByte('/')
	}
	b.WriteString(strings.Join(segments, "/"))
	if len(segments) > 0 && strings.HasSuffix(path, "/") {
		b.WriteByte('/')
	}
	return b.String()
}

type queryPair struct {
	key   string
	value string
}

// CanonicalQuery decodes the raw query, re-encodes every key and value
// with the strict unreserved set, and sorts by key then value.
func CanonicalQuery(rawQuery string) string {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return ""
	}

	pairs := make([]queryPair, 0, strings.Count(rawQuery, "&")+1)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{
			key:   uriEncode(queryUnescape(key), false),
			value: uriEncode(queryUnescape(value), false),
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key == pairs[j].key {
			return pairs[i].value < pairs[j].value
		}
		return pairs[i].key < pairs[j].key
	})

	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.key + "=" + p.value
	}
	return strings.Join(out, "&")
}

func queryUnescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// CanonicalHeaders renders every header as "name:value\n", names lower
// cased and sorted, values trimmed. Repeated values are comma joined.
func CanonicalHeaders(headers http.Header) string {
	names, values := normalizeHeaders(headers)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[name])
		b.WriteByte('\n')
	}
	return b.String()
}

// SignedHeaders returns the sorted, semicolon joined header names.
func SignedHeaders(headers http.Header) string {
	names, _ := normalizeHeaders(headers)
	return strings.Join(names, ";")
}

func normalizeHeaders(headers http.Header) ([]string, map[string]string) {
	values := make(map[string][]string, len(headers))
	for name, vals := range headers {
		lower := strings.ToLower(strings.TrimSpace(name))
		for _, v := range vals {
			values[lower] = append(values[lower], strings.TrimSpace(v))
		}
	}

	names := make([]string, 0, len(values))
	joined := make(map[string]string, len(values))
	for name, vals := range values {
		names = append(names, name)
		joined[name] = strings.Join(vals, ",")
	}
	sort.Strings(names)

	return names, joined
}

func uriEncode(s string, keepSlash bool) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (keepSlash && c == '/') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

func isHexSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
