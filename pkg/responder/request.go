package responder

import (
	"bytes"
	"net/textproto"
	"strings"
)

// Request is a best-effort view of the bytes a raw connection sent. It is
// only used for logging; the response never depends on it.
type Request struct {
	Method  string
	Path    string
	Proto   string
	Headers map[string]string
	Body    []byte

	// Valid is set when the first line looked like "METHOD PATH PROTO".
	Valid bool
}

// ParseRequest parses raw leniently. It never fails: truncated input yields
// whatever fields were complete, and invalid UTF-8 is replaced by U+FFFD.
func ParseRequest(raw []byte) Request {
	var req Request

	head, body, hasBody := bytes.Cut(raw, []byte("\r\n\r\n"))
	if hasBody {
		req.Body = body
	}

	lines := strings.Split(lossy(head), "\n")
	if len(lines) == 0 {
		return req
	}

	fields := strings.Fields(strings.TrimRight(lines[0], "\r"))
	if len(fields) == 3 && strings.HasPrefix(fields[2], "HTTP/") {
		req.Method, req.Path, req.Proto = fields[0], fields[1], fields[2]
		req.Valid = true
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		req.Headers[textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	return req
}

// lossy converts b to a valid UTF-8 string.
func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
