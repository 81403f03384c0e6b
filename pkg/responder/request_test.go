package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRequest(t *testing.T) {
	t.Run("WellFormed", func(t *testing.T) {
		req := ParseRequest([]byte("GET /health HTTP/1.1\r\nHost: localhost\r\nuser-agent: probe\r\n\r\nbody"))
		assert.True(t, req.Valid)
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, "/health", req.Path)
		assert.Equal(t, "HTTP/1.1", req.Proto)
		assert.Equal(t, "localhost", req.Headers["Host"])
		assert.Equal(t, "probe", req.Headers["User-Agent"])
		assert.Equal(t, []byte("body"), req.Body)
	})

	t.Run("Empty", func(t *testing.T) {
		req := ParseRequest(nil)
		assert.False(t, req.Valid)
		assert.Empty(t, req.Method)
		assert.Nil(t, req.Headers)
	})

	t.Run("Truncated", func(t *testing.T) {
		req := ParseRequest([]byte("GET /hea"))
		assert.False(t, req.Valid)
		assert.Nil(t, req.Body)
	})

	t.Run("TruncatedHeaders", func(t *testing.T) {
		req := ParseRequest([]byte("POST / HTTP/1.0\r\nX-Probe: 1\r\nBroken"))
		assert.True(t, req.Valid)
		assert.Equal(t, "1", req.Headers["X-Probe"])
		assert.Len(t, req.Headers, 1)
	})

	t.Run("InvalidUTF8IsReplaced", func(t *testing.T) {
		req := ParseRequest([]byte("GET /\xff\xfe HTTP/1.1\r\n\r\n"))
		assert.True(t, req.Valid)
		assert.Equal(t, "/�", req.Path)
	})

	t.Run("Garbage", func(t *testing.T) {
		req := ParseRequest([]byte{0x00, 0x01, 0xc3, 0x28})
		assert.False(t, req.Valid)
	})
}
