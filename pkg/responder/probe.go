package responder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// maxProbeBytes caps how much of a reply Probe reads.
const maxProbeBytes = 64 << 10

// ProbeResult is what a liveness probe observed.
type ProbeResult struct {
	Address    string        `json:"address" yaml:"address"`
	StatusLine string        `json:"status_line" yaml:"status_line"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Bytes      int           `json:"bytes" yaml:"bytes"`
	Latency    time.Duration `json:"latency" yaml:"latency"`
}

// Healthy reports whether the responder answered 200.
func (p ProbeResult) Healthy() bool { return p.StatusCode == 200 }

// Probe sends one HTTP/1.1 request to addr and reads the reply until the
// server closes the connection. Both variants close after answering, so the
// reply is complete when Probe returns.
func Probe(ctx context.Context, addr string, timeout time.Duration) (ProbeResult, error) {
	res := ProbeResult{Address: addr}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return res, fmt.Errorf("probe %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := "GET / HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"User-Agent: spoticord-probe\r\n" +
		"Connection: close\r\n\r\n"
	if _, err := io.WriteString(conn, req); err != nil {
		return res, fmt.Errorf("probe %s: write: %w", addr, err)
	}

	reply, err := io.ReadAll(io.LimitReader(conn, maxProbeBytes))
	res.Latency = time.Since(start)
	res.Bytes = len(reply)
	if err != nil && len(reply) == 0 {
		return res, fmt.Errorf("probe %s: read: %w", addr, err)
	}

	line := lossy(firstLine(reply))
	res.StatusLine = line
	res.StatusCode = statusCode(line)
	if res.StatusCode == 0 {
		return res, fmt.Errorf("probe %s: malformed status line %q", addr, line)
	}
	return res, nil
}

// statusCode extracts the code from "HTTP/1.1 200 OK", or 0.
func statusCode(line string) int {
	fields := bytes.Fields([]byte(line))
	if len(fields) < 2 || !bytes.HasPrefix(fields[0], []byte("HTTP/")) {
		return 0
	}
	code, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return 0
	}
	return code
}
