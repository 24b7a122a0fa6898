package singleinstance

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"
)

const defaultProbe = 300 * time.Millisecond

// DetectResidentPort returns the first port in the range that answers PING.
// A deadline on ctx widens the per-port probe.
func DetectResidentPort(ctx context.Context) (int, bool) {
	probe := defaultProbe
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) > 0 {
		probe = time.Until(dl)
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			break
		}
		if ping(net.JoinHostPort(residentHost, strconv.Itoa(port)), probe) {
			return port, true
		}
	}
	return 0, false
}

// ping reports whether addr speaks our protocol; any other listener on the
// port fails the exact PONG match.
func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return false
	}
	if _, err := io.WriteString(conn, pingRequest); err != nil {
		return false
	}
	buf := make([]byte, len(pongResponse))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return false
	}
	return string(buf) == pongResponse
}
