package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Delegate(ctx context.Context, action Action) (bool, string, error) {
	probe := 300 * time.Millisecond
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, probe) {
			continue
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}
		text, err := exchange(ctx, conn, action)
		return true, text, err
	}
	return false, "", nil
}

// exchange sends one request and waits, without a deadline, for the reply;
// a bypass run can take many minutes. Cancelling ctx aborts the wait.
func exchange(ctx context.Context, conn net.Conn, action Action) (string, error) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(string(action) + "\n"); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successLine:
		return string(body), nil
	case errorLine:
		return "", errors.New(strings.TrimSpace(string(body)))
	}
	return "", errors.New("unexpected reply from resident: " + strings.TrimSpace(status))
}
