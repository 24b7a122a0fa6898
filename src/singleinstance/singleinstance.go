package singleinstance

// This file defines the API for single-instance ownership and run-once delegation.

import (
	"context"
	"strings"
)

// Action is what a client asks the resident to do.
type Action string

const (
	ActionRun     Action = "RUN"
	ActionRestore Action = "RESTORE"
)

// parseAction maps a request line to an Action; unknown lines yield "".
func parseAction(line string) Action {
	switch a := Action(strings.ToUpper(strings.TrimSpace(line))); a {
	case ActionRun, ActionRestore:
		return a
	}
	return ""
}

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start begins listening on the first port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	Request() Request
	// RespondSuccess sends success with an optional payload (the final clip path).
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	Close() error
}

// Request represents a single delegated client request.
type Request struct {
	Action Action
}

// Client delegates a request to a resident server.
type Client interface {
	// Delegate scans the port range, performs the handshake and sends action.
	// If no resident is found, returns delegated=false, err=nil.
	Delegate(ctx context.Context, action Action) (delegated bool, text string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
