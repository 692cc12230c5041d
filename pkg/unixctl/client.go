// Package unixctl talks to the JSON-RPC control socket (<rundir>/<target>.ctl) served by
// ovsdb-server and ovn-northd, the same socket ovn-appctl and ovs-appctl connect to.
package unixctl

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/go-logr/logr"
)

// DialError is returned when the control socket could not be reached.
type DialError struct {
	Path string
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial control socket %s: %v", e.Path, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// ReplyError is returned when the server answered the command with an error.
type ReplyError struct {
	Command string
	Err     error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("control command %q failed: %v", e.Command, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

type Client struct {
	log logr.Logger
}

func NewClient(log logr.Logger) *Client {
	return &Client{log: log}
}

// Call connects to the control socket at path, runs a single command and returns its textual reply.
func (c *Client) Call(ctx context.Context, path, command string, args ...string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, jrpc2.Network(path), path)
	if err != nil {
		return "", &DialError{Path: path, Err: err}
	}
	cli := jrpc2.NewClient(channel.RawJSON(conn, conn), &jrpc2.ClientOptions{
		AllowV1: true,
	})
	defer cli.Close()

	if args == nil {
		args = []string{}
	}
	c.log.V(5).Info("unixctl call", "socket", path, "command", command, "args", args)
	var result string
	if err := cli.CallResult(ctx, command, args, &result); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var rpcErr *jrpc2.Error
		if errors.As(err, &rpcErr) {
			return "", &ReplyError{Command: command, Err: err}
		}
		return "", err
	}
	return result, nil
}
