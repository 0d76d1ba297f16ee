// Package dap implements the wire level of the Debug Adapter Protocol:
// Content-Length framed JSON messages over a subprocess, a TCP socket,
// or any ReadWriteCloser, plus a correlating client on top.
package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Transport carries raw DAP message bodies to and from a debug adapter.
// Implementations must allow concurrent Send calls; Receive is called
// from a single reader goroutine.
type Transport interface {
	// Send writes one framed message body.
	Send(content json.RawMessage) error

	// Receive blocks until the next message body arrives.
	Receive() (json.RawMessage, error)

	// Close tears down the connection to the adapter.
	Close() error
}

// MaxContentLength caps a single DAP message body at 10MB. Adapters
// that exceed it are misbehaving; refusing the frame beats allocating
// an attacker-chosen buffer.
const MaxContentLength = 10 * 1024 * 1024

// StdioTransport speaks DAP over the stdin/stdout of an adapter
// subprocess. Closing the transport kills the process.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	stdout io.ReadCloser
	mu     sync.Mutex
}

// NewStdioTransport wires up pipes and starts the adapter command.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start adapter: %w", err)
	}

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}, nil
}

// Send writes one framed message to the adapter's stdin.
func (t *StdioTransport) Send(content json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFrame(t.stdin, content)
}

// Receive reads the next framed message from the adapter's stdout.
func (t *StdioTransport) Receive() (json.RawMessage, error) {
	return readFrame(t.reader)
}

// Close closes the pipes and terminates the adapter process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stdin.Close()
	t.stdout.Close()

	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}

	return t.cmd.Wait()
}

// SocketTransport speaks DAP over a TCP connection, for adapters that
// listen on a port (delve headless, java-debug, attach setups).
type SocketTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewSocketTransport dials the adapter at address.
func NewSocketTransport(address string) (*SocketTransport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewSocketTransportFromConn(conn), nil
}

// NewSocketTransportFromConn wraps an already-established connection.
func NewSocketTransportFromConn(conn net.Conn) *SocketTransport {
	return &SocketTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes one framed message to the socket.
func (t *SocketTransport) Send(content json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFrame(t.conn, content)
}

// Receive reads the next framed message from the socket.
func (t *SocketTransport) Receive() (json.RawMessage, error) {
	return readFrame(t.reader)
}

// Close closes the socket.
func (t *SocketTransport) Close() error {
	return t.conn.Close()
}

// PipeTransport wraps any ReadWriteCloser. Used by tests and by hosts
// that manage their own adapter connection.
type PipeTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewPipeTransport creates a transport over rwc.
func NewPipeTransport(rwc io.ReadWriteCloser) *PipeTransport {
	return &PipeTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Send writes one framed message.
func (t *PipeTransport) Send(content json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFrame(t.rwc, content)
}

// Receive reads the next framed message.
func (t *PipeTransport) Receive() (json.RawMessage, error) {
	return readFrame(t.reader)
}

// Close closes the underlying connection.
func (t *PipeTransport) Close() error {
	return t.rwc.Close()
}

func writeFrame(w io.Writer, content json.RawMessage) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

func readFrame(r *bufio.Reader) (json.RawMessage, error) {
	contentLength := -1

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("invalid header line %q", line)
		}

		// Content-Type is permitted by the protocol but carries no
		// information we need; only the length matters.
		if strings.EqualFold(name, "Content-Length") {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			if n < 0 || n > MaxContentLength {
				return nil, fmt.Errorf("content length %d outside [0, %d]", n, MaxContentLength)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return content, nil
}
