// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/kazwalker/romiserial/pkg/romiserial"
)

// Connection provides a common interface for reading/writing bytes from
// serial or WebSocket, the transport-agnostic seam streamAdapter below
// narrows to the byte-granular romiserial.InputStream/OutputStream pair.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// timeoutSetter is implemented by connections that can bound how long a
// single Read blocks. streamAdapter uses it to honor the per-byte poll
// window the transaction engine configures (§6).
type timeoutSetter interface {
	SetReadTimeout(d time.Duration) error
}

// SerialConnection wraps a serial port.
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *SerialConnection) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *SerialConnection) Close() error                { return s.port.Close() }
func (s *SerialConnection) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection.
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading —
// the bridged transport of §6B, for devices reachable only through a gateway
// process rather than a local serial port. It still presents exactly one
// stream pair to the Client, preserving the at-most-one-transaction invariant.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error { return w.conn.Close() }

func (w *WebSocketConnection) SetReadTimeout(d time.Duration) error {
	return w.conn.SetReadDeadline(time.Now().Add(d))
}

// streamAdapter narrows a byte-slice Connection down to the single-byte
// InputStream/OutputStream pair romiserial.Client drives, the same role
// RSerial plays for the original client over a raw file descriptor.
type streamAdapter struct {
	conn     Connection
	timeout  time.Duration
	pending  bool
	one      [1]byte
	writeBuf [1]byte
}

func newStreamAdapter(conn Connection) *streamAdapter {
	return &streamAdapter{conn: conn, timeout: romiserial.DefaultByteTimeout}
}

func (a *streamAdapter) SetTimeout(d time.Duration) { a.timeout = d }

func (a *streamAdapter) Available() bool {
	if a.pending {
		return true
	}
	a.armDeadline()
	n, err := a.conn.Read(a.one[:])
	if err != nil || n == 0 {
		return false
	}
	a.pending = true
	return true
}

func (a *streamAdapter) Read() (byte, bool) {
	if a.pending {
		a.pending = false
		return a.one[0], true
	}
	a.armDeadline()
	n, err := a.conn.Read(a.one[:])
	if err != nil || n == 0 {
		return 0, false
	}
	return a.one[0], true
}

func (a *streamAdapter) Write(b byte) bool {
	a.writeBuf[0] = b
	n, err := a.conn.Write(a.writeBuf[:])
	return err == nil && n == 1
}

func (a *streamAdapter) Close() error { return a.conn.Close() }

func (a *streamAdapter) armDeadline() {
	if ts, ok := a.conn.(timeoutSetter); ok {
		_ = ts.SetReadTimeout(a.timeout)
	}
}

// OpenSerialConnection opens a serial port connection configured 8N1, no
// parity, no flow control (§6).
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	time.Sleep(3 * time.Second) // let a USB-CDC bootloader settle after enumeration

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth.
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves the bridged-transport password from the environment
// or prompts interactively.
func GetPassword() (string, error) {
	if pw := os.Getenv("ROMISERIAL_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openRawConnection opens either a serial or WebSocket connection based on
// the root command's flags, without narrowing it to the byte-granular
// romiserial stream pair — for diagnostics that want to see raw reads.
func openRawConnection() (Connection, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenConnection opens either a serial or WebSocket connection based on the
// root command's flags and wraps it as a romiserial stream pair.
func OpenConnection() (*streamAdapter, string, error) {
	conn, desc, err := openRawConnection()
	if err != nil {
		return nil, "", err
	}
	return newStreamAdapter(conn), desc, nil
}

// newClient opens a connection per the root command's flags and wraps it in
// a ready-to-use romiserial.Client.
func newClient() (*romiserial.Client, *streamAdapter, string, error) {
	stream, desc, err := OpenConnection()
	if err != nil {
		return nil, nil, "", err
	}

	opts := []romiserial.Option{}
	if startID >= 0 {
		opts = append(opts, romiserial.WithStartID(uint8(startID)))
	}

	client := romiserial.NewClient(stream, stream, romiserial.NewConsoleLogger(nil), clientName, opts...)
	client.SetDebug(debugLog)
	return client, stream, desc, nil
}
