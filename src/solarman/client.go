package solarman

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// DefaultPort is the TCP port the logger listens on
const DefaultPort = 8899

const (
	defaultSlaveID = 1
	defaultTimeout = 10 * time.Second
	minRTULen      = 5 // address, function, one data byte, CRC
)

// Address joins an IP address and port into a dialable address
func Address(ip string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

type OptionFunc func(*Client) error

// WithSlaveID sets the Modbus slave address of the inverter behind the logger
func WithSlaveID(id byte) OptionFunc {
	return func(c *Client) error {
		if id == 0 {
			return fmt.Errorf("invalid slave id %d", id)
		}
		c.handler.SlaveId = id
		return nil
	}
}

// WithTimeout bounds every request/response exchange
func WithTimeout(timeout time.Duration) OptionFunc {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %v", timeout)
		}
		c.handler.timeout = timeout
		return nil
	}
}

// Client reads inverter registers through a Solarman V5 logger
type Client struct {
	handler *v5Handler
	mb      modbus.Client
}

// Dial connects to the logger at address (host:port) with the given logger
// serial number. The TCP connect is the whole handshake: the logger only
// proves the serial is right when it answers the first request.
func Dial(ctx context.Context, address string, serial uint32, opts ...OptionFunc) (*Client, error) {
	rtu := modbus.NewRTUClientHandler(address)
	rtu.SlaveId = defaultSlaveID

	c := &Client{
		handler: &v5Handler{
			RTUClientHandler: rtu,
			serial:           serial,
			timeout:          defaultTimeout,
		},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}

	dialer := net.Dialer{Timeout: c.handler.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connect to logger %s: %w", address, err)
	}
	c.handler.conn = conn
	c.mb = modbus.NewClient(c.handler)

	return c, nil
}

// ReadHoldingRegisters reads quantity consecutive registers starting at addr
func (c *Client) ReadHoldingRegisters(addr, quantity uint16) ([]uint16, error) {
	raw, err := c.mb.ReadHoldingRegisters(addr, quantity)
	if err != nil {
		return nil, fmt.Errorf("read registers %d+%d: %w", addr, quantity, err)
	}
	if len(raw) != int(quantity)*2 {
		return nil, fmt.Errorf("read registers %d+%d: got %d bytes", addr, quantity, len(raw))
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return values, nil
}

// ReadRegister reads a single holding register
func (c *Client) ReadRegister(addr uint16) (uint16, error) {
	values, err := c.ReadHoldingRegisters(addr, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// Close disconnects from the logger
func (c *Client) Close() error {
	return c.handler.Close()
}

// v5Handler reuses the RTU packager from goburrow/modbus for encoding and
// CRC checks, and replaces its serial transport with V5 framing over TCP.
type v5Handler struct {
	*modbus.RTUClientHandler

	mu      sync.Mutex
	conn    net.Conn
	serial  uint32
	seq     uint16
	timeout time.Duration
}

// Send wraps the RTU request in a V5 frame and returns the RTU response
func (h *v5Handler) Send(aduRequest []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		return nil, net.ErrClosed
	}

	h.seq++
	seq := h.seq
	deadline := time.Now().Add(h.timeout)
	if err := h.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := h.conn.Write(EncodeRequest(h.serial, seq, aduRequest)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	for {
		frame, err := ReadFrame(h.conn)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, fmt.Errorf("no response from logger within %v: %w", h.timeout, err)
			}
			return nil, fmt.Errorf("read response: %w", err)
		}

		if binary.LittleEndian.Uint16(frame[3:5]) != ControlResponse {
			// Heartbeats and data pushes from the logger, not ours
			continue
		}

		resp, err := DecodeResponse(frame)
		if err != nil {
			return nil, err
		}
		if byte(resp.SequenceNumber) != byte(seq) {
			continue
		}
		if len(resp.RTU) < minRTULen {
			return nil, fmt.Errorf("%w: logger returned no modbus frame (status 0x%02X)", ErrUnexpectedFrame, resp.Status)
		}
		return resp.RTU, nil
	}
}

// Close closes the TCP connection
func (h *v5Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}
