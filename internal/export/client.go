// internal/export/client.go
package export

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Client writes holding registers on a Modbus endpoint.
type Client interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// TCPClient is a single Modbus TCP connection.
// It serializes requests because it mutates SlaveId per write.
type TCPClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// DialTCP connects to endpoint (host:port).
func DialTCP(endpoint string, timeout time.Duration) (*TCPClient, error) {
	if endpoint == "" {
		return nil, errors.New("export: endpoint required")
	}

	h := modbus.NewTCPClientHandler(endpoint)
	h.Timeout = timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("export: connect %s: %w", endpoint, err)
	}

	return &TCPClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *TCPClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

// packRegisters encodes registers big-endian, as Modbus carries them.
func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
