// Package relay forwards raw form bodies to the ingestion socket.
package relay

import (
	"fmt"
	"net"
	"sync"
)

// Client sends each payload as a single UDP datagram. Delivery is not
// confirmed. It is safe for concurrent use.
//
// The socket is never connected, so an ICMP refusal caused by one send is
// not reported on a later one.
type Client struct {
	addr string

	mu   sync.Mutex
	conn net.PacketConn
	dst  *net.UDPAddr
}

func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Send writes payload in one datagram. The socket is opened lazily and
// reopened after a failed write.
func (c *Client) Send(payload []byte) error {
	conn, dst, err := c.open()
	if err != nil {
		return err
	}
	if _, err := conn.WriteTo(payload, dst); err != nil {
		c.reset(conn)
		return fmt.Errorf("sending datagram to %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) open() (net.PacketConn, *net.UDPAddr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, c.dst, nil
	}
	dst, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving %s: %w", c.addr, err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, nil, fmt.Errorf("opening socket for %s: %w", c.addr, err)
	}
	c.conn, c.dst = conn, dst
	return conn, dst, nil
}

func (c *Client) reset(failed net.PacketConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == failed {
		c.conn.Close()
		c.conn = nil
	}
}
