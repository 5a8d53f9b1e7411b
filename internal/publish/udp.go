package publish

import (
	"context"
	"fmt"
	"net"
)

type udpConn interface {
	Write([]byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// UDP sends each fix as one JSON datagram.
type UDP struct {
	dest string
	conn udpConn
}

func NewUDP(dest string) (*UDP, error) {
	return newUDP(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newUDP(dest string, resolve resolveFunc, dial dialFunc) (*UDP, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &UDP{dest: dest, conn: conn}, nil
}

func (u *UDP) Publish(_ context.Context, fix any) error {
	body, err := encode(fix)
	if err != nil {
		return err
	}
	return u.Send(body)
}

// Send writes a raw datagram. Empty payloads are skipped.
func (u *UDP) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := u.conn.Write(payload)
	return err
}

func (u *UDP) Close() {
	if u.conn == nil {
		return
	}
	_ = u.conn.Close()
}
