package gridfeed

import (
	"net"
	"time"
)

// Socket is the subset of *net.UDPConn the listener needs.
type Socket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// SocketFactory opens sockets; tests substitute a scripted one.
type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (Socket, error)
}

type netFactory struct{}

func (netFactory) ListenUDP(network string, laddr *net.UDPAddr) (Socket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NetFactory returns the factory backed by net.ListenUDP.
func NetFactory() SocketFactory { return netFactory{} }
