package ports

import "context"

// DeviceConn is an open line-oriented session to the modem.
type DeviceConn interface {
	// ReadUntil blocks until delim has been read and returns everything up to and including it.
	ReadUntil(delim []byte) ([]byte, error)
	// DiscardEager drops output that is already available without blocking.
	DiscardEager() error
	Write(p []byte) error
	Close() error
}

type DeviceDialer interface {
	Dial(ctx context.Context, addr string) (DeviceConn, error)
}
