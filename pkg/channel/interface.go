package channel

import "context"

// ConnectionStateListener receives notifications about connection state changes
type ConnectionStateListener interface {
	// OnConnectionEstablished is called when a new connection is established
	OnConnectionEstablished()

	// OnConnectionLost is called when a connection is lost
	OnConnectionLost()
}

// PhysicalChannel represents a pluggable frame carrier.
// Users implement this interface to bridge a real CAN interface, a tunnel,
// or any custom transport that delivers frames in arrival order.
type PhysicalChannel interface {
	// Read reads the next frame record from the medium.
	// Blocks until a record is available or the context is cancelled.
	// Returns one complete 16-byte SocketCAN record per call.
	Read(ctx context.Context) ([]byte, error)

	// Write writes a frame record to the medium.
	// Must be thread-safe as multiple senders may write concurrently.
	Write(ctx context.Context, record []byte) error

	// Close closes the physical connection.
	// Should cleanup all resources and unblock any pending Read/Write.
	Close() error

	// Statistics returns transport-level statistics.
	// Optional - can return zero values if not tracked.
	Statistics() TransportStats

	// SetConnectionStateListener sets a listener for connection state changes.
	// Optional - channels that don't support connection state notifications
	// can ignore this.
	SetConnectionStateListener(listener ConnectionStateListener)
}

// TransportStats provides transport-level statistics
type TransportStats struct {
	BytesSent     uint64 // Total bytes sent
	BytesReceived uint64 // Total bytes received
	WriteErrors   uint64 // Number of write errors
	ReadErrors    uint64 // Number of read errors
	Connects      uint64 // Number of connections (for connection-oriented transports)
	Disconnects   uint64 // Number of disconnections
}

// ChannelState represents the state of a channel
type ChannelState int

const (
	ChannelStateOpen ChannelState = iota
	ChannelStateClosed
)

// String returns string representation of ChannelState
func (s ChannelState) String() string {
	switch s {
	case ChannelStateOpen:
		return "Open"
	case ChannelStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
