package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cantp/isotp-go/pkg/can"
	"cantp/isotp-go/pkg/channel"
	"cantp/isotp-go/internal/logger"
)

var (
	ErrBusClosed = errors.New("bus is closed")
	ErrBusOpen   = errors.New("bus is already open")
)

// Bus manages one frame carrier and routes received frames to the handlers
// registered for their CAN identifiers
type Bus struct {
	id              string
	physicalChannel channel.PhysicalChannel
	router          *channel.Router
	stats           *channel.Statistics
	logger          logger.Logger

	// State
	state   channel.ChannelState
	stateMu sync.RWMutex

	// Concurrency
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBus creates a new bus over a physical channel
func NewBus(id string, physical channel.PhysicalChannel, log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		id:              id,
		physicalChannel: physical,
		router:          channel.NewRouter(),
		stats:           channel.NewStatistics(),
		logger:          log,
		state:           channel.ChannelStateClosed,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// ID returns the bus ID
func (b *Bus) ID() string {
	return b.id
}

// Open opens the bus and starts processing received frames
func (b *Bus) Open() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.state == channel.ChannelStateOpen {
		return ErrBusOpen
	}

	b.state = channel.ChannelStateOpen
	b.logger.Info("Bus %s opening", b.id)

	// Start read loop
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.readLoop()
	}()

	b.logger.Info("Bus %s opened", b.id)
	return nil
}

// Close closes the bus
func (b *Bus) Close() error {
	b.stateMu.Lock()
	if b.state == channel.ChannelStateClosed {
		b.stateMu.Unlock()
		return nil
	}
	b.state = channel.ChannelStateClosed
	b.stateMu.Unlock()

	b.logger.Info("Bus %s closing", b.id)

	// Cancel context to stop goroutines
	b.cancel()

	// Close physical channel
	if err := b.physicalChannel.Close(); err != nil {
		b.logger.Error("Error closing physical channel: %v", err)
	}

	// Wait for goroutines to finish
	b.wg.Wait()

	b.logger.Info("Bus %s closed", b.id)
	return nil
}

// readLoop continuously reads from the physical channel
func (b *Bus) readLoop() {
	b.logger.Debug("Bus %s read loop started", b.id)
	defer b.logger.Debug("Bus %s read loop stopped", b.id)

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		// Read from physical channel
		record, err := b.physicalChannel.Read(b.ctx)
		if err != nil {
			if b.ctx.Err() != nil {
				// Context cancelled, normal shutdown
				return
			}
			b.logger.Error("Bus %s read error: %v", b.id, err)
			b.stats.BadFrame()
			continue
		}

		// Parse frame record
		frame, err := can.Parse(record)
		if err != nil {
			b.logger.Error("Bus %s parse error: %v", b.id, err)
			b.stats.BadFrame()
			continue
		}

		b.stats.FrameRx()
		b.logger.Debug("Bus %s received frame: %s", b.id, frame)

		// Route to appropriate handler
		if err := b.router.Route(frame); err != nil {
			if errors.Is(err, channel.ErrNoHandler) {
				b.stats.UnroutedFrame()
			}
			b.logger.Warn("Bus %s routing error: %v", b.id, err)
		}
	}
}

// Write sends a frame on the bus
func (b *Bus) Write(ctx context.Context, frame *can.Frame) error {
	b.stateMu.RLock()
	if b.state != channel.ChannelStateOpen {
		b.stateMu.RUnlock()
		return ErrBusClosed
	}
	b.stateMu.RUnlock()

	record, err := frame.Serialize()
	if err != nil {
		return err
	}

	if err := b.physicalChannel.Write(ctx, record); err != nil {
		b.logger.Error("Bus %s write error: %v", b.id, err)
		return err
	}

	b.stats.FrameTx()
	return nil
}

// AddHandler registers a frame handler on the bus
func (b *Bus) AddHandler(handler channel.Handler) error {
	if err := b.router.AddHandler(handler); err != nil {
		return err
	}

	b.stats.SetActiveHandlers(uint64(b.router.GetHandlerCount()))
	b.logger.Info("Bus %s: Added handler for identifier %X", b.id, handler.CANID())
	return nil
}

// RemoveHandler removes the handler for an identifier
func (b *Bus) RemoveHandler(id uint32) {
	b.router.RemoveHandler(id)
	b.stats.SetActiveHandlers(uint64(b.router.GetHandlerCount()))
	b.logger.Info("Bus %s: Removed handler for identifier %X", b.id, id)
}

// GetStatistics returns bus statistics
func (b *Bus) GetStatistics() *channel.Statistics {
	return b.stats
}

// GetPhysicalStatistics returns physical channel statistics
func (b *Bus) GetPhysicalStatistics() channel.TransportStats {
	return b.physicalChannel.Statistics()
}

// State returns the current bus state
func (b *Bus) State() channel.ChannelState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// String returns string representation of the bus
func (b *Bus) String() string {
	return fmt.Sprintf("Bus{ID=%s, State=%s, Handlers=%d}",
		b.id, b.State(), b.router.GetHandlerCount())
}
