package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"cantp/isotp-go/pkg/can"
	"cantp/isotp-go/internal/logger"
	"cantp/isotp-go/pkg/internal/queue"
	"cantp/isotp-go/pkg/isotp"
)

var ErrSenderStopped = errors.New("sender is stopped")

// How often the transmit loop polls for frames that became ready to send
const transmitPollInterval = time.Millisecond

// Sender segments payloads into ISO-TP frames and transmits them on a bus.
// Consecutive frames are paced through the transmit queue using the
// configured separation time. When several transfers are queued, frames
// ready at the same instant are ordered by CAN arbitration priority
// (lower identifier wins).
type Sender struct {
	bus    *Bus
	config isotp.Config
	logger logger.Logger
	stats  *isotp.Statistics

	queue *queue.TransmitQueue

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// transferJob tracks the frames of one in-flight transfer
type transferJob struct {
	remaining int
	failed    error
	result    chan error
}

// transmitItem is one scheduled frame
type transmitItem struct {
	frame *can.Frame
	job   *transferJob
}

// NewSender creates a sender transmitting on the given bus
func NewSender(bus *Bus, config isotp.Config, log logger.Logger) *Sender {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sender{
		bus:    bus,
		config: config,
		logger: log,
		stats:  isotp.NewStatistics(),
		queue:  queue.NewTransmitQueue(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the transmit loop
func (s *Sender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.transmitLoop()
	}()
}

// Stop stops the transmit loop and discards queued frames
func (s *Sender) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.queue.Clear()
}

// Send segments a payload and transmits it with identifier id. Blocks until
// every frame has been written to the bus, the transfer fails, or the
// context is cancelled.
func (s *Sender) Send(ctx context.Context, id uint32, payload []byte) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrSenderStopped
	}

	frames, err := isotp.Segment(payload)
	if err != nil {
		return err
	}

	job := &transferJob{
		remaining: len(frames),
		result:    make(chan error, 1),
	}

	// Schedule the first frame immediately, then one separation interval
	// apart. CAN arbitration order breaks ties between transfers.
	now := time.Now()
	priority := -int(id)
	for i := range frames {
		frame, err := can.NewFrame(id, frames[i][:])
		if err != nil {
			return err
		}
		s.queue.Push(&transmitItem{frame: frame, job: job},
			priority, now.Add(time.Duration(i)*s.config.SeparationTime))
	}

	select {
	case err := <-job.result:
		if err == nil && s.config.EnableStatistics {
			s.stats.IncrementTxTransfers()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSenderStopped
	}
}

// transmitLoop drains the queue as frames become ready
func (s *Sender) transmitLoop() {
	s.logger.Debug("Sender transmit loop started")
	defer s.logger.Debug("Sender transmit loop stopped")

	ticker := time.NewTicker(transmitPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			next := s.queue.NextReady(time.Now())
			if next == nil {
				break
			}
			s.transmit(next.(*transmitItem))
		}
	}
}

// transmit writes one scheduled frame and settles its job
func (s *Sender) transmit(item *transmitItem) {
	job := item.job

	if job.failed == nil {
		if err := s.bus.Write(s.ctx, item.frame); err != nil {
			s.logger.Error("Sender: write failed: %v", err)
			job.failed = err
		} else if s.config.EnableStatistics {
			s.stats.IncrementTxFrames()
		}
	}

	job.remaining--
	if job.remaining == 0 {
		job.result <- job.failed
	}
}

// GetStats returns sender statistics
func (s *Sender) GetStats() *isotp.Statistics {
	return s.stats
}
