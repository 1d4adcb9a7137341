package node

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cantp/isotp-go/pkg/channel"
	"cantp/isotp-go/pkg/isotp"
)

// loopbackChannel is an in-memory PhysicalChannel that delivers every
// written record back to its reader
type loopbackChannel struct {
	records   chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

func newLoopbackChannel() *loopbackChannel {
	return &loopbackChannel{
		records:   make(chan []byte, 1024),
		closeChan: make(chan struct{}),
	}
}

func (l *loopbackChannel) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeChan:
		return nil, errors.New("channel closed")
	case record := <-l.records:
		return record, nil
	}
}

func (l *loopbackChannel) Write(ctx context.Context, record []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closeChan:
		return errors.New("channel closed")
	case l.records <- record:
		return nil
	}
}

func (l *loopbackChannel) Close() error {
	l.closeOnce.Do(func() { close(l.closeChan) })
	return nil
}

func (l *loopbackChannel) Statistics() channel.TransportStats {
	return channel.TransportStats{}
}

func (l *loopbackChannel) SetConnectionStateListener(listener channel.ConnectionStateListener) {}

// waitFor polls until the condition holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}

func TestBus_SendReceiveRoundTrip(t *testing.T) {
	bus := NewBus("loopback", newLoopbackChannel(), nil)

	config := isotp.DefaultConfig()
	receiver := NewReceiver(0x123, config, nil)

	var mu sync.Mutex
	var payloads [][]byte
	receiver.OnPayload(func(p []byte) {
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
	})

	if err := bus.AddHandler(receiver); err != nil {
		t.Fatalf("AddHandler failed: %v", err)
	}
	if err := bus.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bus.Close()

	sender := NewSender(bus, config, nil)
	sender.Start()
	defer sender.Stop()

	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i * 3)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sender.Send(ctx, 0x123, payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(payloads[0], payload) {
		t.Errorf("Round trip payload mismatch")
	}

	if sender.GetStats().GetTxTransfers() != 1 {
		t.Errorf("Expected 1 TX transfer, got %d", sender.GetStats().GetTxTransfers())
	}
	if sender.GetStats().GetTxFrames() != uint64(isotp.NumFrames(len(payload))) {
		t.Errorf("Expected %d TX frames, got %d",
			isotp.NumFrames(len(payload)), sender.GetStats().GetTxFrames())
	}
}

func TestBus_SeparationTimePacing(t *testing.T) {
	bus := NewBus("paced", newLoopbackChannel(), nil)

	config := isotp.DefaultConfig()
	config.SeparationTime = 10 * time.Millisecond

	receiver := NewReceiver(0x20, config, nil)

	var mu sync.Mutex
	var payloads [][]byte
	receiver.OnPayload(func(p []byte) {
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
	})

	bus.AddHandler(receiver)
	if err := bus.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bus.Close()

	sender := NewSender(bus, config, nil)
	sender.Start()
	defer sender.Stop()

	// Three frames with 10ms spacing should take at least 20ms
	payload := make([]byte, 20)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sender.Send(ctx, 0x20, payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Expected pacing of at least 20ms, took %v", elapsed)
	}

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1
	})
}

func TestBus_UnroutedFrames(t *testing.T) {
	lb := newLoopbackChannel()
	bus := NewBus("unrouted", lb, nil)

	if err := bus.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bus.Close()

	sender := NewSender(bus, isotp.DefaultConfig(), nil)
	sender.Start()
	defer sender.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sender.Send(ctx, 0x30, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return bus.GetStatistics().GetUnroutedFrames() == 1
	})
}

func TestBus_DuplicateHandlerRejected(t *testing.T) {
	bus := NewBus("dup", newLoopbackChannel(), nil)

	config := isotp.DefaultConfig()
	if err := bus.AddHandler(NewReceiver(0x10, config, nil)); err != nil {
		t.Fatalf("AddHandler failed: %v", err)
	}
	if err := bus.AddHandler(NewReceiver(0x10, config, nil)); err == nil {
		t.Errorf("Expected duplicate handler rejected")
	}
}

func TestBus_WriteWhenClosed(t *testing.T) {
	bus := NewBus("closed", newLoopbackChannel(), nil)

	sender := NewSender(bus, isotp.DefaultConfig(), nil)
	sender.Start()
	defer sender.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sender.Send(ctx, 0x40, []byte{1}); err != ErrBusClosed {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}
}
