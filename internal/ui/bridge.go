package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// bridgeBuffer sizes the channel between timer goroutines and the update
// loop.
const bridgeBuffer = 256

// Bridge carries messages from timer and debouncer callbacks back into the
// Bubble Tea event loop. The App re-arms Listen after every message it
// receives through the bridge.
//
// Send never blocks, because callbacks can run on the update loop itself.
// Messages that do not fit in the channel wait in an overflow queue drained
// by a single goroutine, so delivery order is always send order.
type Bridge struct {
	ch        chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	overflow []tea.Msg
	draining bool
}

// NewBridge creates an open Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		ch:   make(chan tea.Msg, bridgeBuffer),
		done: make(chan struct{}),
	}
}

// Send queues msg behind everything sent before it.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	if len(b.overflow) == 0 {
		select {
		case b.ch <- msg:
			return
		default:
		}
	}
	b.overflow = append(b.overflow, msg)
	if !b.draining {
		b.draining = true
		go b.drain()
	}
}

// drain moves overflow into the channel in order until it is empty or the
// bridge closes.
func (b *Bridge) drain() {
	for {
		b.mu.Lock()
		if len(b.overflow) == 0 {
			b.draining = false
			b.mu.Unlock()
			return
		}
		msg := b.overflow[0]
		b.mu.Unlock()

		select {
		case b.ch <- msg:
			b.mu.Lock()
			b.overflow = b.overflow[1:]
			b.mu.Unlock()
		case <-b.done:
			b.mu.Lock()
			b.overflow = nil
			b.draining = false
			b.mu.Unlock()
			return
		}
	}
}

// Listen returns a command that waits for the next bridged message.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// Close releases pending senders and listeners.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}
