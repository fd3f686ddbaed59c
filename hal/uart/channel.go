// Copyright 2025 The CRUSTy-Core Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uart provides a line-oriented serial channel over a platform
// transport. Received bytes accumulate in a fixed buffer; a newline
// completes a line, which is snapshotted and handed to the registered
// callback, so the receive path keeps accepting bytes while a line is being
// consumed. The same delivery path serves the hardware interrupt handler
// and the simulation.
package uart

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/shahern004/crusty-core/hal"
)

// BufSize is the receive buffer size. A line longer than this is discarded
// whole rather than truncated.
const BufSize = 256

// Forever blocks a Send or Receive until it completes.
const Forever time.Duration = -1

// Terminator completes a line.
const Terminator = '\n'

// Backend is the platform seam for the serial transport.
type Backend interface {
	// Init prepares the transport and arms receive delivery: every
	// received byte must be passed to deliver.
	Init(deliver func(byte)) error

	// TxReady reports whether a byte can be written without blocking.
	TxReady() bool

	// Tx writes one byte.
	Tx(byte) error

	// Close stops the transport.
	Close() error
}

// LineCallback receives a completed line without its terminator. The slice
// is a snapshot owned by the callee.
type LineCallback func(line []byte)

// Channel is a line-oriented serial channel. All methods are safe for
// concurrent use.
type Channel struct {
	mu      sync.Mutex
	backend Backend
	ready   bool

	buf    [BufSize]byte
	n      int
	onLine LineCallback

	// notify wakes blocked Receive calls; it carries no data.
	notify chan struct{}

	dropped int
}

// New returns a channel over the given transport. Call Init before use.
func New(b Backend) *Channel {
	return &Channel{backend: b, notify: make(chan struct{}, 1)}
}

// Init starts the transport and arms receive delivery.
func (c *Channel) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return fmt.Errorf("%w: uart already initialized", hal.ErrInvalidParam)
	}

	if err := c.backend.Init(c.ServiceRx); err != nil {
		return fmt.Errorf("uart transport: %w", err)
	}

	c.ready = true
	return nil
}

// Close stops the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return hal.ErrNotInitialized
	}

	c.ready = false
	return c.backend.Close()
}

// Ready reports whether the channel is initialized.
func (c *Channel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// RegisterLineCallback arms fn to run on each completed line. A nil fn
// disarms. The callback runs on the delivery goroutine, outside the channel
// lock.
func (c *Channel) RegisterLineCallback(fn LineCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLine = fn
}

// ServiceRx accepts one received byte. It is the delivery path shared by
// the hardware interrupt handler and the simulation transport. With a line
// callback armed a terminator completes and delivers the line; without one
// the terminator stays buffered so the polling Receive path can frame it.
func (c *Channel) ServiceRx(b byte) {
	var (
		line []byte
		cb   LineCallback
	)

	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return
	}

	switch {
	case b == Terminator && c.onLine != nil:
		line = append(make([]byte, 0, c.n), c.buf[:c.n]...)
		cb = c.onLine
		c.n = 0
	case c.n == BufSize:
		// Overrun without a terminator: the line cannot be framed, so
		// the whole buffer is dropped.
		c.dropped += c.n + 1
		c.n = 0
		klog.Warningf("uart: rx overrun, %d bytes dropped", BufSize+1)
	default:
		c.buf[c.n] = b
		c.n++
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}

	if cb != nil {
		cb(line)
	}
}

// Send writes data, waiting up to timeout for transport readiness. A zero
// timeout never waits; Forever waits indefinitely. It returns the number of
// bytes written, which on hal.ErrTimeout is short.
func (c *Channel) Send(data []byte, timeout time.Duration) (int, error) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()

	if !ready {
		return 0, hal.ErrNotInitialized
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for i, b := range data {
		for !c.backend.TxReady() {
			if timeout == 0 || (timeout > 0 && time.Now().After(deadline)) {
				return i, fmt.Errorf("%w: tx stalled at %d/%d bytes", hal.ErrTimeout, i, len(data))
			}
			runtime.Gosched()
		}
		if err := c.backend.Tx(b); err != nil {
			return i, fmt.Errorf("%w: tx: %v", hal.ErrHardwareFault, err)
		}
	}

	return len(data), nil
}

// Receive drains raw bytes from the receive buffer, stopping at the first
// line terminator (included) or after max bytes, whichever comes first, and
// waiting up to timeout for the first byte. A zero timeout never waits;
// Forever waits indefinitely. Draining consumes bytes that would otherwise
// frame a line, so mixing Receive with a line callback is not meaningful.
func (c *Channel) Receive(max int, timeout time.Duration) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: receive limit %d", hal.ErrInvalidParam, max)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		c.mu.Lock()
		if !c.ready {
			c.mu.Unlock()
			return nil, hal.ErrNotInitialized
		}
		if c.n > 0 {
			take := c.n
			if i := bytes.IndexByte(c.buf[:c.n], Terminator); i >= 0 {
				take = i + 1
			}
			if take > max {
				take = max
			}
			out := append([]byte(nil), c.buf[:take]...)
			copy(c.buf[:], c.buf[take:c.n])
			c.n -= take
			c.mu.Unlock()
			return out, nil
		}
		c.mu.Unlock()

		if timeout == 0 {
			return nil, hal.ErrTimeout
		}

		if timeout < 0 {
			<-c.notify
			continue
		}

		remain := time.Until(deadline)
		if remain <= 0 {
			return nil, hal.ErrTimeout
		}

		t := time.NewTimer(remain)
		select {
		case <-c.notify:
			t.Stop()
		case <-t.C:
			return nil, hal.ErrTimeout
		}
	}
}

// FlushRx discards any buffered receive bytes.
func (c *Channel) FlushRx() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

// Dropped reports the total bytes discarded to receive overruns.
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
