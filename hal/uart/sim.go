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

package uart

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// simTxCap bounds the simulation transmit capture so a chatty test cannot
// grow it without limit.
const simTxCap = 4096

// SimBackend is an in-memory serial transport. Received traffic is injected
// by tests or emitted as canned lines on a timer; transmitted bytes are
// captured for inspection.
type SimBackend struct {
	mu      sync.Mutex
	deliver func(byte)
	tx      []byte
	stall   int
	stop    chan struct{}

	cannedDelay    time.Duration
	cannedInterval time.Duration
	cannedLines    []string
}

// NewSimBackend returns an in-memory transport.
func NewSimBackend() *SimBackend {
	return &SimBackend{}
}

// SetCanned configures canned traffic to arm when the channel initializes:
// the first line after delay and one more every interval, cycling. Call it
// before Init.
func (s *SimBackend) SetCanned(delay, interval time.Duration, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cannedDelay = delay
	s.cannedInterval = interval
	s.cannedLines = lines
}

// Init arms receive delivery and any configured canned traffic.
func (s *SimBackend) Init(deliver func(byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliver = deliver
	s.startCannedLocked(s.cannedDelay, s.cannedInterval, s.cannedLines)
	return nil
}

// TxReady reports transmit readiness; see StallTx.
func (s *SimBackend) TxReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stall > 0 {
		s.stall--
		return false
	}
	return true
}

// Tx captures one transmitted byte. When the capture is full the oldest
// bytes are discarded.
func (s *SimBackend) Tx(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tx) == simTxCap {
		copy(s.tx, s.tx[simTxCap/2:])
		s.tx = s.tx[:simTxCap/2]
		klog.Warningf("uart sim: tx capture full, oldest %d bytes discarded", simTxCap/2)
	}
	s.tx = append(s.tx, b)
	return nil
}

// Close stops any canned traffic.
func (s *SimBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

// Inject delivers data as received traffic through the same path a hardware
// interrupt uses.
func (s *SimBackend) Inject(data []byte) {
	s.mu.Lock()
	deliver := s.deliver
	s.mu.Unlock()

	if deliver == nil {
		return
	}
	for _, b := range data {
		deliver(b)
	}
}

// InjectLine delivers line followed by the terminator.
func (s *SimBackend) InjectLine(line string) {
	s.Inject(append([]byte(line), Terminator))
}

// StartCanned emits the given lines as received traffic immediately, the
// first after delay and one more every interval, cycling. It stops on Close.
func (s *SimBackend) StartCanned(delay, interval time.Duration, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCannedLocked(delay, interval, lines)
}

func (s *SimBackend) startCannedLocked(delay, interval time.Duration, lines []string) {
	if s.stop != nil || len(lines) == 0 {
		return
	}

	stop := make(chan struct{})
	s.stop = stop

	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-stop:
			return
		case <-t.C:
		}

		for i := 0; ; i++ {
			s.InjectLine(lines[i%len(lines)])

			t.Reset(interval)
			select {
			case <-stop:
				return
			case <-t.C:
			}
		}
	}()
}

// StallTx makes the next n TxReady polls report not ready.
func (s *SimBackend) StallTx(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stall = n
}

// TxBytes returns a snapshot of the transmit capture.
func (s *SimBackend) TxBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.tx...)
}

// ResetTx clears the transmit capture.
func (s *SimBackend) ResetTx() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx = s.tx[:0]
}
