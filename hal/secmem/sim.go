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

package secmem

import (
	"fmt"
	"sync"
	"unsafe"
)

// DefaultArenaSize is the simulation secure arena size.
const DefaultArenaSize = 16 * 1024

// Synthetic extents for the regions that have no in-process backing. The
// addresses mirror a typical Cortex-M memory map so address-range checks
// behave as they would on silicon.
const (
	simCodeBase       = 0x08000000
	simCodeSize       = 64 * 1024
	simPeripheralBase = 0x40000000
	simPeripheralSize = 4 * 1024
)

// SimBackend backs the manager with a heap-allocated arena. Allocation is a
// monotonic bump pointer: Free reclaims nothing, matching a firmware pool
// that only ever grows. Protection state is tracked but not enforced.
type SimBackend struct {
	mu      sync.Mutex
	arena   []byte
	next    int
	enabled bool
}

// NewSimBackend returns a simulation backend with the default arena size.
func NewSimBackend() *SimBackend {
	return NewSimBackendSize(DefaultArenaSize)
}

// NewSimBackendSize returns a simulation backend with an arena of n bytes.
// Small arenas are useful for exhaustion tests.
func NewSimBackendSize(n int) *SimBackend {
	return &SimBackend{arena: make([]byte, n)}
}

// Regions carves the data regions out of the arena and synthesizes the code
// and peripheral extents.
func (s *SimBackend) Regions() ([]Region, error) {
	base := uintptr(unsafe.Pointer(&s.arena[0]))
	half := len(s.arena) / 2

	return []Region{
		{Type: SecureData, Base: base, Size: half, Perm: ReadWrite},
		{Type: CryptoBuffer, Base: base + uintptr(half), Size: len(s.arena) - half, Perm: ReadWrite},
		{Type: Code, Base: simCodeBase, Size: simCodeSize, Perm: ReadExecute},
		{Type: Peripheral, Base: simPeripheralBase, Size: simPeripheralSize, Perm: ReadWrite},
	}, nil
}

// Apply accepts any descriptor: simulation has no protection unit.
func (s *SimBackend) Apply(Region) error { return nil }

func (s *SimBackend) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	return nil
}

func (s *SimBackend) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	return nil
}

// Enabled reports the tracked protection state.
func (s *SimBackend) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Barrier is a no-op: the Go memory model already orders in-process writes.
func (s *SimBackend) Barrier() {}

// Alloc bumps the arena pointer to the next aligned offset.
func (s *SimBackend) Alloc(size, align int) (uintptr, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	off := (s.next + align - 1) &^ (align - 1)
	if off+size > len(s.arena) {
		return 0, nil, fmt.Errorf("arena exhausted: %d of %d bytes used", s.next, len(s.arena))
	}

	buf := s.arena[off : off+size : off+size]
	s.next = off + size

	return uintptr(unsafe.Pointer(&buf[0])), buf, nil
}

// Free is a no-op: the bump arena is monotonic.
func (s *SimBackend) Free(uintptr, []byte) error { return nil }
