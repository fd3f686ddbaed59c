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
	"runtime"
	"sync"
	"unsafe"

	"k8s.io/klog/v2"

	"github.com/shahern004/crusty-core/hal"
)

// MaxAllocations is the size of the fixed secure allocation table.
const MaxAllocations = 16

type allocation struct {
	addr  uintptr
	buf   []byte
	inUse bool
}

// Stats is a point-in-time snapshot of the allocation table.
type Stats struct {
	SlotsInUse int
	BytesInUse int
	// HighWater is the peak of BytesInUse since Init.
	HighWater int
}

// Manager owns the region descriptors and the secure allocation table.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	regions [regionCount]Region
	allocs  [MaxAllocations]allocation
	bytes   int
	high    int
	active  bool
}

// New returns a manager over the given backend. Call Init before use.
func New(b Backend) *Manager {
	return &Manager{backend: b}
}

// Init stages the platform region table, programs every region and raises
// protection. It must be called exactly once.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return fmt.Errorf("%w: memory protection already initialized", hal.ErrInvalidParam)
	}

	regions, err := m.backend.Regions()
	if err != nil {
		return fmt.Errorf("region table: %w", err)
	}

	for _, r := range regions {
		if r.Type < 0 || r.Type >= regionCount {
			return fmt.Errorf("%w: unknown region type %d", hal.ErrInvalidParam, r.Type)
		}
		if r.Size <= 0 {
			return fmt.Errorf("%w: region %v has size %d", hal.ErrInvalidParam, r.Type, r.Size)
		}

		if err := m.backend.Apply(r); err != nil {
			return fmt.Errorf("program region %v: %w", r.Type, err)
		}

		r.Configured = true
		m.regions[r.Type] = r
		klog.V(1).Infof("secmem: region %v base %#x size %#x perm %v", r.Type, r.Base, r.Size, r.Perm)
	}

	m.backend.Barrier()
	if err := m.backend.Enable(); err != nil {
		return fmt.Errorf("enable protection: %w", err)
	}
	m.backend.Barrier()

	m.active = true
	klog.Infof("secmem: protection enabled, %d regions", len(regions))

	return nil
}

// ConfigureRegion changes the permission of an existing region. The
// protection unit is lowered for the reprogramming and raised again on every
// path, including failure.
func (m *Manager) ConfigureRegion(t RegionType, p Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return hal.ErrNotInitialized
	}
	if t < 0 || t >= regionCount || !m.regions[t].Configured {
		return fmt.Errorf("%w: no region %v", hal.ErrInvalidParam, t)
	}
	if p < ReadOnly || p > NoAccess {
		return fmt.Errorf("%w: permission %d", hal.ErrInvalidParam, p)
	}

	staged := m.regions[t]
	staged.Perm = p

	if err := m.backend.Disable(); err != nil {
		return fmt.Errorf("disable protection: %w", err)
	}

	applyErr := m.backend.Apply(staged)

	m.backend.Barrier()
	enableErr := m.backend.Enable()
	m.backend.Barrier()

	if applyErr != nil {
		// The previous descriptor is still live in the unit.
		return fmt.Errorf("program region %v: %w", t, applyErr)
	}
	if enableErr != nil {
		return fmt.Errorf("re-enable protection: %w", enableErr)
	}

	m.regions[t].Perm = p
	klog.V(1).Infof("secmem: region %v now %v", t, p)

	return nil
}

// AllocSecure claims a zeroed buffer of size bytes aligned to align from the
// secure pool. align must be a power of two.
func (m *Manager) AllocSecure(size, align int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return nil, hal.ErrNotInitialized
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: allocation size %d", hal.ErrInvalidParam, size)
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d is not a power of two", hal.ErrInvalidParam, align)
	}

	slot := -1
	for i := range m.allocs {
		if !m.allocs[i].inUse {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("%w: all %d secure slots in use", hal.ErrNoFreeSlots, MaxAllocations)
	}

	addr, buf, err := m.backend.Alloc(size, align)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %v", hal.ErrOutOfMemory, size, err)
	}

	// Claim-time zeroing: the range may hold a previous owner's data.
	m.wipe(buf)

	m.allocs[slot] = allocation{addr: addr, buf: buf, inUse: true}
	m.bytes += size
	if m.bytes > m.high {
		m.high = m.bytes
	}

	return buf, nil
}

// FreeSecure sanitizes and releases a buffer returned by AllocSecure.
func (m *Manager) FreeSecure(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return hal.ErrNotInitialized
	}
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer", hal.ErrInvalidParam)
	}

	addr := uintptr(unsafe.Pointer(&buf[0]))

	for i := range m.allocs {
		a := &m.allocs[i]
		if !a.inUse || a.addr != addr || len(a.buf) != len(buf) {
			continue
		}

		m.wipe(a.buf)
		if err := m.backend.Free(a.addr, a.buf); err != nil {
			return fmt.Errorf("release secure range: %w", err)
		}

		m.bytes -= len(a.buf)
		*a = allocation{}
		return nil
	}

	return fmt.Errorf("%w: buffer not tracked by secure allocator", hal.ErrInvalidParam)
}

// Sanitize zeroes buf and orders the writes with a barrier. It works on any
// buffer, tracked or not, and regardless of manager state.
func (m *Manager) Sanitize(buf []byte) {
	m.wipe(buf)
}

// IsSecureRegion reports whether buf lies entirely within a live secure
// allocation or within one of the static Code/Peripheral extents. It never
// errors and reports false for anything it does not track.
func (m *Manager) IsSecureRegion(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return false
	}

	addr := uintptr(unsafe.Pointer(&buf[0]))
	end := addr + uintptr(len(buf))

	for i := range m.allocs {
		a := &m.allocs[i]
		if a.inUse && addr >= a.addr && end <= a.addr+uintptr(len(a.buf)) {
			return true
		}
	}

	for _, t := range []RegionType{Code, Peripheral} {
		r := m.regions[t]
		if r.Configured && addr >= r.Base && end <= r.Base+uintptr(r.Size) {
			return true
		}
	}

	return false
}

// Region returns a snapshot of the descriptor for t.
func (m *Manager) Region(t RegionType) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return Region{}, hal.ErrNotInitialized
	}
	if t < 0 || t >= regionCount || !m.regions[t].Configured {
		return Region{}, fmt.Errorf("%w: no region %v", hal.ErrInvalidParam, t)
	}
	return m.regions[t], nil
}

// Stats returns a snapshot of the allocation table.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{BytesInUse: m.bytes, HighWater: m.high}
	for i := range m.allocs {
		if m.allocs[i].inUse {
			s.SlotsInUse++
		}
	}
	return s
}

// wipe zeroes buf with an indexed loop and a barrier so the stores reach
// memory before the range is reused or released.
func (m *Manager) wipe(buf []byte) {
	for i := 0; i < len(buf); i++ {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
	m.backend.Barrier()
}
