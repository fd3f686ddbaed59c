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
	"errors"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/shahern004/crusty-core/hal"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m := New(NewSimBackend())
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestInitTwiceFails(t *testing.T) {
	m := newTestManager(t)
	if err := m.Init(); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("second Init err = %v, want ErrInvalidParam", err)
	}
}

func TestOperationsRequireInit(t *testing.T) {
	m := New(NewSimBackend())

	if _, err := m.AllocSecure(16, 4); !errors.Is(err, hal.ErrNotInitialized) {
		t.Fatalf("AllocSecure err = %v, want ErrNotInitialized", err)
	}
	if err := m.ConfigureRegion(SecureData, ReadOnly); !errors.Is(err, hal.ErrNotInitialized) {
		t.Fatalf("ConfigureRegion err = %v, want ErrNotInitialized", err)
	}
	if m.IsSecureRegion([]byte{1}) {
		t.Fatal("IsSecureRegion reported true before Init")
	}
}

func TestAllocationTableFills(t *testing.T) {
	m := newTestManager(t)

	var bufs [][]byte
	for i := 0; i < MaxAllocations; i++ {
		buf, err := m.AllocSecure(16, 4)
		if err != nil {
			t.Fatalf("AllocSecure %d: %v", i, err)
		}
		bufs = append(bufs, buf)
	}

	if _, err := m.AllocSecure(16, 4); !errors.Is(err, hal.ErrNoFreeSlots) {
		t.Fatalf("alloc %d err = %v, want ErrNoFreeSlots", MaxAllocations, err)
	}

	// Releasing one slot makes the table usable again.
	if err := m.FreeSecure(bufs[7]); err != nil {
		t.Fatalf("FreeSecure: %v", err)
	}
	if _, err := m.AllocSecure(16, 4); err != nil {
		t.Fatalf("AllocSecure after free: %v", err)
	}
}

func TestAllocationsDoNotOverlap(t *testing.T) {
	m := newTestManager(t)

	type extent struct{ start, end uintptr }
	var extents []extent

	for i := 0; i < 8; i++ {
		buf, err := m.AllocSecure(33, 8)
		if err != nil {
			t.Fatalf("AllocSecure %d: %v", i, err)
		}
		start := uintptr(unsafe.Pointer(&buf[0]))
		extents = append(extents, extent{start, start + uintptr(len(buf))})
	}

	for i := range extents {
		for j := i + 1; j < len(extents); j++ {
			if extents[i].start < extents[j].end && extents[j].start < extents[i].end {
				t.Fatalf("allocations %d and %d overlap", i, j)
			}
		}
	}
}

func TestAllocationAlignment(t *testing.T) {
	m := newTestManager(t)

	for _, align := range []int{1, 2, 8, 64} {
		buf, err := m.AllocSecure(10, align)
		if err != nil {
			t.Fatalf("AllocSecure align %d: %v", align, err)
		}
		if addr := uintptr(unsafe.Pointer(&buf[0])); addr%uintptr(align) != 0 {
			t.Fatalf("allocation at %#x not %d-aligned", addr, align)
		}
	}

	for _, align := range []int{0, -1, 3, 12} {
		if _, err := m.AllocSecure(10, align); !errors.Is(err, hal.ErrInvalidParam) {
			t.Fatalf("align %d err = %v, want ErrInvalidParam", align, err)
		}
	}
}

func TestAllocationIsZeroed(t *testing.T) {
	m := newTestManager(t)

	buf, err := m.AllocSecure(64, 4)
	if err != nil {
		t.Fatalf("AllocSecure: %v", err)
	}
	if diff := cmp.Diff(make([]byte, 64), buf); diff != "" {
		t.Fatalf("fresh allocation not zeroed (-want +got):\n%s", diff)
	}
}

func TestFreeSanitizes(t *testing.T) {
	m := newTestManager(t)

	buf, err := m.AllocSecure(32, 4)
	if err != nil {
		t.Fatalf("AllocSecure: %v", err)
	}
	for i := range buf {
		buf[i] = 0xa5
	}

	if err := m.FreeSecure(buf); err != nil {
		t.Fatalf("FreeSecure: %v", err)
	}

	// The backing bytes must be scrubbed even while the released slice is
	// still reachable.
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d survived free: %#x", i, b)
		}
	}
}

func TestFreeUntrackedBuffer(t *testing.T) {
	m := newTestManager(t)

	if err := m.FreeSecure(make([]byte, 16)); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("FreeSecure err = %v, want ErrInvalidParam", err)
	}
	if err := m.FreeSecure(nil); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("FreeSecure(nil) err = %v, want ErrInvalidParam", err)
	}
}

func TestPoolExhaustion(t *testing.T) {
	m := New(NewSimBackendSize(256))
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := m.AllocSecure(512, 1); !errors.Is(err, hal.ErrOutOfMemory) {
		t.Fatalf("oversized alloc err = %v, want ErrOutOfMemory", err)
	}
}

func TestIsSecureRegion(t *testing.T) {
	m := newTestManager(t)

	buf, err := m.AllocSecure(64, 4)
	if err != nil {
		t.Fatalf("AllocSecure: %v", err)
	}

	if !m.IsSecureRegion(buf) {
		t.Fatal("live allocation not reported secure")
	}
	if !m.IsSecureRegion(buf[16:32]) {
		t.Fatal("slice inside a live allocation not reported secure")
	}
	if m.IsSecureRegion(make([]byte, 16)) {
		t.Fatal("heap buffer reported secure")
	}
	if m.IsSecureRegion(nil) {
		t.Fatal("empty buffer reported secure")
	}

	if err := m.FreeSecure(buf); err != nil {
		t.Fatalf("FreeSecure: %v", err)
	}
	if m.IsSecureRegion(buf) {
		t.Fatal("released allocation still reported secure")
	}
}

func TestSanitizeUntrackedBuffer(t *testing.T) {
	m := newTestManager(t)

	buf := []byte{1, 2, 3, 4}
	m.Sanitize(buf)

	if diff := cmp.Diff([]byte{0, 0, 0, 0}, buf); diff != "" {
		t.Fatalf("Sanitize left data (-want +got):\n%s", diff)
	}
}

func TestConfigureRegionPreservesExtent(t *testing.T) {
	m := newTestManager(t)

	before, err := m.Region(SecureData)
	if err != nil {
		t.Fatalf("Region: %v", err)
	}

	if err := m.ConfigureRegion(SecureData, ReadOnly); err != nil {
		t.Fatalf("ConfigureRegion: %v", err)
	}

	after, err := m.Region(SecureData)
	if err != nil {
		t.Fatalf("Region: %v", err)
	}

	if after.Perm != ReadOnly {
		t.Fatalf("Perm = %v, want ReadOnly", after.Perm)
	}
	if after.Base != before.Base || after.Size != before.Size {
		t.Fatalf("extent changed: %#x+%#x -> %#x+%#x", before.Base, before.Size, after.Base, after.Size)
	}
}

func TestConfigureRegionValidation(t *testing.T) {
	m := newTestManager(t)

	if err := m.ConfigureRegion(RegionType(99), ReadOnly); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("bad type err = %v, want ErrInvalidParam", err)
	}
	if err := m.ConfigureRegion(SecureData, Permission(99)); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("bad perm err = %v, want ErrInvalidParam", err)
	}
}

func TestConfigureRegionKeepsProtectionUp(t *testing.T) {
	b := NewSimBackend()
	m := New(b)
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if !b.Enabled() {
		t.Fatal("protection not enabled after Init")
	}
	if err := m.ConfigureRegion(CryptoBuffer, NoAccess); err != nil {
		t.Fatalf("ConfigureRegion: %v", err)
	}
	if !b.Enabled() {
		t.Fatal("protection left disabled after ConfigureRegion")
	}
}

func TestStats(t *testing.T) {
	m := newTestManager(t)

	a, err := m.AllocSecure(100, 4)
	if err != nil {
		t.Fatalf("AllocSecure: %v", err)
	}
	if _, err := m.AllocSecure(50, 4); err != nil {
		t.Fatalf("AllocSecure: %v", err)
	}

	want := Stats{SlotsInUse: 2, BytesInUse: 150, HighWater: 150}
	if diff := cmp.Diff(want, m.Stats()); diff != "" {
		t.Fatalf("stats diff (-want +got):\n%s", diff)
	}

	if err := m.FreeSecure(a); err != nil {
		t.Fatalf("FreeSecure: %v", err)
	}

	want = Stats{SlotsInUse: 1, BytesInUse: 50, HighWater: 150}
	if diff := cmp.Diff(want, m.Stats()); diff != "" {
		t.Fatalf("stats after free diff (-want +got):\n%s", diff)
	}
}
