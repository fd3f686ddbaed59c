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

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/shahern004/crusty-core/hal"
)

// dcpKeySlots is the number of DCP key RAM slots.
const dcpKeySlots = 4

// HWBackend drives the i.MX6UL family security blocks: the DCP for AES key
// slot and SHA-256 operations, the CAAM or RNGB TRNG for entropy. Under
// full-system emulation none of the blocks are present and every operation
// reports absence, pushing the engine onto its software paths.
type HWBackend struct {
	mu    sync.Mutex
	slots [dcpKeySlots]bool
}

// NewHWBackend returns the hardware crypto backend.
func NewHWBackend() *HWBackend {
	return &HWBackend{}
}

// Probe initializes and reports the security blocks fused into this part.
func (h *HWBackend) Probe() Capabilities {
	if imx6ul.Native && imx6ul.DCP != nil {
		imx6ul.DCP.Init()
	}

	hasDCP := imx6ul.Native && imx6ul.DCP != nil

	return Capabilities{
		HasAES: hasDCP,
		HasSHA: hasDCP,
		HasRNG: imx6ul.Native && (imx6ul.CAAM != nil || imx6ul.RNGB != nil),
		// The PKA/BEE blocks are not used by this engine.
		HasPKA: false,
	}
}

// Random fills b from the SoC TRNG.
func (h *HWBackend) Random(b []byte) error {
	if !imx6ul.Native {
		return fmt.Errorf("%w: no TRNG under emulation", hal.ErrNotPresent)
	}

	switch {
	case imx6ul.CAAM != nil:
		imx6ul.CAAM.GetRandomData(b)
	case imx6ul.RNGB != nil:
		imx6ul.RNGB.GetRandomData(b)
	default:
		return fmt.Errorf("%w: no TRNG on this part", hal.ErrNotPresent)
	}
	return nil
}

// SecureRNG reports whether a TRNG backs Random.
func (h *HWBackend) SecureRNG() bool {
	return imx6ul.Native && (imx6ul.CAAM != nil || imx6ul.RNGB != nil)
}

// NewBlock claims a DCP key slot for the session. The DCP serves 128-bit
// keys only; longer keys report absence so the engine runs them in software.
func (h *HWBackend) NewBlock(key []byte) (BlockSession, error) {
	if !imx6ul.Native || imx6ul.DCP == nil {
		return nil, fmt.Errorf("%w: no AES engine", hal.ErrNotPresent)
	}
	if len(key) != 16 {
		return nil, fmt.Errorf("%w: DCP serves 128-bit keys only", hal.ErrNotPresent)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	slot := -1
	for i := range h.slots {
		if !h.slots[i] {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("%w: all DCP key slots busy", hal.ErrHardwareFault)
	}

	if err := imx6ul.DCP.SetKey(slot, key); err != nil {
		return nil, fmt.Errorf("%w: DCP key load: %v", hal.ErrHardwareFault, err)
	}
	h.slots[slot] = true

	return &dcpSession{backend: h, slot: slot}, nil
}

// Sum256 digests data through the DCP hash engine.
func (h *HWBackend) Sum256(data []byte) ([sha256.Size]byte, error) {
	if !imx6ul.Native || imx6ul.DCP == nil {
		return [sha256.Size]byte{}, fmt.Errorf("%w: no hash engine", hal.ErrNotPresent)
	}
	return imx6ul.DCP.Sum256(data)
}

// dcpSession holds one DCP key slot from NewBlock to Close. Block operation
// faults have no error return in the cipher.Block contract, so they are
// latched here for the engine to inspect after the AEAD call.
type dcpSession struct {
	backend *HWBackend
	slot    int
	fault   error
}

func (s *dcpSession) Block() cipher.Block { return dcpBlock{s} }
func (s *dcpSession) Err() error          { return s.fault }

// Close scrubs and releases the key slot.
func (s *dcpSession) Close() error {
	var zero [16]byte
	err := imx6ul.DCP.SetKey(s.slot, zero[:])

	s.backend.mu.Lock()
	s.backend.slots[s.slot] = false
	s.backend.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: DCP key scrub: %v", hal.ErrHardwareFault, err)
	}
	return nil
}

// dcpBlock adapts a keyed DCP slot to cipher.Block so the stdlib GCM mode
// can drive the accelerator. A single-block CBC operation with a zero IV is
// a plain AES block operation.
type dcpBlock struct {
	s *dcpSession
}

func (b dcpBlock) BlockSize() int { return aes.BlockSize }

func (b dcpBlock) Encrypt(dst, src []byte) {
	buf := make([]byte, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	copy(buf, src[:aes.BlockSize])

	if err := imx6ul.DCP.Encrypt(buf, b.s.slot, iv); err != nil {
		if b.s.fault == nil {
			b.s.fault = err
		}
		return
	}
	copy(dst, buf)
}

func (b dcpBlock) Decrypt(dst, src []byte) {
	buf := make([]byte, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	copy(buf, src[:aes.BlockSize])

	if err := imx6ul.DCP.Decrypt(buf, b.s.slot, iv); err != nil {
		if b.s.fault == nil {
			b.s.fault = err
		}
		return
	}
	copy(dst, buf)
}
