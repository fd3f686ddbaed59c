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

package gpio

import (
	"fmt"

	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"

	"github.com/shahern004/crusty-core/hal"
	"github.com/shahern004/crusty-core/hal/board"
)

// HWBackend drives the board LEDs through the USB armory front-end. The
// LED name for each index comes from the board descriptor.
type HWBackend struct {
	cfg board.Config
}

// NewHWBackend returns the hardware pin backend for cfg.
func NewHWBackend(cfg board.Config) *HWBackend {
	return &HWBackend{cfg: cfg}
}

// SetLED drives the named LED at index.
func (h *HWBackend) SetLED(index int, on bool) error {
	if index < 0 || index >= board.LEDCount || !h.cfg.LEDs[index].Present {
		return fmt.Errorf("%w: led index %d", hal.ErrNotPresent, index)
	}
	return usbarmory.LED(h.cfg.LEDs[index].Name, on)
}
