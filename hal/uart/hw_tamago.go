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

package uart

import (
	"runtime"

	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/shahern004/crusty-core/hal/board"
	"github.com/shahern004/crusty-core/hal/irq"
)

// HWBackend is the console UART transport. Receive delivery drains the FIFO
// from a dedicated goroutine; when the board descriptor carries an IRQ line
// it is also registered so pending input wakes the drain immediately.
type HWBackend struct {
	cfg  board.Config
	stop chan struct{}
}

// NewHWBackend returns the hardware serial transport for cfg.
func NewHWBackend(cfg board.Config) *HWBackend {
	return &HWBackend{cfg: cfg}
}

// Init arms receive delivery.
func (h *HWBackend) Init(deliver func(byte)) error {
	h.stop = make(chan struct{})

	drain := func() {
		for {
			c, ok := imx6ul.UART2.Rx()
			if !ok {
				return
			}
			deliver(c)
		}
	}

	if h.cfg.Console.IRQ != 0 {
		irq.Register(h.cfg.Console.IRQ, drain)
	}

	go func() {
		for {
			select {
			case <-h.stop:
				return
			default:
			}

			drain()
			runtime.Gosched()
		}
	}()

	return nil
}

// TxReady always holds: the transmit path blocks in the FIFO instead.
func (h *HWBackend) TxReady() bool {
	return true
}

// Tx writes one byte to the console UART.
func (h *HWBackend) Tx(b byte) error {
	imx6ul.UART2.Tx(b)
	return nil
}

// Close stops receive delivery.
func (h *HWBackend) Close() error {
	if h.cfg.Console.IRQ != 0 {
		irq.Unregister(h.cfg.Console.IRQ)
	}
	close(h.stop)
	return nil
}
