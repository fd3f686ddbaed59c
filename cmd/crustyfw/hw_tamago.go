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

package main

import (
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/shahern004/crusty-core/hal/board"
	"github.com/shahern004/crusty-core/hal/crypto"
	"github.com/shahern004/crusty-core/hal/gpio"
	"github.com/shahern004/crusty-core/hal/irq"
	"github.com/shahern004/crusty-core/hal/secmem"
	"github.com/shahern004/crusty-core/hal/uart"
)

func newPlatform() (*platform, error) {
	if imx6ul.Native {
		imx6ul.SetARMFreq(imx6ul.Freq792)
	}

	irq.Init()

	cfg := board.Default()

	mem, err := secmem.NewHWBackend()
	if err != nil {
		return nil, err
	}

	return &platform{
		cfg:  cfg,
		mem:  secmem.New(mem),
		eng:  crypto.New(crypto.NewHWBackend()),
		leds: gpio.New(gpio.NewHWBackend(cfg), cfg),
		ch:   uart.New(uart.NewHWBackend(cfg)),
	}, nil
}

// run parks the main goroutine; all work happens on the interrupt dispatch
// and subsystem goroutines.
func (p *platform) run() {
	select {}
}
