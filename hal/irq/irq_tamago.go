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

package irq

import (
	"log"
	"sync"

	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
)

var (
	mu       sync.Mutex
	handlers = make(map[int]func())
	started  bool
)

// Init configures the interrupt controller and starts the dispatch
// goroutine. It must be called once before Register.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	if started {
		return
	}

	imx6ul.GIC.Init(true, false)
	started = true

	go imx6ul.ARM.ServiceInterrupts(dispatch)
}

// Register installs fn as the handler for irq and unmasks it.
func Register(irq int, fn func()) {
	mu.Lock()
	handlers[irq] = fn
	mu.Unlock()

	imx6ul.GIC.EnableInterrupt(irq, true)
}

// Unregister masks irq and removes its handler.
func Unregister(irq int) {
	imx6ul.GIC.EnableInterrupt(irq, false)

	mu.Lock()
	delete(handlers, irq)
	mu.Unlock()
}

func dispatch() {
	irq := imx6ul.GIC.GetInterrupt(true)

	mu.Lock()
	handle, ok := handlers[irq]
	mu.Unlock()

	if !ok {
		log.Printf("irq: unexpected IRQ %d", irq)
		return
	}
	handle()
}
