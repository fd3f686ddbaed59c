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

//go:build !tamago
// +build !tamago

package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"time"

	"github.com/shahern004/crusty-core/hal/board"
	"github.com/shahern004/crusty-core/hal/crypto"
	"github.com/shahern004/crusty-core/hal/gpio"
	"github.com/shahern004/crusty-core/hal/secmem"
	"github.com/shahern004/crusty-core/hal/uart"
)

var (
	profile = flag.String("board", "", "board profile TOML, defaults to the built-in sim board")
	seed    = flag.Uint("seed", crypto.SimSeed, "simulation randomness seed")
	canned  = flag.Bool("canned", false, "emit canned peer traffic on the simulated serial line")
)

// uartSim is kept for the stdio bridge.
var uartSim *uart.SimBackend

func newPlatform() (*platform, error) {
	flag.Parse()

	cfg := board.Default()
	if *profile != "" {
		var err error
		if cfg, err = board.LoadProfile(*profile); err != nil {
			return nil, err
		}
	}

	mem, err := newSecmem()
	if err != nil {
		return nil, err
	}

	uartSim = uart.NewSimBackend()
	if *canned {
		uartSim.SetCanned(time.Second, 5*time.Second, "STATUS", "ECHO canned peer")
	}

	return &platform{
		cfg:  cfg,
		mem:  mem,
		eng:  crypto.New(crypto.NewSeededSimBackend(uint32(*seed))),
		leds: gpio.New(gpio.NewSimBackend(), cfg),
		ch:   uart.New(uartSim),
	}, nil
}

func newSecmem() (*secmem.Manager, error) {
	return secmem.New(secmem.NewSimBackend()), nil
}

// run bridges the simulated serial line to the terminal: stdin lines become
// received traffic, transmitted bytes are echoed to stdout.
func (p *platform) run() {
	go func() {
		last := 0
		for {
			tx := uartSim.TxBytes()
			if len(tx) > last {
				os.Stdout.Write(tx[last:])
				last = len(tx)
			}
			if len(tx) < last {
				// Capture was truncated.
				last = len(tx)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		uartSim.InjectLine(in.Text())
	}
	if err := in.Err(); err != nil {
		log.Printf("FW stdin closed, %v", err)
	}

	select {}
}
