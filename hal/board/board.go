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

// Package board describes the peripherals available to a build. A build
// targets either real hardware or simulation, selected once at compile time
// through the tamago build tag; Default returns the constant table for the
// selected target. Simulation builds may additionally override the table from
// a TOML profile so the same logic runs against different virtual boards.
package board

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LEDCount is the number of LED indices addressable through the HAL,
// regardless of how many the board populates.
const LEDCount = 3

// LED describes a single indicator position on the board. Present is false
// for indices the board does not populate; driving such an LED is not an
// error state worth crashing over, callers are expected to check readiness.
type LED struct {
	Index int    `toml:"index"`
	Name  string `toml:"name"`
	// Present reports whether the board actually populates this position.
	Present bool `toml:"present"`
}

// UART names the serial channel used for the command console.
type UART struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
	// IRQ is the SoC interrupt line for the device, meaningful on
	// hardware targets only.
	IRQ int `toml:"irq"`
}

// Config is the board descriptor handed to each HAL subsystem at
// construction. It is populated once at startup and read-only thereafter.
type Config struct {
	Name      string         `toml:"name"`
	LEDs      [LEDCount]LED  `toml:"leds"`
	HasButton bool           `toml:"button"`
	Console   UART           `toml:"uart"`
}

// Validate checks that the descriptor is self-consistent.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("board profile has no name")
	}
	for i, led := range c.LEDs {
		if led.Index != i {
			return fmt.Errorf("LED table entry %d carries index %d", i, led.Index)
		}
	}
	if c.Console.Baud <= 0 {
		return fmt.Errorf("invalid console baud rate %d", c.Console.Baud)
	}
	return nil
}

// LoadProfile reads a board descriptor from a TOML profile, starting from the
// build's default table so a profile only needs to state its deviations.
func LoadProfile(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading board profile: %w", err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing board profile %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("board profile %s: %w", path, err)
	}
	return cfg, nil
}
