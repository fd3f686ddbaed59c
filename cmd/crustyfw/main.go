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

// crustyfw is the secure file-encryption firmware. It runs bare metal on the
// USB armory Mk II when built with the tamago tag and as a host process with
// simulated peripherals otherwise; either way the same HAL subsystems and
// serial command console come up.
package main

import (
	"log"
	"os"
	"runtime"
	"time"

	"github.com/coreos/go-semver/semver"

	"github.com/shahern004/crusty-core/hal/board"
	"github.com/shahern004/crusty-core/hal/crypto"
	"github.com/shahern004/crusty-core/hal/gpio"
	"github.com/shahern004/crusty-core/hal/secmem"
	"github.com/shahern004/crusty-core/hal/uart"
	"github.com/shahern004/crusty-core/internal/shell"
)

// initialized at compile time (see Makefile)
var (
	Build    string
	Revision string
	Version  string
)

// minVersion is the oldest firmware version allowed to boot, a guard against
// flashing a stale image.
const minVersion = "0.1.0"

// Status LED blink periods after the boot self-test.
const (
	healthyBlink = 2 * time.Second
	faultBlink   = 200 * time.Millisecond
)

// platform carries the per-target subsystem wiring; it is built by
// newPlatform in the target-specific files.
type platform struct {
	cfg  board.Config
	mem  *secmem.Manager
	eng  *crypto.Engine
	leds *gpio.Controller
	ch   *uart.Channel
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(newLineBuffer(os.Stdout))
}

func main() {
	if Version == "" {
		Version = "0.1.0-dev"
	}

	v, err := semver.NewVersion(Version)
	if err != nil {
		log.Fatalf("FW malformed version %q, %v", Version, err)
	}
	if v.LessThan(*semver.New(minVersion)) {
		log.Fatalf("FW version %s predates minimum %s, refusing to boot", Version, minVersion)
	}

	log.Printf("%s/%s (%s) • CRUSTy-Core firmware • %s %s",
		runtime.GOOS, runtime.GOARCH, runtime.Version(), Revision, Build)

	p, err := newPlatform()
	if err != nil {
		log.Fatalf("FW platform bring-up, %v", err)
	}

	if err := p.mem.Init(); err != nil {
		log.Fatalf("FW memory protection, %v", err)
	}
	if err := p.eng.Init(); err != nil {
		log.Fatalf("FW crypto engine, %v", err)
	}
	if err := p.leds.Init(); err != nil {
		log.Fatalf("FW gpio, %v", err)
	}
	if err := p.ch.Init(); err != nil {
		log.Fatalf("FW uart, %v", err)
	}

	bootCheck(p)

	sh := shell.New(p.ch, p.eng, p.leds, p.mem, p.cfg, Version)
	sh.Start()

	// never returns
	p.run()
}

// bootCheck runs the crypto self-test with scratch taken from secure memory
// and reports the outcome on the status LED: a slow blink when healthy, a
// fast one when not.
func bootCheck(p *platform) {
	scratch, err := p.mem.AllocSecure(64, 16)
	if err != nil {
		log.Printf("FW secure scratch allocation failed, %v", err)
	} else {
		if err := p.eng.RandomBytes(scratch); err != nil {
			log.Printf("FW secure scratch fill failed, %v", err)
		}
		if !p.mem.IsSecureRegion(scratch) {
			log.Printf("FW secure scratch not tracked as secure")
		}
		if err := p.mem.FreeSecure(scratch); err != nil {
			log.Printf("FW secure scratch release failed, %v", err)
		}
	}

	period := healthyBlink
	if err := p.eng.SelfTest(); err != nil {
		log.Printf("FW crypto self-test failed, %v", err)
		period = faultBlink
	} else {
		log.Printf("FW crypto self-test passed")
	}

	status := -1
	for i, l := range p.cfg.LEDs {
		if l.Present {
			status = i
			break
		}
	}
	if status < 0 {
		return
	}

	if err := p.leds.LEDBlink(status, period); err != nil {
		log.Printf("FW status LED, %v", err)
	}
}
