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

// Package gpio drives the board LEDs and the user button. LED identity and
// presence come from the board descriptor, so the same controller serves
// boards with different LED populations; operations on an absent LED report
// hal.ErrNotPresent instead of faulting.
package gpio

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/shahern004/crusty-core/hal"
	"github.com/shahern004/crusty-core/hal/board"
)

// Backend is the platform seam for pin output.
type Backend interface {
	// SetLED drives the LED at index to the given level.
	SetLED(index int, on bool) error
}

type ledState struct {
	ready    bool
	on       bool
	blinking bool
	period   time.Duration
	stop     chan struct{}
}

// LEDStatus is a snapshot of one LED.
type LEDStatus struct {
	Name     string
	Present  bool
	On       bool
	Blinking bool
	Period   time.Duration
}

// Controller owns LED state and button event dispatch. All methods are safe
// for concurrent use; blinking runs on a per-LED timer goroutine that is
// cancelled and replaced atomically on any conflicting operation.
type Controller struct {
	mu      sync.Mutex
	backend Backend
	cfg     board.Config
	leds    [board.LEDCount]ledState
	ready   bool

	btnDown bool
	btnCb   func()
}

// New returns a controller for the given board. Call Init before use.
func New(b Backend, cfg board.Config) *Controller {
	return &Controller{backend: b, cfg: cfg}
}

// Init marks the populated LEDs ready and drives them all off.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return fmt.Errorf("%w: gpio already initialized", hal.ErrInvalidParam)
	}

	for i, l := range c.cfg.LEDs {
		if !l.Present {
			continue
		}
		if err := c.backend.SetLED(i, false); err != nil {
			return fmt.Errorf("led %s: %w", l.Name, err)
		}
		c.leds[i].ready = true
	}

	c.ready = true
	klog.V(1).Infof("gpio: %s ready, button=%v", c.cfg.Name, c.cfg.HasButton)

	return nil
}

// Close stops all blink timers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.leds {
		c.stopBlinkLocked(i)
	}
}

// IsReady reports whether the LED at index is present and initialized. It
// never errors; out-of-range indexes report false.
func (c *Controller) IsReady(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= board.LEDCount {
		return false
	}
	return c.ready && c.leds[index].ready
}

// LEDOn drives the LED at index on, cancelling any blink in progress.
func (c *Controller) LEDOn(index int) error {
	return c.setLED(index, true)
}

// LEDOff drives the LED at index off, cancelling any blink in progress.
func (c *Controller) LEDOff(index int) error {
	return c.setLED(index, false)
}

// LEDToggle inverts the LED at index, cancelling any blink in progress.
func (c *Controller) LEDToggle(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLED(index); err != nil {
		return err
	}

	c.stopBlinkLocked(index)
	return c.driveLocked(index, !c.leds[index].on)
}

// LEDBlink blinks the LED at index with the given full on/off cycle period.
// A blink already in progress is replaced; the timer fires every half period
// so one period covers a complete cycle.
func (c *Controller) LEDBlink(index int, period time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLED(index); err != nil {
		return err
	}
	if period <= 0 {
		return fmt.Errorf("%w: blink period %v", hal.ErrInvalidParam, period)
	}

	c.stopBlinkLocked(index)

	stop := make(chan struct{})
	l := &c.leds[index]
	l.blinking = true
	l.period = period
	l.stop = stop

	go c.blinker(index, period/2, stop)

	return nil
}

// LEDBlinkStop cancels a blink, leaving the LED at its current level.
func (c *Controller) LEDBlinkStop(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLED(index); err != nil {
		return err
	}

	c.stopBlinkLocked(index)
	return nil
}

// LEDStatus returns a snapshot of the LED at index.
func (c *Controller) LEDStatus(index int) (LEDStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= board.LEDCount {
		return LEDStatus{}, fmt.Errorf("%w: led index %d", hal.ErrInvalidParam, index)
	}

	l := c.leds[index]
	return LEDStatus{
		Name:     c.cfg.LEDs[index].Name,
		Present:  c.cfg.LEDs[index].Present,
		On:       l.on,
		Blinking: l.blinking,
		Period:   l.period,
	}, nil
}

// RegisterButtonCallback arms fn to run on every button edge, press and
// release alike; ButtonState distinguishes them. A nil fn disarms. The
// callback runs outside the controller lock.
func (c *Controller) RegisterButtonCallback(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return hal.ErrNotInitialized
	}
	if !c.cfg.HasButton {
		return fmt.Errorf("%w: no button on %s", hal.ErrNotPresent, c.cfg.Name)
	}

	c.btnCb = fn
	return nil
}

// ButtonState reports whether the button is currently held.
func (c *Controller) ButtonState() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return false, hal.ErrNotInitialized
	}
	if !c.cfg.HasButton {
		return false, fmt.Errorf("%w: no button on %s", hal.ErrNotPresent, c.cfg.Name)
	}

	return c.btnDown, nil
}

// SimulateButtonPress injects a press edge through the same dispatch path a
// hardware interrupt takes. Release it with SimulateButtonRelease.
func (c *Controller) SimulateButtonPress() error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return hal.ErrNotInitialized
	}
	if !c.cfg.HasButton {
		c.mu.Unlock()
		return fmt.Errorf("%w: no button on %s", hal.ErrNotPresent, c.cfg.Name)
	}
	c.mu.Unlock()

	c.ButtonEvent(true)
	return nil
}

// SimulateButtonRelease injects a release edge.
func (c *Controller) SimulateButtonRelease() error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return hal.ErrNotInitialized
	}
	if !c.cfg.HasButton {
		c.mu.Unlock()
		return fmt.Errorf("%w: no button on %s", hal.ErrNotPresent, c.cfg.Name)
	}
	c.mu.Unlock()

	c.ButtonEvent(false)
	return nil
}

// ButtonEvent is the dispatch path shared by the hardware interrupt handler
// and the simulation. Both edges run the callback; a repeated level with no
// transition does not.
func (c *Controller) ButtonEvent(pressed bool) {
	c.mu.Lock()
	edge := pressed != c.btnDown
	c.btnDown = pressed
	cb := c.btnCb
	c.mu.Unlock()

	if edge && cb != nil {
		cb()
	}
}

func (c *Controller) setLED(index int, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLED(index); err != nil {
		return err
	}

	c.stopBlinkLocked(index)
	return c.driveLocked(index, on)
}

func (c *Controller) checkLED(index int) error {
	if !c.ready {
		return hal.ErrNotInitialized
	}
	if index < 0 || index >= board.LEDCount {
		return fmt.Errorf("%w: led index %d", hal.ErrInvalidParam, index)
	}
	if !c.leds[index].ready {
		return fmt.Errorf("%w: led %d not populated on %s", hal.ErrNotPresent, index, c.cfg.Name)
	}
	return nil
}

func (c *Controller) driveLocked(index int, on bool) error {
	if err := c.backend.SetLED(index, on); err != nil {
		return fmt.Errorf("%w: led %d: %v", hal.ErrHardwareFault, index, err)
	}
	c.leds[index].on = on
	return nil
}

func (c *Controller) stopBlinkLocked(index int) {
	l := &c.leds[index]
	if !l.blinking {
		return
	}
	close(l.stop)
	l.blinking = false
	l.period = 0
	l.stop = nil
}

// blinker toggles the LED every half period until stopped. A toggle failure
// stops the blink rather than hammering a faulted pin.
func (c *Controller) blinker(index int, half time.Duration, stop chan struct{}) {
	t := time.NewTicker(half)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.mu.Lock()
			if c.leds[index].stop != stop {
				// Superseded by a newer blink.
				c.mu.Unlock()
				return
			}
			err := c.driveLocked(index, !c.leds[index].on)
			c.mu.Unlock()

			if err != nil {
				klog.Warningf("gpio: blink on led %d stopped: %v", index, err)
				c.mu.Lock()
				if c.leds[index].stop == stop {
					c.stopBlinkLocked(index)
				}
				c.mu.Unlock()
				return
			}
		}
	}
}
