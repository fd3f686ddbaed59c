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

// Package shell implements the serial command console. Each received line is
// one command; responses are plain text with failures rendered as a single
// ERROR line, so the console is equally usable by a human on a terminal and
// by a host-side harness.
package shell

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/shahern004/crusty-core/hal/board"
	"github.com/shahern004/crusty-core/hal/crypto"
	"github.com/shahern004/crusty-core/hal/gpio"
	"github.com/shahern004/crusty-core/hal/secmem"
	"github.com/shahern004/crusty-core/hal/uart"
)

// Blink period bounds, applied at the console so HAL callers keep the full
// range.
const (
	minBlinkMs = 100
	maxBlinkMs = 10000
)

// defaultPressMs is the BUTTON PRESS hold time when none is given.
const defaultPressMs = 50

// defaultRandomLen is the CRYPTO RANDOM byte count when none is given.
const defaultRandomLen = 16

// Shell binds the command console to the HAL subsystems.
type Shell struct {
	ch      *uart.Channel
	eng     *crypto.Engine
	leds    *gpio.Controller
	mem     *secmem.Manager
	cfg     board.Config
	version string
}

// New returns a console over ch. Start arms it.
func New(ch *uart.Channel, eng *crypto.Engine, leds *gpio.Controller, mem *secmem.Manager, cfg board.Config, version string) *Shell {
	return &Shell{
		ch:      ch,
		eng:     eng,
		leds:    leds,
		mem:     mem,
		cfg:     cfg,
		version: version,
	}
}

// Start registers the line handler and prints the banner.
func (s *Shell) Start() {
	s.ch.RegisterLineCallback(s.serve)
	s.reply("CRUSTy-Core %s on %s", s.version, s.cfg.Name)
	s.reply("Type HELP for commands.")
}

// Stop disarms the line handler.
func (s *Shell) Stop() {
	s.ch.RegisterLineCallback(nil)
}

func (s *Shell) serve(line []byte) {
	args := strings.Fields(string(line))
	if len(args) == 0 {
		return
	}

	var err error

	switch strings.ToUpper(args[0]) {
	case "HELP":
		s.help()
	case "ECHO":
		s.reply("%s", strings.Join(args[1:], " "))
	case "STATUS":
		s.status()
	case "LED":
		err = s.led(args[1:])
	case "BUTTON":
		err = s.button(args[1:])
	case "CRYPTO":
		err = s.crypto(args[1:])
	default:
		err = fmt.Errorf("unknown command %q, try HELP", args[0])
	}

	if err != nil {
		s.reply("ERROR: %v", err)
	}
}

func (s *Shell) help() {
	s.reply("HELP")
	s.reply("ECHO <text>")
	s.reply("STATUS")
	s.reply("LED <index> ON|OFF|TOGGLE|STOP|1|0")
	s.reply("LED <index> BLINK <period-ms>")
	s.reply("BUTTON STATE")
	s.reply("BUTTON PRESS [hold-ms]")
	s.reply("CRYPTO STATUS")
	s.reply("CRYPTO SELFTEST")
	s.reply("CRYPTO RANDOM [len]")
	s.reply("CRYPTO HASH SHA256 <data-hex>")
	s.reply("CRYPTO ENCRYPT AES_GCM <key-hex> <nonce-hex> <plaintext-hex>")
	s.reply("CRYPTO DECRYPT AES_GCM <key-hex> <nonce-hex> <ciphertext-hex> <tag-hex>")
}

func (s *Shell) status() {
	s.reply("board: %s", s.cfg.Name)

	for i, l := range s.cfg.LEDs {
		if !l.Present {
			s.reply("led %d (%s): absent", i, l.Name)
			continue
		}
		st, err := s.leds.LEDStatus(i)
		if err != nil {
			s.reply("led %d (%s): %v", i, l.Name, err)
			continue
		}
		switch {
		case st.Blinking:
			s.reply("led %d (%s): blinking %dms", i, l.Name, st.Period.Milliseconds())
		case st.On:
			s.reply("led %d (%s): on", i, l.Name)
		default:
			s.reply("led %d (%s): off", i, l.Name)
		}
	}

	if caps, err := s.eng.Capabilities(); err == nil {
		s.reply("crypto: hw aes:%v rng:%v sha:%v", caps.HasAES, caps.HasRNG, caps.HasSHA)
	}

	st := s.mem.Stats()
	s.reply("secmem: %d/%d slots, %d bytes (peak %d)",
		st.SlotsInUse, secmem.MaxAllocations, st.BytesInUse, st.HighWater)
}

func (s *Shell) led(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: LED <index> ON|OFF|TOGGLE|STOP|BLINK <period-ms>")
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("led index %q", args[0])
	}

	switch strings.ToUpper(args[1]) {
	case "ON", "1":
		err = s.leds.LEDOn(index)
	case "OFF", "0":
		err = s.leds.LEDOff(index)
	case "TOGGLE":
		err = s.leds.LEDToggle(index)
	case "STOP":
		err = s.leds.LEDBlinkStop(index)
	case "BLINK":
		if len(args) < 3 {
			return fmt.Errorf("usage: LED <index> BLINK <period-ms>")
		}
		ms, aerr := strconv.Atoi(args[2])
		if aerr != nil {
			return fmt.Errorf("blink period %q", args[2])
		}
		if ms < minBlinkMs {
			ms = minBlinkMs
		}
		if ms > maxBlinkMs {
			ms = maxBlinkMs
		}
		err = s.leds.LEDBlink(index, time.Duration(ms)*time.Millisecond)
	default:
		return fmt.Errorf("unknown LED action %q", args[1])
	}

	if err != nil {
		return err
	}
	s.reply("OK")
	return nil
}

func (s *Shell) button(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: BUTTON STATE|PRESS [hold-ms]")
	}

	switch strings.ToUpper(args[0]) {
	case "STATE":
		down, err := s.leds.ButtonState()
		if err != nil {
			return err
		}
		if down {
			s.reply("BUTTON: DOWN")
		} else {
			s.reply("BUTTON: UP")
		}
		return nil

	case "PRESS":
		hold := defaultPressMs
		if len(args) > 1 {
			ms, err := strconv.Atoi(args[1])
			if err != nil || ms <= 0 {
				return fmt.Errorf("hold time %q", args[1])
			}
			hold = ms
		}

		if err := s.leds.SimulateButtonPress(); err != nil {
			return err
		}
		time.AfterFunc(time.Duration(hold)*time.Millisecond, func() {
			if err := s.leds.SimulateButtonRelease(); err != nil {
				klog.Warningf("shell: button release: %v", err)
			}
		})
		s.reply("OK")
		return nil

	default:
		return fmt.Errorf("unknown BUTTON action %q", args[0])
	}
}

func (s *Shell) crypto(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: CRYPTO STATUS|SELFTEST|RANDOM|HASH|ENCRYPT|DECRYPT ...")
	}

	switch strings.ToUpper(args[0]) {
	case "STATUS":
		caps, err := s.eng.Capabilities()
		if err != nil {
			return err
		}
		s.reply("crypto: hw aes:%v rng:%v sha:%v", caps.HasAES, caps.HasRNG, caps.HasSHA)
		return nil

	case "SELFTEST":
		if err := s.eng.SelfTest(); err != nil {
			return err
		}
		s.reply("OK")
		return nil

	case "RANDOM":
		n := defaultRandomLen
		if len(args) > 1 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil || n <= 0 || n > 1024 {
				return fmt.Errorf("random length %q", args[1])
			}
		}
		buf := make([]byte, n)
		if err := s.eng.RandomBytes(buf); err != nil {
			return err
		}
		s.reply("%s", hexUpper(buf))
		return nil

	case "HASH":
		if len(args) < 3 || strings.ToUpper(args[1]) != "SHA256" {
			return fmt.Errorf("usage: CRYPTO HASH SHA256 <data-hex>")
		}
		data, err := hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("data is not hex: %v", err)
		}
		sum, err := s.eng.Sum256(data)
		if err != nil {
			return err
		}
		s.reply("%s", hexUpper(sum[:]))
		return nil

	case "ENCRYPT":
		if len(args) < 5 || strings.ToUpper(args[1]) != "AES_GCM" {
			return fmt.Errorf("usage: CRYPTO ENCRYPT AES_GCM <key-hex> <nonce-hex> <plaintext-hex>")
		}
		key, nonce, err := decodeKeyNonce(args[2], args[3])
		if err != nil {
			return err
		}
		pt, err := hex.DecodeString(args[4])
		if err != nil {
			return fmt.Errorf("plaintext is not hex: %v", err)
		}

		ct := make([]byte, len(pt))
		tag := make([]byte, crypto.MaxTagSize)
		n, err := s.eng.EncryptAESGCM(key, nonce, nil, pt, ct, tag)
		if err != nil {
			return err
		}
		s.reply("%s %s", hexUpper(ct[:n]), hexUpper(tag))
		return nil

	case "DECRYPT":
		if len(args) < 6 || strings.ToUpper(args[1]) != "AES_GCM" {
			return fmt.Errorf("usage: CRYPTO DECRYPT AES_GCM <key-hex> <nonce-hex> <ciphertext-hex> <tag-hex>")
		}
		key, nonce, err := decodeKeyNonce(args[2], args[3])
		if err != nil {
			return err
		}
		ct, err := hex.DecodeString(args[4])
		if err != nil {
			return fmt.Errorf("ciphertext is not hex: %v", err)
		}
		tag, err := hex.DecodeString(args[5])
		if err != nil {
			return fmt.Errorf("tag is not hex: %v", err)
		}

		pt := make([]byte, len(ct))
		n, err := s.eng.DecryptAESGCM(key, nonce, nil, ct, tag, pt)
		if err != nil {
			return err
		}
		s.reply("%s", hexUpper(pt[:n]))
		return nil

	default:
		return fmt.Errorf("unknown CRYPTO action %q", args[0])
	}
}

func decodeKeyNonce(keyHex, nonceHex string) (key, nonce []byte, err error) {
	if key, err = hex.DecodeString(keyHex); err != nil {
		return nil, nil, fmt.Errorf("key is not hex: %v", err)
	}
	if nonce, err = hex.DecodeString(nonceHex); err != nil {
		return nil, nil, fmt.Errorf("nonce is not hex: %v", err)
	}
	return key, nonce, nil
}

func hexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// reply writes one response line. The console is best effort: a wedged
// transmit path is logged, not propagated into command handling.
func (s *Shell) reply(format string, args ...any) {
	line := fmt.Sprintf(format, args...) + "\n"
	if _, err := s.ch.Send([]byte(line), 100*time.Millisecond); err != nil {
		klog.Warningf("shell: response dropped: %v", err)
	}
}
