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

package crypto

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/shahern004/crusty-core/hal"
)

// SimSeed is the default seed for the simulation randomness source.
const SimSeed = 0x12345678

// SimBackend is the pure-simulation crypto backend: no accelerators, and a
// seeded linear congruential generator in place of an entropy source so test
// runs are reproducible. Its output is not security grade and SecureRNG
// reports so.
type SimBackend struct {
	mu    sync.Mutex
	state uint32
}

// NewSimBackend returns a simulation backend with the default seed.
func NewSimBackend() *SimBackend {
	return NewSeededSimBackend(SimSeed)
}

// NewSeededSimBackend returns a simulation backend seeded for a specific,
// reproducible random sequence.
func NewSeededSimBackend(seed uint32) *SimBackend {
	return &SimBackend{state: seed}
}

// Probe reports no accelerators: all simulation crypto runs in software.
func (s *SimBackend) Probe() Capabilities {
	return Capabilities{}
}

// Random fills b from the LCG.
func (s *SimBackend) Random(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range b {
		s.state = (s.state*1103515245 + 12345) & 0x7fffffff
		b[i] = byte(s.state)
	}
	return nil
}

// SecureRNG reports false: the simulation sequence is deterministic.
func (s *SimBackend) SecureRNG() bool {
	return false
}

// NewBlock always reports absence; the engine uses the software cipher.
func (s *SimBackend) NewBlock(_ []byte) (BlockSession, error) {
	return nil, fmt.Errorf("%w: no AES engine in simulation", hal.ErrNotPresent)
}

// Sum256 always reports absence; the engine uses the software digest.
func (s *SimBackend) Sum256(_ []byte) ([sha256.Size]byte, error) {
	return [sha256.Size]byte{}, fmt.Errorf("%w: no hash engine in simulation", hal.ErrNotPresent)
}
