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

package gpio

import (
	"sync"

	"github.com/shahern004/crusty-core/hal/board"
)

// SimBackend records LED levels in memory. It also counts writes per LED so
// tests can observe blink activity without timing assumptions.
type SimBackend struct {
	mu     sync.Mutex
	levels [board.LEDCount]bool
	writes [board.LEDCount]int
}

// NewSimBackend returns an in-memory pin backend.
func NewSimBackend() *SimBackend {
	return &SimBackend{}
}

// SetLED records the level for index.
func (s *SimBackend) SetLED(index int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.levels[index] = on
	s.writes[index]++
	return nil
}

// Level reports the recorded level of the LED at index.
func (s *SimBackend) Level(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[index]
}

// Writes reports how many times the LED at index has been driven.
func (s *SimBackend) Writes(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[index]
}
