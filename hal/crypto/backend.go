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
	"crypto/cipher"
	"crypto/sha256"
)

// Capabilities is the read-only snapshot of accelerator availability computed
// once by Engine.Init.
type Capabilities struct {
	HasAES bool
	HasRNG bool
	HasSHA bool
	HasPKA bool
}

// Backend is the platform seam between the engine and whatever silicon (or
// simulation thereof) the build targets. Implementations are selected at
// build time and injected at construction.
type Backend interface {
	// Probe detects the platform accelerators. Called once from Init.
	Probe() Capabilities

	// Random fills b from the platform randomness source. A hardware
	// implementation returns an error on a TRNG read failure, upon which
	// the engine falls back to its software DRBG.
	Random(b []byte) error

	// SecureRNG reports whether Random output is cryptographically
	// suitable. The simulation source is deliberately deterministic and
	// reports false.
	SecureRNG() bool

	// NewBlock claims an AES session for key, returning the block cipher
	// core and a release function. ErrNotPresent means no engine can
	// serve this key and the caller should use the software cipher.
	NewBlock(key []byte) (BlockSession, error)

	// Sum256 digests data through the platform hash engine.
	// ErrNotPresent means the build has no such engine.
	Sum256(data []byte) ([sha256.Size]byte, error)
}

// BlockSession is a claimed cipher session. Hardware implementations hold a
// key slot until Close; faults occurring inside block operations (which have
// no error return) are latched and reported by Err.
type BlockSession interface {
	Block() cipher.Block
	Err() error
	Close() error
}
