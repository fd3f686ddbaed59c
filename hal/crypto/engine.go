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

// Package crypto implements the capability-aware cryptographic engine:
// AES-GCM, SHA-256 and random byte generation over a hardware accelerator
// when the platform has one, with an automatic, logged fallback to the
// software implementation when it does not or when it faults.
package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/shahern004/crusty-core/hal"
)

const (
	// NonceSize is the canonical AES-GCM nonce length. Longer nonces are
	// truncated and shorter ones (>= MinNonceSize) zero-padded before the
	// cipher sees them.
	NonceSize = 12
	// MinNonceSize is the shortest accepted nonce.
	MinNonceSize = 8
	// MinTagSize and MaxTagSize bound the accepted authentication tag.
	MinTagSize = 4
	MaxTagSize = 16
)

// Engine exposes the cryptographic operations. All methods are synchronous,
// blocking and must be called from thread context only; a single mutex also
// serializes access to hardware key slots.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	caps    Capabilities
	drbg    *DRBG
	ready   bool
}

// New returns an engine bound to the given backend. Init must be called
// before any operation.
func New(b Backend) *Engine {
	return &Engine{backend: b}
}

// Init probes the platform for accelerators, seeds the software DRBG and
// marks the engine ready. It must be called exactly once.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return fmt.Errorf("crypto engine: %w: Init called twice", hal.ErrInvalidParam)
	}

	e.caps = e.backend.Probe()

	seed := make([]byte, sha256.Size)
	if err := e.backend.Random(seed); err != nil {
		// Last-resort seed material. The DRBG path is already a
		// degraded mode; a failed seed read degrades it further and
		// both events are logged.
		klog.Warningf("crypto: entropy source unavailable for DRBG seed: %v", err)
		binary.BigEndian.PutUint64(seed, uint64(time.Now().UnixNano()))
	}
	e.drbg = NewDRBG(seed)

	if !e.backend.SecureRNG() {
		klog.Warning("crypto: randomness source is deterministic, not security grade")
	}

	klog.Infof("crypto: engine ready, hw aes:%v rng:%v sha:%v pka:%v",
		e.caps.HasAES, e.caps.HasRNG, e.caps.HasSHA, e.caps.HasPKA)

	e.ready = true
	return nil
}

// Capabilities returns the accelerator snapshot computed at Init.
func (e *Engine) Capabilities() (Capabilities, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return Capabilities{}, fmt.Errorf("crypto engine: %w", hal.ErrNotInitialized)
	}
	return e.caps, nil
}

// RandomBytes fills buf with randomness from the platform source, falling
// back to the software DRBG on a read failure. The fallback is logged; it is
// never silent. A zero-length buf succeeds without touching the generator.
func (e *Engine) RandomBytes(buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return fmt.Errorf("crypto engine: %w", hal.ErrNotInitialized)
	}
	if buf == nil {
		return fmt.Errorf("random: %w: nil buffer", hal.ErrInvalidParam)
	}
	if len(buf) == 0 {
		return nil
	}

	if err := e.backend.Random(buf); err != nil {
		klog.Warningf("crypto: entropy read failed (%v), falling back to software DRBG", err)
		if err := e.drbg.Read(buf); err != nil {
			return fmt.Errorf("random: %w: %v", hal.ErrRNGFailure, err)
		}
	}
	return nil
}

// EncryptAESGCM encrypts plaintext into ciphertext and writes the
// authentication tag into tag, whose length selects the tag size. It returns
// the number of ciphertext bytes written. Buffers are caller-sized;
// ciphertext must hold len(plaintext) bytes or ErrBufferTooSmall is returned
// with no output written.
func (e *Engine) EncryptAESGCM(key, nonce, aad, plaintext, ciphertext, tag []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return 0, fmt.Errorf("aes-gcm encrypt: %w", hal.ErrNotInitialized)
	}
	iv, err := validateAEADParams(key, nonce, tag)
	if err != nil {
		return 0, fmt.Errorf("aes-gcm encrypt: %w", err)
	}
	if len(plaintext) == 0 {
		return 0, fmt.Errorf("aes-gcm encrypt: %w: empty plaintext", hal.ErrInvalidParam)
	}
	if len(ciphertext) < len(plaintext) {
		return 0, fmt.Errorf("aes-gcm encrypt: %w: need %d bytes", hal.ErrBufferTooSmall, len(plaintext))
	}

	ct, t, err := e.seal(key, iv, aad, plaintext, len(tag))
	if err != nil {
		return 0, fmt.Errorf("aes-gcm encrypt: %w", err)
	}
	copy(ciphertext, ct)
	copy(tag, t)
	return len(ct), nil
}

// DecryptAESGCM authenticates ciphertext+tag and writes the recovered
// plaintext, returning the number of bytes written. A tag mismatch surfaces
// as ErrAuthenticationFailed, distinct from every transient failure, and no
// plaintext is released.
func (e *Engine) DecryptAESGCM(key, nonce, aad, ciphertext, tag, plaintext []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return 0, fmt.Errorf("aes-gcm decrypt: %w", hal.ErrNotInitialized)
	}
	iv, err := validateAEADParams(key, nonce, tag)
	if err != nil {
		return 0, fmt.Errorf("aes-gcm decrypt: %w", err)
	}
	if len(ciphertext) == 0 {
		return 0, fmt.Errorf("aes-gcm decrypt: %w: empty ciphertext", hal.ErrInvalidParam)
	}
	if len(plaintext) < len(ciphertext) {
		return 0, fmt.Errorf("aes-gcm decrypt: %w: need %d bytes", hal.ErrBufferTooSmall, len(ciphertext))
	}

	pt, err := e.open(key, iv, aad, ciphertext, tag)
	if err != nil {
		return 0, fmt.Errorf("aes-gcm decrypt: %w", err)
	}
	copy(plaintext, pt)
	return len(pt), nil
}

// Sum256 digests data with whichever SHA-256 implementation the capability
// probe selected. There is no mid-call fallback: a hardware digest fault is
// surfaced, not silently recomputed.
func (e *Engine) Sum256(data []byte) ([sha256.Size]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var zero [sha256.Size]byte

	if !e.ready {
		return zero, fmt.Errorf("sha256: %w", hal.ErrNotInitialized)
	}
	if data == nil {
		return zero, fmt.Errorf("sha256: %w: nil data", hal.ErrInvalidParam)
	}

	if e.caps.HasSHA {
		sum, err := e.backend.Sum256(data)
		if err != nil {
			return zero, fmt.Errorf("sha256: %w: %v", hal.ErrHardwareFault, err)
		}
		return sum, nil
	}
	return sha256.Sum256(data), nil
}

// selfTestVector is the SHA-256 known-answer input.
var selfTestVector = []byte("abc")

// selfTestDigest is SHA-256("abc").
var selfTestDigest = [sha256.Size]byte{
	0xba, 0x78, 0x16, 0xbf, 0x8f, 0x01, 0xcf, 0xea,
	0x41, 0x41, 0x40, 0xde, 0x5d, 0xae, 0x22, 0x23,
	0xb0, 0x03, 0x61, 0xa3, 0x96, 0x17, 0x7a, 0x9c,
	0xb4, 0x10, 0xff, 0x61, 0xf2, 0x00, 0x15, 0xad,
}

// SelfTest exercises random generation, an AES-GCM round trip and a SHA-256
// known-answer check in sequence, returning the first failure. It doubles as
// the startup health check.
func (e *Engine) SelfTest() error {
	buf := make([]byte, 32)
	if err := e.RandomBytes(buf); err != nil {
		return fmt.Errorf("self-test rng: %w", err)
	}

	var (
		key   [16]byte
		nonce [NonceSize]byte
		ct    = make([]byte, len(buf))
		tag   = make([]byte, MaxTagSize)
		pt    = make([]byte, len(buf))
	)

	n, err := e.EncryptAESGCM(key[:], nonce[:], nil, buf, ct, tag)
	if err != nil {
		return fmt.Errorf("self-test encrypt: %w", err)
	}
	if _, err = e.DecryptAESGCM(key[:], nonce[:], nil, ct[:n], tag, pt); err != nil {
		return fmt.Errorf("self-test decrypt: %w", err)
	}
	if !bytes.Equal(pt, buf) {
		return fmt.Errorf("self-test: %w: round trip mismatch", hal.ErrHardwareFault)
	}

	sum, err := e.Sum256(selfTestVector)
	if err != nil {
		return fmt.Errorf("self-test sha256: %w", err)
	}
	if sum != selfTestDigest {
		return fmt.Errorf("self-test: %w: sha256 known answer mismatch", hal.ErrHardwareFault)
	}

	return nil
}

// validateAEADParams enforces the length invariants before any key material
// touches hardware state, returning the canonical 12-byte nonce.
func validateAEADParams(key, nonce, tag []byte) ([]byte, error) {
	if key == nil || nonce == nil || tag == nil {
		return nil, fmt.Errorf("%w: nil argument", hal.ErrInvalidParam)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bytes", hal.ErrInvalidKey, len(key))
	}
	if len(nonce) < MinNonceSize {
		return nil, fmt.Errorf("%w: nonce too short (%d bytes)", hal.ErrInvalidParam, len(nonce))
	}
	if len(tag) < MinTagSize || len(tag) > MaxTagSize {
		return nil, fmt.Errorf("%w: tag length %d", hal.ErrInvalidParam, len(tag))
	}

	iv := make([]byte, NonceSize)
	copy(iv, nonce)
	return iv, nil
}

// seal runs AES-GCM encryption, preferring the claimed hardware session and
// falling back to the software cipher on any session fault.
func (e *Engine) seal(key, iv, aad, plaintext []byte, tagLen int) (ct, tag []byte, err error) {
	if e.caps.HasAES {
		s, err := e.backend.NewBlock(key)
		switch {
		case err == nil:
			ct, tag, err = sealBlock(s.Block(), iv, aad, plaintext, tagLen)
			fault := s.Err()
			if cerr := s.Close(); cerr != nil && fault == nil {
				fault = cerr
			}
			if err == nil && fault == nil {
				return ct, tag, nil
			}
			if fault == nil {
				fault = err
			}
			klog.Warningf("crypto: hardware AES encrypt failed (%v), falling back to software", fault)
		case errors.Is(err, hal.ErrNotPresent):
			// Key length the accelerator cannot serve.
		default:
			klog.Warningf("crypto: hardware AES session unavailable (%v), falling back to software", err)
		}
	}

	block, err := softBlock(key)
	if err != nil {
		return nil, nil, err
	}
	return sealBlock(block, iv, aad, plaintext, tagLen)
}

// open runs AES-GCM decryption with the same fallback ladder as seal, except
// that an authentication failure is final: it is the security-relevant
// outcome, not a transient fault.
func (e *Engine) open(key, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	if e.caps.HasAES {
		s, err := e.backend.NewBlock(key)
		switch {
		case err == nil:
			pt, err := openBlock(s.Block(), iv, aad, ciphertext, tag)
			fault := s.Err()
			if cerr := s.Close(); cerr != nil && fault == nil {
				fault = cerr
			}
			if fault == nil {
				// Includes ErrAuthenticationFailed: a verified
				// hardware computation that rejects the tag is
				// a genuine mismatch, not a fault.
				return pt, err
			}
			klog.Warningf("crypto: hardware AES decrypt failed (%v), falling back to software", fault)
		case errors.Is(err, hal.ErrNotPresent):
		default:
			klog.Warningf("crypto: hardware AES session unavailable (%v), falling back to software", err)
		}
	}

	block, err := softBlock(key)
	if err != nil {
		return nil, err
	}
	return openBlock(block, iv, aad, ciphertext, tag)
}
