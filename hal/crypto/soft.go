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
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"

	"github.com/shahern004/crusty-core/hal"
)

// softBlock is the software cipher used by the simulation backend and as the
// hardware fallback path.
func softBlock(key []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hal.ErrInvalidKey, err)
	}
	return block, nil
}

// sealBlock runs GCM over the given AES core. Tag lengths below the stdlib
// GCM minimum are produced by truncating the full tag, which is the standard
// GCM short-tag construction.
func sealBlock(block cipher.Block, iv, aad, plaintext []byte, tagLen int) (ct, tag []byte, err error) {
	if tagLen >= 12 {
		g, err := cipher.NewGCMWithTagSize(block, tagLen)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", hal.ErrInvalidParam, err)
		}
		out := g.Seal(nil, iv, plaintext, aad)
		return out[:len(plaintext)], out[len(plaintext):], nil
	}

	g, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", hal.ErrInvalidParam, err)
	}
	out := g.Seal(nil, iv, plaintext, aad)
	return out[:len(plaintext)], out[len(plaintext) : len(plaintext)+tagLen], nil
}

// openBlock authenticates and decrypts, mapping a tag mismatch to
// ErrAuthenticationFailed.
func openBlock(block cipher.Block, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) >= 12 {
		g, err := cipher.NewGCMWithTagSize(block, len(tag))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", hal.ErrInvalidParam, err)
		}
		in := make([]byte, 0, len(ciphertext)+len(tag))
		in = append(in, ciphertext...)
		in = append(in, tag...)
		pt, err := g.Open(nil, iv, in, aad)
		if err != nil {
			return nil, hal.ErrAuthenticationFailed
		}
		return pt, nil
	}
	return openShortTag(block, iv, aad, ciphertext, tag)
}

// openShortTag handles tag lengths below the stdlib GCM minimum. The GCM
// payload keystream begins at counter block iv||2, so the candidate
// plaintext is recovered with CTR at that offset and re-sealed to recompute
// the full tag; the truncated tags are then compared in constant time. No
// plaintext is released on mismatch.
func openShortTag(block cipher.Block, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	ctr := make([]byte, aes.BlockSize)
	copy(ctr, iv)
	ctr[aes.BlockSize-1] = 2

	pt := make([]byte, len(ciphertext))
	cipher.NewCTR(block, ctr).XORKeyStream(pt, ciphertext)

	g, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hal.ErrInvalidParam, err)
	}
	full := g.Seal(nil, iv, pt, aad)
	fullTag := full[len(pt):]

	ctOK := subtle.ConstantTimeCompare(full[:len(pt)], ciphertext)
	tagOK := subtle.ConstantTimeCompare(fullTag[:len(tag)], tag)
	if ctOK&tagOK != 1 {
		for i := range pt {
			pt[i] = 0
		}
		return nil, hal.ErrAuthenticationFailed
	}
	return pt, nil
}
