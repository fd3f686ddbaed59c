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
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/hkdf"

	"k8s.io/klog/v2"
)

// drbgInfo labels the HKDF expansion domain.
var drbgInfo = []byte("crusty-core drbg v1")

// DRBG is the software deterministic random bit generator used when the
// hardware entropy source fails. Output is an HKDF-SHA256 expansion of the
// seed; the seed ratchets forward whenever an expansion epoch is exhausted,
// so reads of any length succeed.
type DRBG struct {
	mu    sync.Mutex
	seed  []byte
	epoch uint64
	r     interface{ Read([]byte) (int, error) }
}

// NewDRBG returns a generator expanded from seed.
func NewDRBG(seed []byte) *DRBG {
	d := &DRBG{seed: append([]byte(nil), seed...)}
	d.r = hkdf.New(sha256.New, d.seed, nil, drbgInfo)
	return d
}

// maxEpoch is the HKDF expansion limit of 255 blocks; requests are chunked
// below it so a fresh epoch can always serve one whole chunk.
const maxEpoch = 255 * sha256.Size

// Read fills b with generator output.
func (d *DRBG) Read(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for filled := 0; filled < len(b); {
		chunk := len(b) - filled
		if chunk > maxEpoch {
			chunk = maxEpoch
		}

		n, err := d.r.Read(b[filled : filled+chunk])
		filled += n
		if err != nil {
			// Epoch exhausted.
			d.ratchet()
		} else if n == 0 {
			return fmt.Errorf("drbg stalled at %d/%d bytes", filled, len(b))
		}
	}
	return nil
}

// Reseed folds fresh entropy into the generator state.
func (d *DRBG) Reseed(entropy []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mix := sha256.Sum256(append(append([]byte(nil), d.seed...), entropy...))
	d.seed = mix[:]
	d.epoch = 0
	d.r = hkdf.New(sha256.New, d.seed, nil, drbgInfo)
	klog.V(2).Info("crypto: drbg reseeded")
}

func (d *DRBG) ratchet() {
	d.epoch++

	var c [8]byte
	binary.BigEndian.PutUint64(c[:], d.epoch)

	next := sha256.Sum256(append(append([]byte(nil), d.seed...), c[:]...))
	d.seed = next[:]
	d.r = hkdf.New(sha256.New, d.seed, c[:], drbgInfo)
}
