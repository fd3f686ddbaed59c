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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDRBGIsDeterministic(t *testing.T) {
	seed := []byte("drbg determinism seed")

	a := make([]byte, 128)
	b := make([]byte, 128)

	if err := NewDRBG(seed).Read(a); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := NewDRBG(seed).Read(b); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed produced different streams (-a +b):\n%s", diff)
	}
}

func TestDRBGSeedsDiffer(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)

	if err := NewDRBG([]byte("seed-a")).Read(a); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := NewDRBG([]byte("seed-b")).Read(b); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if bytes.Equal(a, b) {
		t.Fatal("different seeds produced identical streams")
	}
}

func TestDRBGReadsAcrossEpochs(t *testing.T) {
	d := NewDRBG([]byte("epoch seed"))

	// Larger than one HKDF expansion epoch, so the generator must ratchet
	// mid-read.
	big := make([]byte, maxEpoch+1024)
	if err := d.Read(big); err != nil {
		t.Fatalf("Read: %v", err)
	}

	var zero [64]byte
	if bytes.Equal(big[maxEpoch:maxEpoch+64], zero[:]) {
		t.Fatal("output after the epoch boundary is all zeros")
	}
}

func TestDRBGManySmallReads(t *testing.T) {
	d := NewDRBG([]byte("small reads"))

	// Enough 64-byte reads to cross several epochs.
	buf := make([]byte, 64)
	for i := 0; i < 3*maxEpoch/len(buf); i++ {
		if err := d.Read(buf); err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
	}
}

func TestDRBGReseedChangesOutput(t *testing.T) {
	seed := []byte("reseed test")

	d1 := NewDRBG(seed)
	d2 := NewDRBG(seed)

	d2.Reseed([]byte("fresh entropy"))

	a := make([]byte, 64)
	b := make([]byte, 64)
	if err := d1.Read(a); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := d2.Read(b); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if bytes.Equal(a, b) {
		t.Fatal("reseeded generator repeated the original stream")
	}
}
