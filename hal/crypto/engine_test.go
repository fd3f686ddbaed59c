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
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shahern004/crusty-core/hal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e := New(NewSimBackend())
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	plaintext := []byte("files are encrypted a block at a time")
	aad := []byte("header-v1")

	for _, keyLen := range []int{16, 24, 32} {
		for _, nonceLen := range []int{8, 12, 16} {
			for _, tagLen := range []int{4, 8, 12, 13, 16} {
				name := fmt.Sprintf("key%d/nonce%d/tag%d", keyLen, nonceLen, tagLen)
				t.Run(name, func(t *testing.T) {
					key := make([]byte, keyLen)
					nonce := make([]byte, nonceLen)
					if err := e.RandomBytes(key); err != nil {
						t.Fatalf("RandomBytes: %v", err)
					}
					if err := e.RandomBytes(nonce); err != nil {
						t.Fatalf("RandomBytes: %v", err)
					}

					ct := make([]byte, len(plaintext))
					tag := make([]byte, tagLen)

					n, err := e.EncryptAESGCM(key, nonce, aad, plaintext, ct, tag)
					if err != nil {
						t.Fatalf("EncryptAESGCM: %v", err)
					}
					if n != len(plaintext) {
						t.Fatalf("EncryptAESGCM wrote %d bytes, want %d", n, len(plaintext))
					}
					if bytes.Equal(ct, plaintext) {
						t.Fatal("ciphertext equals plaintext")
					}

					pt := make([]byte, len(ct))
					n, err = e.DecryptAESGCM(key, nonce, aad, ct, tag, pt)
					if err != nil {
						t.Fatalf("DecryptAESGCM: %v", err)
					}
					if diff := cmp.Diff(plaintext, pt[:n]); diff != "" {
						t.Fatalf("round trip diff (-want +got):\n%s", diff)
					}
				})
			}
		}
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	e := newTestEngine(t)

	key := make([]byte, 16)
	nonce := make([]byte, 12)
	plaintext := []byte("integrity protected payload")

	for _, tagLen := range []int{4, 8, 16} {
		for _, tamper := range []string{"ciphertext", "tag"} {
			t.Run(fmt.Sprintf("tag%d/%s", tagLen, tamper), func(t *testing.T) {
				ct := make([]byte, len(plaintext))
				tag := make([]byte, tagLen)

				if _, err := e.EncryptAESGCM(key, nonce, nil, plaintext, ct, tag); err != nil {
					t.Fatalf("EncryptAESGCM: %v", err)
				}

				if tamper == "ciphertext" {
					ct[len(ct)/2] ^= 0x01
				} else {
					tag[0] ^= 0x01
				}

				pt := make([]byte, len(ct))
				_, err := e.DecryptAESGCM(key, nonce, nil, ct, tag, pt)
				if !errors.Is(err, hal.ErrAuthenticationFailed) {
					t.Fatalf("DecryptAESGCM err = %v, want ErrAuthenticationFailed", err)
				}
			})
		}
	}
}

func TestDecryptRejectsWrongAAD(t *testing.T) {
	e := newTestEngine(t)

	key := make([]byte, 32)
	nonce := make([]byte, 12)
	plaintext := []byte("bound to additional data")

	ct := make([]byte, len(plaintext))
	tag := make([]byte, 16)

	if _, err := e.EncryptAESGCM(key, nonce, []byte("context-a"), plaintext, ct, tag); err != nil {
		t.Fatalf("EncryptAESGCM: %v", err)
	}

	pt := make([]byte, len(ct))
	_, err := e.DecryptAESGCM(key, nonce, []byte("context-b"), ct, tag, pt)
	if !errors.Is(err, hal.ErrAuthenticationFailed) {
		t.Fatalf("DecryptAESGCM err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestAEADParamValidation(t *testing.T) {
	e := newTestEngine(t)

	var (
		key   = make([]byte, 16)
		nonce = make([]byte, 12)
		pt    = []byte("x")
		ct    = make([]byte, 1)
		tag   = make([]byte, 16)
	)

	for _, tc := range []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "bad key length",
			run: func() error {
				_, err := e.EncryptAESGCM(make([]byte, 17), nonce, nil, pt, ct, tag)
				return err
			},
			want: hal.ErrInvalidKey,
		},
		{
			name: "short nonce",
			run: func() error {
				_, err := e.EncryptAESGCM(key, make([]byte, 7), nil, pt, ct, tag)
				return err
			},
			want: hal.ErrInvalidParam,
		},
		{
			name: "short tag",
			run: func() error {
				_, err := e.EncryptAESGCM(key, nonce, nil, pt, ct, make([]byte, 3))
				return err
			},
			want: hal.ErrInvalidParam,
		},
		{
			name: "long tag",
			run: func() error {
				_, err := e.EncryptAESGCM(key, nonce, nil, pt, ct, make([]byte, 17))
				return err
			},
			want: hal.ErrInvalidParam,
		},
		{
			name: "empty plaintext",
			run: func() error {
				_, err := e.EncryptAESGCM(key, nonce, nil, nil, ct, tag)
				return err
			},
			want: hal.ErrInvalidParam,
		},
		{
			name: "ciphertext buffer too small",
			run: func() error {
				_, err := e.EncryptAESGCM(key, nonce, nil, []byte("four"), make([]byte, 3), tag)
				return err
			},
			want: hal.ErrBufferTooSmall,
		},
		{
			name: "plaintext buffer too small",
			run: func() error {
				_, err := e.DecryptAESGCM(key, nonce, nil, []byte("four"), tag, make([]byte, 3))
				return err
			},
			want: hal.ErrBufferTooSmall,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBufferTooSmallWritesNothing(t *testing.T) {
	e := newTestEngine(t)

	ct := []byte{0xaa, 0xbb, 0xcc}
	want := append([]byte(nil), ct...)

	_, err := e.EncryptAESGCM(make([]byte, 16), make([]byte, 12), nil, []byte("four"), ct, make([]byte, 16))
	if !errors.Is(err, hal.ErrBufferTooSmall) {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
	if diff := cmp.Diff(want, ct); diff != "" {
		t.Fatalf("undersized buffer modified (-want +got):\n%s", diff)
	}
}

func TestNonceCanonicalization(t *testing.T) {
	e := newTestEngine(t)

	key := make([]byte, 16)
	plaintext := []byte("padded nonce")

	// An 8-byte nonce is zero padded to 12; encrypting with the padded
	// form must produce the identical ciphertext.
	short := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	padded := append(append([]byte(nil), short...), 0, 0, 0, 0)

	ct1 := make([]byte, len(plaintext))
	ct2 := make([]byte, len(plaintext))
	tag1 := make([]byte, 16)
	tag2 := make([]byte, 16)

	if _, err := e.EncryptAESGCM(key, short, nil, plaintext, ct1, tag1); err != nil {
		t.Fatalf("EncryptAESGCM short nonce: %v", err)
	}
	if _, err := e.EncryptAESGCM(key, padded, nil, plaintext, ct2, tag2); err != nil {
		t.Fatalf("EncryptAESGCM padded nonce: %v", err)
	}

	if !bytes.Equal(ct1, ct2) || !bytes.Equal(tag1, tag2) {
		t.Fatal("short nonce and zero-padded nonce disagree")
	}
}

func TestRandomBytes(t *testing.T) {
	e := newTestEngine(t)

	if err := e.RandomBytes(nil); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("RandomBytes(nil) err = %v, want ErrInvalidParam", err)
	}
	if err := e.RandomBytes([]byte{}); err != nil {
		t.Fatalf("RandomBytes(empty) err = %v, want nil", err)
	}

	a := make([]byte, 32)
	b := make([]byte, 32)
	if err := e.RandomBytes(a); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if err := e.RandomBytes(b); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("successive reads returned identical output")
	}
}

func TestSimRandomnessIsReproducible(t *testing.T) {
	e1 := New(NewSeededSimBackend(0xcafe))
	e2 := New(NewSeededSimBackend(0xcafe))
	if err := e1.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := e2.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	a := make([]byte, 64)
	b := make([]byte, 64)
	if err := e1.RandomBytes(a); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if err := e2.RandomBytes(b); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed produced different streams (-a +b):\n%s", diff)
	}
}

func TestSum256(t *testing.T) {
	e := newTestEngine(t)

	sum, err := e.Sum256([]byte("abc"))
	if err != nil {
		t.Fatalf("Sum256: %v", err)
	}
	if sum != sha256.Sum256([]byte("abc")) {
		t.Fatal("Sum256 disagrees with the reference digest")
	}

	if _, err := e.Sum256(nil); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("Sum256(nil) err = %v, want ErrInvalidParam", err)
	}
}

func TestOperationsRequireInit(t *testing.T) {
	e := New(NewSimBackend())

	if _, err := e.Capabilities(); !errors.Is(err, hal.ErrNotInitialized) {
		t.Fatalf("Capabilities err = %v, want ErrNotInitialized", err)
	}
	if err := e.RandomBytes(make([]byte, 1)); !errors.Is(err, hal.ErrNotInitialized) {
		t.Fatalf("RandomBytes err = %v, want ErrNotInitialized", err)
	}
	if _, err := e.Sum256([]byte("x")); !errors.Is(err, hal.ErrNotInitialized) {
		t.Fatalf("Sum256 err = %v, want ErrNotInitialized", err)
	}

	ct := make([]byte, 1)
	tag := make([]byte, 16)
	if _, err := e.EncryptAESGCM(make([]byte, 16), make([]byte, 12), nil, []byte("x"), ct, tag); !errors.Is(err, hal.ErrNotInitialized) {
		t.Fatalf("EncryptAESGCM err = %v, want ErrNotInitialized", err)
	}
}

func TestInitTwiceFails(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Init(); !errors.Is(err, hal.ErrInvalidParam) {
		t.Fatalf("second Init err = %v, want ErrInvalidParam", err)
	}
}

func TestSelfTest(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SelfTest(); err != nil {
		t.Fatalf("SelfTest: %v", err)
	}
}
