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

// Package hal defines the error taxonomy shared by all hardware abstraction
// subsystems. Errors are sentinels intended for errors.Is comparison; callers
// receive them wrapped with per-operation context.
package hal

import "errors"

var (
	// ErrNotInitialized is returned when a subsystem operation is invoked
	// before its Init.
	ErrNotInitialized = errors.New("not initialized")

	// ErrInvalidParam covers nil, zero-length or otherwise malformed input.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrInvalidKey is returned for key lengths other than 16, 24 or 32
	// bytes.
	ErrInvalidKey = errors.New("invalid key length")

	// ErrBufferTooSmall is returned when a caller-supplied output buffer
	// cannot hold the result. The buffer is left untouched.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrAuthenticationFailed is returned on AEAD tag mismatch. It signals
	// tampering and is never folded into a generic decryption failure.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrHardwareFault indicates an accelerator or device error. Where a
	// software path exists the fault is handled by falling back to it.
	ErrHardwareFault = errors.New("hardware fault")

	// ErrNotPresent is returned when a peripheral (LED, button, UART) does
	// not exist on the current board. Absence is a valid state for
	// readiness queries and an error only when the peripheral is driven.
	ErrNotPresent = errors.New("peripheral not present")

	// ErrNoFreeSlots is returned when the secure allocation table is full.
	ErrNoFreeSlots = errors.New("no free allocation slots")

	// ErrOutOfMemory is returned when the secure arena or underlying
	// region cannot satisfy an aligned request.
	ErrOutOfMemory = errors.New("out of secure memory")

	// ErrTimeout is returned by time-bounded UART operations.
	ErrTimeout = errors.New("timeout")

	// ErrRNGFailure is returned when no entropy source, hardware or
	// software, can satisfy a request.
	ErrRNGFailure = errors.New("entropy source failure")
)
