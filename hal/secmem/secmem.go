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

// Package secmem manages typed memory regions with access permissions and a
// bounded secure allocator. On hardware the regions map onto protected
// extents carved out of a reserved DMA area; in simulation an in-process
// arena stands in for secure memory with no enforcement. Either way the
// region state machine, the fixed allocation table and the sanitization
// discipline are identical.
package secmem

import "fmt"

// RegionType identifies one of the process-lifetime protection regions.
type RegionType int

const (
	SecureData RegionType = iota
	CryptoBuffer
	Code
	Peripheral

	regionCount
)

func (t RegionType) String() string {
	switch t {
	case SecureData:
		return "secure-data"
	case CryptoBuffer:
		return "crypto-buffer"
	case Code:
		return "code"
	case Peripheral:
		return "peripheral"
	default:
		return fmt.Sprintf("region(%d)", int(t))
	}
}

// Permission is a region access permission.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
	ReadExecute
	NoAccess
)

func (p Permission) String() string {
	switch p {
	case ReadOnly:
		return "ro"
	case ReadWrite:
		return "rw"
	case ReadExecute:
		return "rx"
	case NoAccess:
		return "none"
	default:
		return fmt.Sprintf("perm(%d)", int(p))
	}
}

// Region is one protection region descriptor. Descriptors are created at
// Init, their permission is changed only through ConfigureRegion, and they
// are never destroyed.
type Region struct {
	Type       RegionType
	Base       uintptr
	Size       int
	Perm       Permission
	Configured bool
}

// Backend is the platform seam for region programming and secure storage.
type Backend interface {
	// Regions returns the platform's region table with initial
	// permissions. Called once from Init.
	Regions() ([]Region, error)

	// Apply programs a single region. The manager only calls it with the
	// protection unit disabled.
	Apply(Region) error

	// Enable and Disable gate the protection unit. The manager brackets
	// Enable with Barrier calls to guarantee ordering.
	Enable() error
	Disable() error

	// Barrier orders memory operations around protection changes and
	// sanitization.
	Barrier()

	// Alloc claims size bytes aligned to align from the secure pool,
	// returning the range's address and backing bytes.
	Alloc(size, align int) (uintptr, []byte, error)

	// Free returns an allocation to the pool. The simulation arena is a
	// bump allocator and reclaims nothing; the hardware pool releases
	// the range.
	Free(addr uintptr, buf []byte) error
}
