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

//go:build tamago
// +build tamago

package board

import (
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
)

// Default returns the descriptor for the USB armory Mk II. The board
// populates two of the three LED positions (blue, white) and has no user
// button, which exercises the absent-peripheral paths on real silicon.
func Default() Config {
	return Config{
		Name: "usbarmory-mk2",
		LEDs: [LEDCount]LED{
			{Index: 0, Name: "blue", Present: true},
			{Index: 1, Name: "white", Present: true},
			{Index: 2, Name: "", Present: false},
		},
		HasButton: false,
		Console: UART{
			Device: "UART2",
			Baud:   115200,
			IRQ:    imx6ul.UART2.IRQ,
		},
	}
}
