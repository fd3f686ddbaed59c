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

//go:build !tamago
// +build !tamago

package board

// Default returns the descriptor for the emulated development board: three
// LEDs, one user button and a single simulated console channel.
func Default() Config {
	return Config{
		Name: "sim",
		LEDs: [LEDCount]LED{
			{Index: 0, Name: "red", Present: true},
			{Index: 1, Name: "green", Present: true},
			{Index: 2, Name: "blue", Present: true},
		},
		HasButton: true,
		Console: UART{
			Device: "UART_0",
			Baud:   115200,
		},
	}
}
