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

package main

import (
	"bytes"
	"io"
	"sync"
)

const outputLimit = 1024

// lineBuffer batches log writes into whole lines before they reach the
// console, so log output does not interleave with shell responses sharing
// the same serial line.
type lineBuffer struct {
	sync.Mutex
	out io.Writer
	buf bytes.Buffer
}

func newLineBuffer(out io.Writer) *lineBuffer {
	return &lineBuffer{out: out}
}

func (l *lineBuffer) Write(p []byte) (int, error) {
	l.Lock()
	defer l.Unlock()

	for _, c := range p {
		l.buf.WriteByte(c)

		if c == '\n' || l.buf.Len() > outputLimit {
			if _, err := l.out.Write(l.buf.Bytes()); err != nil {
				return 0, err
			}
			l.buf.Reset()
		}
	}

	return len(p), nil
}
