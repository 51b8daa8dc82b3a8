// Copyright 2025 The racedetector Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build go1.25 && !go1.26 && (amd64 || arm64)

package engine

// goidOffset is the offset of g.goid in Go 1.25, where gobuf lost its ret
// word and shrank to 48 bytes.
const goidOffset = 152
