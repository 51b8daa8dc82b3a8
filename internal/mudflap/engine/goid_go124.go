// Copyright 2025 The racedetector Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build go1.24 && !go1.25 && (amd64 || arm64)

package engine

// goidOffset is the offset of g.goid in Go 1.24, where gobuf holds seven
// words (sp, pc, g, ctxt, ret, lr, bp):
//
//	stack 0, stackguard0 16, stackguard1 24, _panic 32, _defer 40, m 48,
//	sched 56, syscallsp 112, syscallpc 120, syscallbp 128, stktopsp 136,
//	param 144, atomicstatus 152, stackLock 156, goid 160
const goidOffset = 160
