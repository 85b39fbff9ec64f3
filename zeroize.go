// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

// zero overwrites b in place. Used on PreMasterSecret, MasterSecret, and
// the derived key_block as soon as each has served its purpose — spec §5
// "Resource discipline".
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// zeroAll is zero applied to a whole set of key-material slices at once,
// for the handful of call sites that retire several at the same point
// (cipher adoption, teardown).
func zeroAll(bs ...[]byte) {
	for _, b := range bs {
		zero(b)
	}
}
