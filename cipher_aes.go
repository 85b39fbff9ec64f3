// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto/aes"
	"crypto/cipher"

	"gitlab.com/yawning/bsaes.git"
)

// newAESBlock returns the block cipher used for AES-GCM. GCM's own CTR
// construction is already constant-time in Go's assembly-optimised
// implementation, so the hardware-accelerated stdlib block cipher is used
// here directly.
func newAESBlock(key []byte) (cipher.Block, error) {
	return aes.NewCipher(key)
}

// newConstantTimeAESBlock returns a software AES implementation whose
// table lookups do not depend on secret data, used for CBC mode where a
// naive table-driven AES (as produced by crypto/aes on platforms lacking
// AES-NI) leaks key bits through cache-timing — the same reasoning the
// teacher vendors gitlab.com/yawning/bsaes.git for.
func newConstantTimeAESBlock(key []byte) (cipher.Block, error) {
	return bsaes.NewCipher(key)
}

// cipherAES is the AES-CBC primitive adapter (C1): explicit IV, no
// padding (padding is handled one layer up by the record codec, per spec
// §4.3), matching the block-cipher slot in the cipherSuite table.
func cipherAES(key, iv []byte, isRead bool) interface{} {
	block, err := newConstantTimeAESBlock(key)
	if err != nil {
		panic(err)
	}
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

