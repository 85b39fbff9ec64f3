// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

func newSHA384() hash.Hash { return sha512.New384() }
func newSHA1() hash.Hash   { return sha1.New() }

// pHash implements P_hash(secret, seed) = HMAC(secret, A(1) || seed) ||
// HMAC(secret, A(2) || seed) || ..., A(0) = seed, A(i) = HMAC(secret,
// A(i-1)) — spec §4.2 — truncated to len(result).
func pHash(result []byte, secret, seed []byte, hashFunc func() hash.Hash) {
	h := hmac.New(hashFunc, secret)
	h.Write(seed)
	a := h.Sum(nil)

	j := 0
	for j < len(result) {
		h.Reset()
		h.Write(a)
		h.Write(seed)
		b := h.Sum(nil)
		copy(result[j:], b)
		j += len(b)

		h.Reset()
		h.Write(a)
		a = h.Sum(nil)
	}
}

// PRF computes PRF(secret, label, seed, n) = P_hash(secret, label||seed)
// truncated to n bytes — spec §4.2. hashFunc is sha256.New or
// newSHA384 depending on the negotiated ciphersuite's PRF hash.
func PRF(hashFunc func() hash.Hash, secret []byte, label string, seed []byte, n int) []byte {
	labelAndSeed := make([]byte, len(label)+len(seed))
	copy(labelAndSeed, label)
	copy(labelAndSeed[len(label):], seed)

	result := make([]byte, n)
	pHash(result, secret, labelAndSeed, hashFunc)
	return result
}

const (
	masterSecretLength   = 48
	finishedVerifyLength = 12
)

var masterSecretLabel = "master secret"
var keyExpansionLabel = "key expansion"
var clientFinishedLabel = "client finished"
var serverFinishedLabel = "server finished"

// masterFromPreMasterSecret derives the 48-byte MasterSecret — spec
// §4.5 "MasterSecret derivation".
func masterFromPreMasterSecret(hashFunc func() hash.Hash, preMasterSecret, clientRandom, serverRandom []byte) []byte {
	seed := make([]byte, 0, len(clientRandom)+len(serverRandom))
	seed = append(seed, clientRandom...)
	seed = append(seed, serverRandom...)
	return PRF(hashFunc, preMasterSecret, masterSecretLabel, seed, masterSecretLength)
}

// keysFromMasterSecret derives the key_block and partitions it per spec
// §4.5 "Key expansion": client_mac||server_mac||client_key||server_key||
// client_iv||server_iv.
func keysFromMasterSecret(hashFunc func() hash.Hash, masterSecret, clientRandom, serverRandom []byte, macLen, keyLen, ivLen int) (clientMAC, serverMAC, clientKey, serverKey, clientIV, serverIV []byte) {
	seed := make([]byte, 0, len(serverRandom)+len(clientRandom))
	seed = append(seed, serverRandom...)
	seed = append(seed, clientRandom...)

	n := 2*macLen + 2*keyLen + 2*ivLen
	keyBlock := PRF(hashFunc, masterSecret, keyExpansionLabel, seed, n)

	clientMAC = keyBlock[:macLen]
	keyBlock = keyBlock[macLen:]
	serverMAC = keyBlock[:macLen]
	keyBlock = keyBlock[macLen:]
	clientKey = keyBlock[:keyLen]
	keyBlock = keyBlock[keyLen:]
	serverKey = keyBlock[:keyLen]
	keyBlock = keyBlock[keyLen:]
	clientIV = keyBlock[:ivLen]
	keyBlock = keyBlock[ivLen:]
	serverIV = keyBlock[:ivLen]
	return
}

// finishedHash accumulates the handshake transcript. Because neither
// sha256.Hash nor sha512.Hash (used for SHA-384) exposes a clone API, two
// parallel instances per hash family are kept so the client-Finished
// transcript (hash1, finalised just before the client sends its Finished)
// can diverge from the server-Finished transcript (hash2, which also
// absorbs the client's own Finished message) — spec §3 HandshakeData and
// §9 Design Notes "Transcript hash duplication".
type finishedHash struct {
	hash1Sha256, hash2Sha256 hash.Hash
	hash1Sha384, hash2Sha384 hash.Hash
	sha1                     hash.Hash // CertificateVerify transcript, signed with an RSA or ECDSA key

	prfHash   func() hash.Hash
	isSHA384  bool

	masterSecret []byte
}

func newFinishedHash(prfHashFunc func() hash.Hash, isSHA384 bool) finishedHash {
	return finishedHash{
		hash1Sha256: sha256.New(),
		hash2Sha256: sha256.New(),
		hash1Sha384: newSHA384(),
		hash2Sha384: newSHA384(),
		sha1:        newSHA1(),
		prfHash:     prfHashFunc,
		isSHA384:    isSHA384,
	}
}

// Write feeds one marshalled handshake message into every transcript that
// is still live. Call discardUnusedFamily to narrow to the negotiated
// family once ServerHello fixes the PRF hash.
func (h *finishedHash) Write(msg []byte) (int, error) {
	if h.hash1Sha256 != nil {
		h.hash1Sha256.Write(msg)
		h.hash2Sha256.Write(msg)
	}
	if h.hash1Sha384 != nil {
		h.hash1Sha384.Write(msg)
		h.hash2Sha384.Write(msg)
	}
	h.sha1.Write(msg)
	return len(msg), nil
}

// writeServerOnly feeds a message into hash2 (the server-Finished
// transcript) only — used for the client's own Finished message, which
// must not appear in hash1 (§3: "they must diverge after the client
// Finished message is hashed into hash2 but not hash1").
func (h *finishedHash) writeServerOnly(msg []byte) {
	if h.hash2Sha256 != nil {
		h.hash2Sha256.Write(msg)
	}
	if h.hash2Sha384 != nil {
		h.hash2Sha384.Write(msg)
	}
}

func (h *finishedHash) hashForPRF() (current, server hash.Hash) {
	if h.isSHA384 {
		return h.hash1Sha384, h.hash2Sha384
	}
	return h.hash1Sha256, h.hash2Sha256
}

// clientSum computes the client's verify_data: PRF(masterSecret, "client
// finished", hash1, 12) — spec §4.5 "Finished". Must be called before the
// client's own Finished message is written into hash1.
func (h *finishedHash) clientSum(masterSecret []byte) []byte {
	cur, _ := h.hashForPRF()
	seed := cur.Sum(nil)
	return PRF(h.prfHash, masterSecret, clientFinishedLabel, seed, finishedVerifyLength)
}

// serverSum computes the expected server verify_data over hash2, which by
// this point has also absorbed the client's own Finished message.
func (h *finishedHash) serverSum(masterSecret []byte) []byte {
	_, srv := h.hashForPRF()
	seed := srv.Sum(nil)
	return PRF(h.prfHash, masterSecret, serverFinishedLabel, seed, finishedVerifyLength)
}

// certificateVerifySum returns the SHA-1 transcript up to (not including)
// the CertificateVerify message itself — spec §4.5 "CertificateVerify".
func (h *finishedHash) certificateVerifySum() []byte {
	return h.sha1.Sum(nil)
}

// discardUnusedFamily drops the transcript hash family the negotiated
// suite did not select, per Design Notes "Transcript hash duplication":
// "The unused ones are released once ServerHello fixes the PRF hash."
func (h *finishedHash) discardUnusedFamily() {
	if h.isSHA384 {
		h.hash1Sha256 = nil
		h.hash2Sha256 = nil
	} else {
		h.hash1Sha384 = nil
		h.hash2Sha384 = nil
	}
}
