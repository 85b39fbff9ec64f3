// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/chacha20poly1305"
)

// a keyAgreement drives the client side of a TLS 1.2 key-exchange
// protocol. Only the client-side methods of the crypto/tls lineage's
// interface are declared; there are no server-side methods.
type keyAgreement interface {
	// processServerKeyExchange validates and records the parameters (and
	// their signature) carried by an optional ServerKeyExchange message.
	// skx is nil when the suite doesn't use one (RSA, static ECDH).
	processServerKeyExchange(config *Config, hello *clientHelloMsg, serverHello *serverHelloMsg, cert *certificateChain, skx *serverKeyExchangeMsg) error

	// generateClientKeyExchange produces the PreMasterSecret and the
	// ClientKeyExchange message body to send.
	generateClientKeyExchange(config *Config, hello *clientHelloMsg, cert *certificateChain) (preMasterSecret []byte, ckx *clientKeyExchangeMsg, err error)
}

const (
	suiteECDHE = 1 << iota
	suiteECDSA
	suiteDHE
	suiteStaticECDH
	suiteSHA384
	suiteDefaultOff
)

// cipherSuite is one row of the compiled-in static ciphersuite list named
// in spec §6 ("Encoded ciphersuites are 16-bit identifiers consumed from a
// static compiled-in list").
type cipherSuite struct {
	id     uint16
	keyLen int
	macLen int
	ivLen  int
	ka     func(version uint16) keyAgreement
	flags  int
	cipher func(key, iv []byte, isRead bool) interface{}
	mac    func(macKey []byte) macFunction
	aead   func(key, fixedNonce []byte) aead
}

// prfHash returns the PRF hash for this suite: SHA-384 when suiteSHA384 is
// set, SHA-256 otherwise — spec §2 C2.
func (c *cipherSuite) prfHash() crypto.Hash {
	if c.flags&suiteSHA384 != 0 {
		return crypto.SHA384
	}
	return crypto.SHA256
}

// cipherSuites is the compiled-in preference list: ECDHE before plain RSA,
// AEADs before CBC, matching the teacher's stated ordering rationale.
var cipherSuites = []*cipherSuite{
	{TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305, 32, 0, 12, ecdheRSAKA, suiteECDHE, nil, nil, aeadChaCha20Poly1305},
	{TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305, 32, 0, 12, ecdheECDSAKA, suiteECDHE | suiteECDSA, nil, nil, aeadChaCha20Poly1305},
	{TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, 16, 0, 4, ecdheRSAKA, suiteECDHE, nil, nil, aeadAESGCM},
	{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, 16, 0, 4, ecdheECDSAKA, suiteECDHE | suiteECDSA, nil, nil, aeadAESGCM},
	{TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, 32, 0, 4, ecdheRSAKA, suiteECDHE | suiteSHA384, nil, nil, aeadAESGCM},
	{TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, 32, 0, 4, ecdheECDSAKA, suiteECDHE | suiteECDSA | suiteSHA384, nil, nil, aeadAESGCM},
	{TLS_DHE_RSA_WITH_AES_128_GCM_SHA256, 16, 0, 4, dheRSAKA, suiteDHE, nil, nil, aeadAESGCM},
	{TLS_DHE_RSA_WITH_AES_256_GCM_SHA384, 32, 0, 4, dheRSAKA, suiteDHE | suiteSHA384, nil, nil, aeadAESGCM},
	{TLS_RSA_WITH_AES_128_GCM_SHA256, 16, 0, 4, rsaKA, 0, nil, nil, aeadAESGCM},
	{TLS_RSA_WITH_AES_256_GCM_SHA384, 32, 0, 4, rsaKA, suiteSHA384, nil, nil, aeadAESGCM},
	{TLS_ECDH_RSA_WITH_AES_128_GCM_SHA256, 16, 0, 4, ecdhRSAKA, suiteStaticECDH, nil, nil, aeadAESGCM},
	{TLS_ECDH_ECDSA_WITH_AES_128_GCM_SHA256, 16, 0, 4, ecdhECDSAKA, suiteStaticECDH | suiteECDSA, nil, nil, aeadAESGCM},
	{TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256, 16, 32, 16, ecdheRSAKA, suiteECDHE, cipherAES, macSHA256, nil},
	{TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256, 16, 32, 16, ecdheECDSAKA, suiteECDHE | suiteECDSA, cipherAES, macSHA256, nil},
	{TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA384, 32, 48, 16, ecdheRSAKA, suiteECDHE | suiteSHA384, cipherAES, macSHA384, nil},
	{TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA384, 32, 48, 16, ecdheECDSAKA, suiteECDHE | suiteECDSA | suiteSHA384, cipherAES, macSHA384, nil},
	{TLS_DHE_RSA_WITH_AES_128_CBC_SHA256, 16, 32, 16, dheRSAKA, suiteDHE, cipherAES, macSHA256, nil},
	{TLS_RSA_WITH_AES_128_CBC_SHA256, 16, 32, 16, rsaKA, 0, cipherAES, macSHA256, nil},
	{TLS_RSA_WITH_AES_256_CBC_SHA256, 32, 32, 16, rsaKA, 0, cipherAES, macSHA256, nil},
	{TLS_ECDH_RSA_WITH_AES_128_CBC_SHA256, 16, 32, 16, ecdhRSAKA, suiteStaticECDH, cipherAES, macSHA256, nil},
	{TLS_ECDH_ECDSA_WITH_AES_128_CBC_SHA256, 16, 32, 16, ecdhECDSAKA, suiteStaticECDH | suiteECDSA, cipherAES, macSHA256, nil},
}

func rsaKA(version uint16) keyAgreement { return &rsaKeyAgreement{} }

func dheRSAKA(version uint16) keyAgreement {
	return &dheKeyAgreement{isRSA: true}
}

func ecdheECDSAKA(version uint16) keyAgreement {
	return &ecdheKeyAgreement{isRSA: false, static: false}
}

func ecdheRSAKA(version uint16) keyAgreement {
	return &ecdheKeyAgreement{isRSA: true, static: false}
}

func ecdhRSAKA(version uint16) keyAgreement {
	return &ecdheKeyAgreement{isRSA: true, static: true}
}

func ecdhECDSAKA(version uint16) keyAgreement {
	return &ecdheKeyAgreement{isRSA: false, static: true}
}

// mutualCipherSuite returns the first id in "have" that the peer's "want"
// matches, resolved to its full table row.
func mutualCipherSuite(have []uint16, want uint16) *cipherSuite {
	for _, id := range have {
		if id == want {
			return cipherSuiteByID(id)
		}
	}
	return nil
}

func cipherSuiteByID(id uint16) *cipherSuite {
	for _, s := range cipherSuites {
		if s.id == id {
			return s
		}
	}
	return nil
}

const (
	aeadNonceLength   = 12
	noncePrefixLength = 4
)

// aead is cipher.AEAD plus the wire-visible explicit nonce length: 8 for
// the GCM suites (the explicit nonce is write_seq itself, prefixed with a
// derived salt, per spec §4.3), 0 for the ChaCha20-Poly1305 suites (the
// nonce is derived from write_seq on both ends, never sent).
type aead interface {
	cipher.AEAD
	explicitNonceLen() int
}

// prefixNonceAEAD prepends write_salt (the 4-byte fixed "nonce prefix")
// to the 8-byte explicit nonce carried on the wire, per spec §4.3's
// "explicit_nonce(8)" GCM layout.
type prefixNonceAEAD struct {
	nonce [aeadNonceLength]byte
	aead  cipher.AEAD
}

func (f *prefixNonceAEAD) NonceSize() int        { return aeadNonceLength - noncePrefixLength }
func (f *prefixNonceAEAD) Overhead() int         { return f.aead.Overhead() }
func (f *prefixNonceAEAD) explicitNonceLen() int { return f.NonceSize() }

func (f *prefixNonceAEAD) Seal(out, nonce, plaintext, additionalData []byte) []byte {
	copy(f.nonce[4:], nonce)
	return f.aead.Seal(out, f.nonce[:], plaintext, additionalData)
}

func (f *prefixNonceAEAD) Open(out, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	copy(f.nonce[4:], nonce)
	return f.aead.Open(out, f.nonce[:], ciphertext, additionalData)
}

func aeadAESGCM(key, noncePrefix []byte) aead {
	if len(noncePrefix) != noncePrefixLength {
		panic("tls: internal error: wrong nonce length")
	}
	block, err := newAESBlock(key)
	if err != nil {
		panic(err)
	}
	g, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	ret := &prefixNonceAEAD{aead: g}
	copy(ret.nonce[:], noncePrefix)
	return ret
}

// xorNonceAEAD wraps an AEAD whose full 12-byte nonce is derived by XORing
// the 8-byte sequence number into a fixed per-connection mask, carrying no
// explicit nonce on the wire — the ChaCha20-Poly1305 construction RFC 7905
// requires.
type xorNonceAEAD struct {
	nonceMask [aeadNonceLength]byte
	aead      cipher.AEAD
}

func (f *xorNonceAEAD) NonceSize() int        { return 8 } // sequence number length
func (f *xorNonceAEAD) Overhead() int         { return f.aead.Overhead() }
func (f *xorNonceAEAD) explicitNonceLen() int { return 0 }

func (f *xorNonceAEAD) Seal(out, nonce, plaintext, additionalData []byte) []byte {
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	result := f.aead.Seal(out, f.nonceMask[:], plaintext, additionalData)
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	return result
}

func (f *xorNonceAEAD) Open(out, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	result, err := f.aead.Open(out, f.nonceMask[:], ciphertext, additionalData)
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	return result, err
}

func aeadChaCha20Poly1305(key, nonceMask []byte) aead {
	if len(nonceMask) != aeadNonceLength {
		panic("tls: internal error: wrong nonce length")
	}
	c, err := chacha20poly1305.New(key)
	if err != nil {
		panic(err)
	}
	ret := &xorNonceAEAD{aead: c}
	copy(ret.nonceMask[:], nonceMask)
	return ret
}

// macFunction computes the CBC MAC over (seq, header, data), per spec
// §4.3. extra is appended to the hash input only to normalise timing
// between the MAC-verify-then-reject and MAC-verify-then-accept paths; it
// is never included in the returned MAC value.
type macFunction interface {
	Size() int
	MAC(seq, header, data, extra []byte) []byte
}

func macSHA256(key []byte) macFunction {
	return tls12MAC{h: hmac.New(sha256.New, key)}
}

func macSHA384(key []byte) macFunction {
	return tls12MAC{h: hmac.New(newSHA384, key)}
}

type tls12MAC struct {
	h   hash.Hash
	buf []byte
}

func (s tls12MAC) Size() int { return s.h.Size() }

func (s tls12MAC) MAC(seq, header, data, extra []byte) []byte {
	s.h.Reset()
	s.h.Write(seq)
	s.h.Write(header)
	s.h.Write(data)
	res := s.h.Sum(s.buf[:0])
	if extra != nil {
		s.h.Write(extra)
	}
	return res
}
