// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

// Cipher suite identifiers this engine offers and recognises. Values are
// from the IANA TLS CipherSuite registry. Only TLS-1.2-capable, non-
// anonymous, non-PSK suites are present, consistent with the Non-goals in
// spec §1.
const (
	TLS_RSA_WITH_AES_128_GCM_SHA256          uint16 = 0x009c
	TLS_RSA_WITH_AES_256_GCM_SHA384          uint16 = 0x009d
	TLS_RSA_WITH_AES_128_CBC_SHA256          uint16 = 0x003c
	TLS_RSA_WITH_AES_256_CBC_SHA256          uint16 = 0x003d
	TLS_DHE_RSA_WITH_AES_128_GCM_SHA256      uint16 = 0x009e
	TLS_DHE_RSA_WITH_AES_256_GCM_SHA384      uint16 = 0x009f
	TLS_DHE_RSA_WITH_AES_128_CBC_SHA256      uint16 = 0x0067
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256    uint16 = 0xc02f
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256  uint16 = 0xc02b
	TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384    uint16 = 0xc030
	TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384  uint16 = 0xc02c
	TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256    uint16 = 0xc027
	TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256  uint16 = 0xc023
	TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA384    uint16 = 0xc028
	TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA384  uint16 = 0xc024
	TLS_ECDH_RSA_WITH_AES_128_GCM_SHA256     uint16 = 0xc031
	TLS_ECDH_ECDSA_WITH_AES_128_GCM_SHA256   uint16 = 0xc02d
	TLS_ECDH_RSA_WITH_AES_128_CBC_SHA256     uint16 = 0xc029
	TLS_ECDH_ECDSA_WITH_AES_128_CBC_SHA256   uint16 = 0xc025
	TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305     uint16 = 0xcca8
	TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305   uint16 = 0xcca9

	// TLS_EMPTY_RENEGOTIATION_INFO_SCSV is a signalling suite id, never
	// selected, advertised implicitly via the renegotiation_info
	// extension instead (RFC 5746 §3.4) — kept here for documentation.
	TLS_EMPTY_RENEGOTIATION_INFO_SCSV uint16 = 0x00ff
)
