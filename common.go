// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"io"
	"net"
	"time"

	"golang.org/x/net/idna"
)

// VersionTLS12 is the only protocol version this engine negotiates.
const VersionTLS12 uint16 = 0x0303

type recordType uint8

const (
	recordTypeChangeCipherSpec recordType = 20
	recordTypeAlert            recordType = 21
	recordTypeHandshake        recordType = 22
	recordTypeApplicationData  recordType = 23
)

type handshakeType uint8

const (
	typeHelloRequest       handshakeType = 0
	typeClientHello        handshakeType = 1
	typeServerHello        handshakeType = 2
	typeCertificate        handshakeType = 11
	typeServerKeyExchange  handshakeType = 12
	typeCertificateRequest handshakeType = 13
	typeServerHelloDone    handshakeType = 14
	typeCertificateVerify  handshakeType = 15
	typeClientKeyExchange  handshakeType = 16
	typeFinished           handshakeType = 20
)

const (
	compressionNone uint8 = 0
)

// extension identifiers understood on the wire.
const (
	extensionServerName          uint16 = 0
	extensionSupportedCurves     uint16 = 10
	extensionSupportedPoints     uint16 = 11
	extensionSignatureAlgorithms uint16 = 13
	extensionRenegotiationInfo   uint16 = 0xff01
)

// CurveID is a named elliptic curve, restricted by this spec to the NIST
// curves offered in supported_elliptic_curves.
type CurveID uint16

const (
	CurveP256 CurveID = 23
	CurveP384 CurveID = 24
	CurveP521 CurveID = 25
)

const (
	pointFormatUncompressed uint8 = 0
)

// hash algorithm ids used in signature_algorithms / ServerKeyExchange /
// CertificateVerify.
const (
	hashSHA1   uint8 = 2
	hashSHA256 uint8 = 4
	hashSHA384 uint8 = 5
	hashSHA512 uint8 = 6
)

// signature algorithm ids.
const (
	signatureRSA   uint8 = 1
	signatureDSA   uint8 = 2
	signatureECDSA uint8 = 3
)

type signatureAndHash struct {
	hash      uint8
	signature uint8
}

// defaultSignatureAndHashes is the cross product §4.5 specifies:
// {SHA-1,SHA-256,SHA-384,SHA-512}×{ECDSA,RSA} plus SHA-1/DSA.
var defaultSignatureAndHashes = []signatureAndHash{
	{hashSHA256, signatureECDSA},
	{hashSHA256, signatureRSA},
	{hashSHA384, signatureECDSA},
	{hashSHA384, signatureRSA},
	{hashSHA512, signatureECDSA},
	{hashSHA512, signatureRSA},
	{hashSHA1, signatureECDSA},
	{hashSHA1, signatureRSA},
	{hashSHA1, signatureDSA},
}

// ClientAuthType names a client-certificate policy. Config has no field of
// this type and the handshake does not consult it: when the peer requests
// a certificate, selectClientCertificate decides from Config.Certificates
// alone.
type ClientAuthType int

const (
	// NoClientCert names the policy of answering a request with an empty
	// Certificate message (per §4.5).
	NoClientCert ClientAuthType = iota
	// RequireAnyClientCert names the policy of sending a configured chain.
	RequireAnyClientCert
)

// Certificate bundles a DER chain with its private key, mirroring the
// shape crypto/tls.Certificate uses across the whole pack lineage.
type Certificate struct {
	Certificate [][]byte // leaf-first chain of DER-encoded certs
	PrivateKey  crypto.Signer
	Leaf        *x509.Certificate // cached parse of Certificate[0], optional
}

// VerifyPeerCertificateFunc is the user-pluggable validation hook named in
// spec §4.5/§6. policyErrors carries the per-certificate chain-builder
// status flags (NotTimeValid, Revoked, RevocationStatusUnknown, Other).
type VerifyPeerCertificateFunc func(leaf *x509.Certificate, chain []*x509.Certificate, policyErrors []ChainStatus) bool

// ChainStatus is one status flag attached to a built certificate chain.
type ChainStatus int

const (
	StatusOK ChainStatus = iota
	StatusNotTimeValid
	StatusRevoked
	StatusRevocationUnknown
	StatusOther
)

// Config carries everything the core needs from its embedder: identity of
// the peer to dial, optional client identity, and validation policy. It is
// the external interface named in spec §6.
type Config struct {
	// ServerName is the hostname used for SNI and for leaf hostname
	// matching. Left empty (or set to an IP literal) suppresses SNI per
	// §4.5.
	ServerName string

	// Certificates holds candidate client-auth chains, tried in order
	// against CertificateRequest's signature_algorithms (by private key
	// type); its acceptable types/issuers are not checked.
	Certificates []Certificate

	// VerifyPeerCertificate, if set, is consulted after the built-in
	// chain build/validate step; returning false is always fatal
	// regardless of the chain's own status.
	VerifyPeerCertificate VerifyPeerCertificateFunc

	// RootCAs is the trust store used to build the server's chain. A nil
	// value uses the platform roots via crypto/x509.
	RootCAs *x509.CertPool

	// InsecureSkipVerify disables chain building/hostname matching
	// entirely. Exists for test fixtures; embedders should not set it in
	// production.
	InsecureSkipVerify bool

	// StrictRenegotiationExtension, when true, makes an initial handshake
	// without renegotiation_info fatal (§4.5). When false (default), the
	// extension's absence is only fatal on renegotiation of a previously
	// secure session.
	StrictRenegotiationExtension bool

	// CipherSuites restricts/orders offered ciphersuite ids. Nil selects
	// the engine's default preference order.
	CipherSuites []uint16

	// Time, if set, substitutes for time.Now in both ClientHello's Unix
	// timestamp and certificate-validity checks. Rand, if set,
	// substitutes for crypto/rand.Reader. Both exist to make the
	// "bit-identical on repeat randomness" property in spec §8 testable.
	Time func() time.Time
	Rand io.Reader
}

func (c *Config) time() time.Time {
	if c == nil || c.Time == nil {
		return time.Now()
	}
	return c.Time()
}

func (c *Config) rand() io.Reader {
	if c == nil || c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

// serverNameForSNI normalises ServerName to an ASCII A-label via IDNA, and
// reports whether SNI should be sent at all (suppressed for IP literals
// and empty names, per §4.5).
func (c *Config) serverNameForSNI() (name string, send bool) {
	if c == nil || c.ServerName == "" {
		return "", false
	}
	if net.ParseIP(c.ServerName) != nil {
		return "", false
	}
	ascii, err := idna.Lookup.ToASCII(c.ServerName)
	if err != nil {
		// Not a valid DNS name under IDNA profile; fall back to the
		// literal configured string rather than failing the dial purely
		// over SNI formatting.
		return c.ServerName, true
	}
	return ascii, true
}

func (c *Config) cipherSuites() []uint16 {
	if c != nil && len(c.CipherSuites) > 0 {
		return c.CipherSuites
	}
	ids := make([]uint16, 0, len(cipherSuites))
	for _, s := range cipherSuites {
		if s.flags&suiteDefaultOff != 0 {
			continue
		}
		ids = append(ids, s.id)
	}
	return ids
}

func (c *Config) curvePreferences() []CurveID {
	return []CurveID{CurveP256, CurveP384, CurveP521}
}

// ConnectionState is the read-only summary an embedder can inspect after
// (or during) a handshake.
type ConnectionState struct {
	Version                       uint16
	CipherSuite                   uint16
	ServerName                    string
	PeerCertificates              []*x509.Certificate
	VerifiedChains                [][]*x509.Certificate
	ChainStatuses                 []ChainStatus
	HandshakeComplete             bool
	NegotiatedSecureRenegotiation bool
}
