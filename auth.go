// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"io"
)

// certificateChain is the parsed form of a received Certificate message:
// the leaf plus whatever intermediates rode along with it, with the leaf
// also parsed out for repeated use by key agreement and chain validation.
type certificateChain struct {
	certs [][]byte // DER, leaf-first, as received on the wire
	leaf  *x509.Certificate
}

func newCertificateChain(der [][]byte) (*certificateChain, error) {
	if len(der) == 0 {
		return nil, errors.New("tls: server sent no certificate")
	}
	leaf, err := x509.ParseCertificate(der[0])
	if err != nil {
		return nil, errors.New("tls: failed to parse server certificate: " + err.Error())
	}
	return &certificateChain{certs: der, leaf: leaf}, nil
}

// intermediates builds an x509.CertPool of everything but the leaf, for
// use as chain-building Intermediates.
func (c *certificateChain) intermediates() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, raw := range c.certs[1:] {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, errors.New("tls: failed to parse intermediate certificate: " + err.Error())
		}
		pool.AddCert(cert)
	}
	return pool, nil
}

// verifyServerCertificate builds and validates the server's chain against
// config's trust policy, classifies the result into the ChainStatus
// buckets named in spec §4.5/§6, and consults the embedder's
// VerifyPeerCertificate hook. It returns the fatal alert to send, or nil
// when the connection may proceed.
func verifyServerCertificate(config *Config, chain *certificateChain, serverName string) ([][]*x509.Certificate, []ChainStatus, error) {
	if config.InsecureSkipVerify {
		return nil, nil, nil
	}

	intermediates, err := chain.intermediates()
	if err != nil {
		return nil, nil, err
	}

	opts := x509.VerifyOptions{
		Roots:         config.RootCAs,
		Intermediates: intermediates,
		CurrentTime:   config.time(),
		DNSName:       serverName,
	}

	verified, err := chain.leaf.Verify(opts)
	if err == nil {
		if config.VerifyPeerCertificate != nil && !config.VerifyPeerCertificate(chain.leaf, verified[0], []ChainStatus{StatusOK}) {
			return nil, nil, alertBadCertificate
		}
		return verified, []ChainStatus{StatusOK}, nil
	}

	status, fatalAlert := classifyVerifyError(err)
	if config.VerifyPeerCertificate != nil {
		if config.VerifyPeerCertificate(chain.leaf, nil, []ChainStatus{status}) {
			return nil, []ChainStatus{status}, nil
		}
		return nil, nil, alertBadCertificate
	}
	if status == StatusRevocationUnknown {
		// Non-fatal by default: see SPEC_FULL.md's Open Question
		// decision on RevocationStatusUnknown.
		return nil, []ChainStatus{status}, nil
	}
	return nil, nil, fatalAlert
}

// classifyVerifyError maps crypto/x509's verify error taxonomy onto the
// status buckets spec §4.5 names, and the alert each maps to: expiry is
// certificate_expired, everything else certificate_unknown. crypto/x509
// performs no revocation checking, so StatusRevoked and
// StatusRevocationUnknown are never returned.
func classifyVerifyError(err error) (ChainStatus, error) {
	switch e := err.(type) {
	case x509.CertificateInvalidError:
		switch e.Reason {
		case x509.Expired:
			return StatusNotTimeValid, alertCertificateExpired
		}
		return StatusOther, alertCertificateUnknown
	case x509.HostnameError:
		return StatusOther, alertCertificateUnknown
	case x509.UnknownAuthorityError:
		return StatusOther, alertCertificateUnknown
	}
	return StatusOther, alertCertificateUnknown
}

// signCertificateVerify produces the client's CertificateVerify signature
// over digest, dispatching on the private key's concrete type — the
// {ECDSA, RSA, DSA} tagged variant from the Design Notes. DSA signing is
// not offered: crypto.Signer has no standard DSA implementation, so a DSA
// client certificate (legal on the wire per signatureDSA) cannot be used
// to sign outbound CertificateVerify with this engine.
func signCertificateVerify(rnd io.Reader, key crypto.Signer, hashAlg, sigAlg uint8, digest []byte) ([]byte, error) {
	switch sigAlg {
	case signatureECDSA:
		if _, ok := key.Public().(*ecdsa.PublicKey); !ok {
			return nil, errors.New("tls: certificate private key does not match ECDSA CertificateVerify algorithm")
		}
		return key.Sign(rnd, digest, cryptoHashFor(hashAlg))
	case signatureRSA:
		if _, ok := key.Public().(*rsa.PublicKey); !ok {
			return nil, errors.New("tls: certificate private key does not match RSA CertificateVerify algorithm")
		}
		return key.Sign(rnd, digest, cryptoHashFor(hashAlg))
	default:
		return nil, errors.New("tls: unsupported CertificateVerify signature algorithm")
	}
}

// selectSignatureAndHash picks the first entry of offered that the local
// private key's type can produce, per the CertificateRequest's advertised
// signature_algorithms (spec §4.5 "CertificateRequest" / "client cert
// selection").
func selectSignatureAndHash(key crypto.Signer, offered []signatureAndHash) (signatureAndHash, bool) {
	var want uint8
	switch key.Public().(type) {
	case *ecdsa.PublicKey:
		want = signatureECDSA
	case *rsa.PublicKey:
		want = signatureRSA
	default:
		return signatureAndHash{}, false
	}
	for _, sh := range offered {
		if sh.signature == want {
			return sh, true
		}
	}
	return signatureAndHash{}, false
}
