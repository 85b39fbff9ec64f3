// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"io"
	"math/big"
)

// rsaKeyAgreement implements plain RSA key exchange (spec §4.5
// "ClientKeyExchange content: RSA"). It carries no ServerKeyExchange.
type rsaKeyAgreement struct{}

func (ka *rsaKeyAgreement) processServerKeyExchange(config *Config, hello *clientHelloMsg, serverHello *serverHelloMsg, cert *certificateChain, skx *serverKeyExchangeMsg) error {
	if skx != nil {
		return alertUnexpectedMessage
	}
	return nil
}

func (ka *rsaKeyAgreement) generateClientKeyExchange(config *Config, hello *clientHelloMsg, cert *certificateChain) ([]byte, *clientKeyExchangeMsg, error) {
	pub, ok := cert.leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, errors.New("tls: server certificate does not carry an RSA public key")
	}

	preMasterSecret := make([]byte, 48)
	preMasterSecret[0] = byte(VersionTLS12 >> 8)
	preMasterSecret[1] = byte(VersionTLS12 & 0xff)
	if _, err := io.ReadFull(config.rand(), preMasterSecret[2:]); err != nil {
		return nil, nil, err
	}

	encrypted, err := rsa.EncryptPKCS1v15(config.rand(), pub, preMasterSecret)
	if err != nil {
		return nil, nil, errors.New("tls: failed to encrypt PreMasterSecret: " + err.Error())
	}
	ckx := new(clientKeyExchangeMsg)
	ckx.ciphertext = make([]byte, len(encrypted)+2)
	ckx.ciphertext[0] = byte(len(encrypted) >> 8)
	ckx.ciphertext[1] = byte(len(encrypted))
	copy(ckx.ciphertext[2:], encrypted)
	return preMasterSecret, ckx, nil
}

// dhParameters is the parsed (p, g, Ys) tuple from a DHE ServerKeyExchange
// — spec §3 HandshakeData "Parsed DHE parameters".
type dhParameters struct {
	p, g, ys *big.Int
}

// dheKeyAgreement implements finite-field Diffie-Hellman key exchange —
// spec §4.5 "ClientKeyExchange content: DHE".
type dheKeyAgreement struct {
	isRSA  bool
	params dhParameters
	x      *big.Int // client's private exponent, kept only until preMaster is derived
}

func (ka *dheKeyAgreement) processServerKeyExchange(config *Config, hello *clientHelloMsg, serverHello *serverHelloMsg, cert *certificateChain, skx *serverKeyExchangeMsg) error {
	if skx == nil {
		return alertUnexpectedMessage
	}
	p, g, ys, sigHash, sigAlg, signed, rest, err := parseDHEServerKeyExchange(skx.key)
	if err != nil {
		return err
	}
	ka.params = dhParameters{p: p, g: g, ys: ys}

	digest, err := hashSignedParams(sigHash, hello.random, serverHello.random, rest)
	if err != nil {
		return err
	}
	return verifySignature(cert.leaf, sigAlg, sigHash, digest, signed)
}

func (ka *dheKeyAgreement) generateClientKeyExchange(config *Config, hello *clientHelloMsg, cert *certificateChain) ([]byte, *clientKeyExchangeMsg, error) {
	p := ka.params.p
	if p == nil || p.Sign() == 0 {
		return nil, nil, alertIllegalParameter
	}

	// Generate a random exponent the same byte length as p, with the top
	// bit cleared, retried until it is non-zero and below p — spec §4.5
	// "Generate a random X_c the same length as p, force positive".
	xBytes := make([]byte, (p.BitLen()+7)/8)
	for {
		if _, err := io.ReadFull(config.rand(), xBytes); err != nil {
			return nil, nil, err
		}
		xBytes[0] &= 0x7f // force positive
		x := new(big.Int).SetBytes(xBytes)
		if x.Sign() > 0 && x.Cmp(p) < 0 {
			ka.x = x
			break
		}
	}

	yc := new(big.Int).Exp(ka.params.g, ka.x, p)
	z := new(big.Int).Exp(ka.params.ys, ka.x, p)

	preMasterSecret := stripLeadingZero(z.Bytes())

	ycBytes := yc.Bytes()
	ckx := new(clientKeyExchangeMsg)
	ckx.ciphertext = make([]byte, len(ycBytes)+2)
	ckx.ciphertext[0] = byte(len(ycBytes) >> 8)
	ckx.ciphertext[1] = byte(len(ycBytes))
	copy(ckx.ciphertext[2:], ycBytes)

	ka.x = nil // zeroise-by-drop: private exponent not needed past this point
	return preMasterSecret, ckx, nil
}

func stripLeadingZero(b []byte) []byte {
	// big.Int.Bytes() never includes a sign, so in practice there is no
	// leading zero to strip for values produced by Exp on positive
	// operands; kept for parity with spec §4.5's explicit call-out.
	return b
}

// ecdheKeyAgreement implements ephemeral (ECDHE) and, when static is set,
// the server-certificate-bound static ECDH variants (ECDH_RSA,
// ECDH_ECDSA) named in spec §4.5's ClientKeyExchange bullets and in the
// Design Notes' {RSA, DHE, ECDHE, ECDH} tagged variant.
type ecdheKeyAgreement struct {
	isRSA  bool
	static bool

	curve elliptic.Curve
	x, y  *big.Int // server's public point
}

func (ka *ecdheKeyAgreement) processServerKeyExchange(config *Config, hello *clientHelloMsg, serverHello *serverHelloMsg, cert *certificateChain, skx *serverKeyExchangeMsg) error {
	if ka.static {
		// ECDH_{RSA,ECDSA}: the server's static point comes from its
		// certificate's subjectPublicKeyInfo, not from a
		// ServerKeyExchange message.
		if skx != nil {
			return alertUnexpectedMessage
		}
		pub, ok := cert.leaf.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return errors.New("tls: server certificate does not carry an EC public key for static ECDH")
		}
		ka.curve = pub.Curve
		ka.x, ka.y = pub.X, pub.Y
		return nil
	}

	if skx == nil {
		return alertUnexpectedMessage
	}
	curve, x, y, sigHash, sigAlg, signed, rest, err := parseECDHEServerKeyExchange(skx.key)
	if err != nil {
		return err
	}
	ka.curve = curve
	ka.x, ka.y = x, y

	digest, err := hashSignedParams(sigHash, hello.random, serverHello.random, rest)
	if err != nil {
		return err
	}
	return verifySignature(cert.leaf, sigAlg, sigHash, digest, signed)
}

func (ka *ecdheKeyAgreement) generateClientKeyExchange(config *Config, hello *clientHelloMsg, cert *certificateChain) ([]byte, *clientKeyExchangeMsg, error) {
	if ka.curve == nil {
		return nil, nil, alertIllegalParameter
	}

	priv, cx, cy, err := elliptic.GenerateKey(ka.curve, config.rand())
	if err != nil {
		return nil, nil, err
	}

	sx, _ := ka.curve.ScalarMult(ka.x, ka.y, priv)
	byteLen := (ka.curve.Params().BitSize + 7) / 8
	preMasterSecret := make([]byte, byteLen)
	sxBytes := sx.Bytes()
	copy(preMasterSecret[byteLen-len(sxBytes):], sxBytes)

	pointBytes := elliptic.Marshal(ka.curve, cx, cy)
	ckx := new(clientKeyExchangeMsg)
	ckx.ciphertext = make([]byte, len(pointBytes)+1)
	ckx.ciphertext[0] = byte(len(pointBytes))
	copy(ckx.ciphertext[1:], pointBytes)

	for i := range priv {
		priv[i] = 0
	}
	return preMasterSecret, ckx, nil
}

// verifySignature dispatches ServerKeyExchange signature verification to
// ECDSA, RSA-PKCS1v15, or DSA, against the leaf certificate's public key —
// the {ECDSA, RSA, DSA} tagged variant from the Design Notes. This
// client-only engine never receives a CertificateVerify to check.
func verifySignature(leaf *x509.Certificate, sigAlg uint8, hashAlg uint8, digest, signature []byte) error {
	pub := leaf.PublicKey
	switch sigAlg {
	case signatureECDSA:
		ecdsaKey, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return alertIllegalParameter
		}
		var sig struct{ R, S *big.Int }
		if _, err := asn1.Unmarshal(signature, &sig); err != nil || !ecdsa.Verify(ecdsaKey, digest, sig.R, sig.S) {
			return alertDecryptError
		}
		return nil
	case signatureRSA:
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return alertIllegalParameter
		}
		if err := rsa.VerifyPKCS1v15(rsaKey, cryptoHashFor(hashAlg), digest, signature); err != nil {
			return alertDecryptError
		}
		return nil
	case signatureDSA:
		dsaKey, ok := pub.(*dsa.PublicKey)
		if !ok {
			return alertIllegalParameter
		}
		var sig struct{ R, S *big.Int }
		if _, err := asn1.Unmarshal(signature, &sig); err != nil || !dsa.Verify(dsaKey, digest, sig.R, sig.S) {
			return alertDecryptError
		}
		return nil
	default:
		return alertIllegalParameter
	}
}

// constantTimeVerifyDataEqual compares two verify_data values without
// leaking which byte differs first — used for the server Finished check
// (spec §4.5).
func constantTimeVerifyDataEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
