// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"
	"time"
)

func TestClassifyVerifyErrorExpired(t *testing.T) {
	err := x509.CertificateInvalidError{Reason: x509.Expired}
	status, alertWant := classifyVerifyError(err)
	if status != StatusNotTimeValid {
		t.Fatalf("status = %v, want StatusNotTimeValid", status)
	}
	if alertWant != alertCertificateExpired {
		t.Fatalf("alert = %v, want alertCertificateExpired", alertWant)
	}
}

func TestClassifyVerifyErrorUnknownAuthority(t *testing.T) {
	err := x509.UnknownAuthorityError{}
	status, alertWant := classifyVerifyError(err)
	if status != StatusOther {
		t.Fatalf("status = %v, want StatusOther", status)
	}
	if alertWant != alertCertificateUnknown {
		t.Fatalf("alert = %v, want alertCertificateUnknown", alertWant)
	}
}

func TestClassifyVerifyErrorHostnameMismatch(t *testing.T) {
	err := x509.HostnameError{Certificate: &x509.Certificate{}, Host: "example.com"}
	status, alertWant := classifyVerifyError(err)
	if status != StatusOther {
		t.Fatalf("status = %v, want StatusOther", status)
	}
	if alertWant != alertCertificateUnknown {
		t.Fatalf("alert = %v, want alertCertificateUnknown", alertWant)
	}
}

func TestClassifyVerifyErrorDefault(t *testing.T) {
	status, alertWant := classifyVerifyError(errPlain("opaque failure"))
	if status != StatusOther {
		t.Fatalf("status = %v, want StatusOther", status)
	}
	if alertWant != alertCertificateUnknown {
		t.Fatalf("alert = %v, want alertCertificateUnknown", alertWant)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func TestNewCertificateChainRejectsEmpty(t *testing.T) {
	if _, err := newCertificateChain(nil); err == nil {
		t.Fatal("newCertificateChain(nil) should fail: a server must send at least one certificate")
	}
}

func TestNewCertificateChainRejectsGarbage(t *testing.T) {
	if _, err := newCertificateChain([][]byte{[]byte("not a certificate")}); err == nil {
		t.Fatal("newCertificateChain should fail to parse non-DER input")
	}
}

func TestSelectSignatureAndHashMatchesKeyType(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	offered := []signatureAndHash{
		{hashSHA256, signatureRSA},
		{hashSHA384, signatureECDSA},
	}
	sh, ok := selectSignatureAndHash(ecKey, offered)
	if !ok {
		t.Fatal("expected an ECDSA entry to match an ECDSA key")
	}
	if sh.signature != signatureECDSA {
		t.Fatalf("selected signature algorithm = %d, want signatureECDSA", sh.signature)
	}
}

func TestSelectSignatureAndHashNoMatch(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	offered := []signatureAndHash{{hashSHA384, signatureECDSA}}
	if _, ok := selectSignatureAndHash(rsaKey, offered); ok {
		t.Fatal("expected no match when only ECDSA is offered for an RSA key")
	}
}

func TestSignCertificateVerifyRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	digest := make([]byte, cryptoHashFor(hashSHA256).Size())
	sig, err := signCertificateVerify(rand.Reader, key, hashSHA256, signatureRSA, digest)
	if err != nil {
		t.Fatalf("signCertificateVerify: %v", err)
	}
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, cryptoHashFor(hashSHA256), digest, sig); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

// TestSignCertificateVerifyRSASHA1Transcript exercises the actual shape
// CertificateVerify signs at runtime: a 20-byte SHA-1 transcript sum, as
// produced by finishedHash.certificateVerifySum(), regardless of what hash
// a CertificateRequest's signature_algorithms paired with signatureRSA.
func TestSignCertificateVerifyRSASHA1Transcript(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	digest := make([]byte, cryptoHashFor(hashSHA1).Size())
	if _, err := rand.Read(digest); err != nil {
		t.Fatal(err)
	}
	sig, err := signCertificateVerify(rand.Reader, key, hashSHA1, signatureRSA, digest)
	if err != nil {
		t.Fatalf("signCertificateVerify: %v", err)
	}
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, cryptoHashFor(hashSHA1), digest, sig); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestSignCertificateVerifyRejectsMismatchedKeyType(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	digest := make([]byte, cryptoHashFor(hashSHA256).Size())
	if _, err := signCertificateVerify(rand.Reader, key, hashSHA256, signatureECDSA, digest); err == nil {
		t.Fatal("signing with an RSA key under signatureECDSA should fail")
	}
}

func TestVerifyServerCertificateInsecureSkipVerify(t *testing.T) {
	config := &Config{InsecureSkipVerify: true}
	verified, statuses, err := verifyServerCertificate(config, &certificateChain{}, "example.com")
	if err != nil || verified != nil || statuses != nil {
		t.Fatalf("InsecureSkipVerify should short-circuit with no error and no result: verified=%v statuses=%v err=%v", verified, statuses, err)
	}
}

func TestConfigTimeUsesFixedClock(t *testing.T) {
	// Config.time() returns the configured clock's value; it is the time
	// verifyServerCertificate hands to chain validation.
	fixed := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	config := &Config{Time: func() time.Time { return fixed }}
	if got := config.time(); !got.Equal(fixed) {
		t.Fatalf("config.time() = %v, want %v", got, fixed)
	}
}
