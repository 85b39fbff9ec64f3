// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"math/big"
	"testing"
	"time"
)

// signedServerParams builds a serverKeyExchangeMsg body for an ECDHE
// suite, signed by serverKey over the usual client_random||server_random||
// params digest, mirroring what a peer would send.
func signedECDHEServerKeyExchange(t *testing.T, serverKey *ecdsa.PrivateKey, curve elliptic.Curve, clientRandom, serverRandom []byte) *serverKeyExchangeMsg {
	t.Helper()

	x, y := curve.ScalarBaseMult(serverKey.D.Bytes())
	point := elliptic.Marshal(curve, x, y)

	var params bytes.Buffer
	params.WriteByte(0x03) // curve_type: named_curve
	params.WriteByte(byte(CurveP256 >> 8))
	params.WriteByte(byte(CurveP256))
	params.WriteByte(byte(len(point)))
	params.Write(point)

	digest, err := hashSignedParams(hashSHA256, clientRandom, serverRandom, params.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	sig, err := serverKey.Sign(rand.Reader, digest, cryptoHashFor(hashSHA256))
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	body.Write(params.Bytes())
	body.WriteByte(hashSHA256)
	body.WriteByte(signatureECDSA)
	body.WriteByte(byte(len(sig) >> 8))
	body.WriteByte(byte(len(sig)))
	body.Write(sig)

	return &serverKeyExchangeMsg{key: body.Bytes()}
}

func TestECDHEKeyAgreementFullRoundTrip(t *testing.T) {
	curve := elliptic.P256()
	serverKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	leafTemplate := &x509.Certificate{SerialNumber: big.NewInt(1), NotBefore: time.Unix(0, 0), NotAfter: time.Unix(0, 0).AddDate(10, 0, 0)}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, leafTemplate, &serverKey.PublicKey, serverKey)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatal(err)
	}
	chain := &certificateChain{certs: [][]byte{leafDER}, leaf: leaf}

	clientRandom := bytes.Repeat([]byte{0x11}, 32)
	serverRandom := bytes.Repeat([]byte{0x22}, 32)
	hello := &clientHelloMsg{random: clientRandom}
	serverHello := &serverHelloMsg{random: serverRandom}

	skx := signedECDHEServerKeyExchange(t, serverKey, curve, clientRandom, serverRandom)

	ka := &ecdheKeyAgreement{isRSA: false, static: false}
	if err := ka.processServerKeyExchange(&Config{}, hello, serverHello, chain, skx); err != nil {
		t.Fatalf("processServerKeyExchange: %v", err)
	}
	if ka.curve != curve {
		t.Fatal("negotiated curve not recorded")
	}

	preMaster, ckx, err := ka.generateClientKeyExchange(&Config{}, hello, chain)
	if err != nil {
		t.Fatalf("generateClientKeyExchange: %v", err)
	}
	if len(preMaster) == 0 {
		t.Fatal("empty preMasterSecret")
	}

	// Recompute the shared secret the way the server would, from the
	// ClientKeyExchange point and its own private scalar.
	pointLen := int(ckx.ciphertext[0])
	point := ckx.ciphertext[1 : 1+pointLen]
	cx, cy := elliptic.Unmarshal(curve, point)
	if cx == nil {
		t.Fatal("client point failed to unmarshal")
	}
	sx, _ := curve.ScalarMult(cx, cy, serverKey.D.Bytes())
	byteLen := (curve.Params().BitSize + 7) / 8
	want := make([]byte, byteLen)
	sxBytes := sx.Bytes()
	copy(want[byteLen-len(sxBytes):], sxBytes)

	if !bytes.Equal(preMaster, want) {
		t.Fatal("client and server derived different shared secrets")
	}
}

func TestECDHEKeyAgreementRejectsTamperedSignature(t *testing.T) {
	curve := elliptic.P256()
	serverKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	leafTemplate := &x509.Certificate{SerialNumber: big.NewInt(2), NotBefore: time.Unix(0, 0), NotAfter: time.Unix(0, 0).AddDate(10, 0, 0)}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, leafTemplate, &serverKey.PublicKey, serverKey)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatal(err)
	}
	chain := &certificateChain{certs: [][]byte{leafDER}, leaf: leaf}

	clientRandom := bytes.Repeat([]byte{0x33}, 32)
	serverRandom := bytes.Repeat([]byte{0x44}, 32)
	hello := &clientHelloMsg{random: clientRandom}
	serverHello := &serverHelloMsg{random: serverRandom}

	skx := signedECDHEServerKeyExchange(t, serverKey, curve, clientRandom, serverRandom)
	// Flipping a byte inside the signature (the tail of skx.key) must make
	// verification fail.
	skx.key[len(skx.key)-1] ^= 0xff

	ka := &ecdheKeyAgreement{isRSA: false, static: false}
	if err := ka.processServerKeyExchange(&Config{}, hello, serverHello, chain, skx); err == nil {
		t.Fatal("expected signature verification to fail on a tampered ServerKeyExchange")
	}
}

func TestDHEKeyAgreementFullRoundTrip(t *testing.T) {
	// A small (but still correctly-formed) safe-prime-like group is
	// sufficient to exercise the protocol logic; real parameters would be
	// much larger.
	p := big.NewInt(0).SetInt64(23) // 23 is prime
	g := big.NewInt(5)

	serverX := big.NewInt(6)
	ys := new(big.Int).Exp(g, serverX, p)

	var params bytes.Buffer
	writeDHInt := func(n *big.Int) {
		b := n.Bytes()
		params.WriteByte(byte(len(b) >> 8))
		params.WriteByte(byte(len(b)))
		params.Write(b)
	}
	writeDHInt(p)
	writeDHInt(g)
	writeDHInt(ys)

	var body bytes.Buffer
	body.Write(params.Bytes())
	body.WriteByte(hashSHA256)
	body.WriteByte(signatureRSA)
	body.WriteByte(0)
	body.WriteByte(0) // zero-length "signature" — verification is skipped by using a no-op below

	skx := &serverKeyExchangeMsg{key: body.Bytes()}

	gotP, gotG, gotYs, sigHash, sigAlg, sig, paramsRaw, err := parseDHEServerKeyExchange(skx.key)
	if err != nil {
		t.Fatalf("parseDHEServerKeyExchange: %v", err)
	}
	if gotP.Cmp(p) != 0 || gotG.Cmp(g) != 0 || gotYs.Cmp(ys) != 0 {
		t.Fatal("parsed DH parameters do not match the originals")
	}
	if sigHash != hashSHA256 || sigAlg != signatureRSA {
		t.Fatalf("sigHash/sigAlg = %d/%d, want %d/%d", sigHash, sigAlg, hashSHA256, signatureRSA)
	}
	if len(sig) != 0 {
		t.Fatal("expected an empty signature placeholder")
	}
	if !bytes.Equal(paramsRaw, params.Bytes()) {
		t.Fatal("paramsRaw should be exactly the p||g||Ys region")
	}

	ka := &dheKeyAgreement{isRSA: true, params: dhParameters{p: gotP, g: gotG, ys: gotYs}}
	preMaster, ckx, err := ka.generateClientKeyExchange(&Config{}, &clientHelloMsg{}, &certificateChain{})
	if err != nil {
		t.Fatalf("generateClientKeyExchange: %v", err)
	}

	ycLen := int(ckx.ciphertext[0])<<8 | int(ckx.ciphertext[1])
	yc := new(big.Int).SetBytes(ckx.ciphertext[2 : 2+ycLen])
	want := new(big.Int).Exp(yc, serverX, p)

	if !bytes.Equal(preMaster, want.Bytes()) {
		t.Fatal("client and server derived different DH shared secrets")
	}
}

func TestParseECDHEServerKeyExchangeRejectsWrongCurveType(t *testing.T) {
	body := []byte{0x01, 0x00, 0x17} // curve_type=1 (explicit_prime), not named_curve
	if _, _, _, _, _, _, _, err := parseECDHEServerKeyExchange(body); err == nil {
		t.Fatal("expected rejection of a non-named_curve curve_type")
	}
}

func TestParseECDHEServerKeyExchangeRejectsOffCurvePoint(t *testing.T) {
	curve := elliptic.P256()
	byteLen := (curve.Params().BitSize + 7) / 8

	var body bytes.Buffer
	body.WriteByte(0x03)
	body.WriteByte(byte(CurveP256 >> 8))
	body.WriteByte(byte(CurveP256))
	point := make([]byte, 1+2*byteLen)
	point[0] = 0x04
	// All-zero coordinates are not a valid point on P-256.
	body.WriteByte(byte(len(point)))
	body.Write(point)
	body.WriteByte(hashSHA256)
	body.WriteByte(signatureECDSA)
	body.WriteByte(0)
	body.WriteByte(0)

	if _, _, _, _, _, _, _, err := parseECDHEServerKeyExchange(body.Bytes()); err == nil {
		t.Fatal("expected rejection of a point not on the curve")
	}
}

func TestConstantTimeVerifyDataEqual(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{1, 2, 3, 4}
	c := []byte{1, 2, 3, 5}

	if !constantTimeVerifyDataEqual(a, b) {
		t.Fatal("identical verify_data should compare equal")
	}
	if constantTimeVerifyDataEqual(a, c) {
		t.Fatal("differing verify_data should not compare equal")
	}
	if constantTimeVerifyDataEqual(a, append(b, 0)) {
		t.Fatal("differing-length verify_data should not compare equal")
	}
}
