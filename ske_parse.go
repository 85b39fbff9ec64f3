// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto"
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"
	"math/big"
)

// cryptoHashFor maps a wire hash-algorithm id (§4.5's "explicit 2-byte
// hash/signature identifiers") to the crypto.Hash RSA/DSA verification
// needs.
func cryptoHashFor(id uint8) crypto.Hash {
	switch id {
	case hashSHA1:
		return crypto.SHA1
	case hashSHA256:
		return crypto.SHA256
	case hashSHA384:
		return crypto.SHA384
	case hashSHA512:
		return crypto.SHA512
	}
	return 0
}

func newHashFor(id uint8) hash.Hash {
	switch id {
	case hashSHA1:
		return sha1.New()
	case hashSHA256:
		return sha256.New()
	case hashSHA384:
		return sha512.New384()
	case hashSHA512:
		return sha512.New()
	}
	return nil
}

// hashSignedParams hashes client_random || server_random ||
// parameters_raw_bytes under the hash algorithm named in the
// ServerKeyExchange signature header — spec §4.5 "The trailing signature
// covers client_random || server_random || parameters_raw_bytes".
func hashSignedParams(hashAlg uint8, clientRandom, serverRandom, params []byte) ([]byte, error) {
	h := newHashFor(hashAlg)
	if h == nil {
		return nil, alertIllegalParameter
	}
	h.Write(clientRandom)
	h.Write(serverRandom)
	h.Write(params)
	return h.Sum(nil), nil
}

// readUint16LenPrefixed reads a 2-byte big-endian length followed by that
// many bytes, returning the payload and the remainder of buf.
func readUint16LenPrefixed(buf []byte) (payload, rest []byte, err error) {
	if len(buf) < 2 {
		return nil, nil, alertDecodeError
	}
	n := int(buf[0])<<8 | int(buf[1])
	buf = buf[2:]
	if len(buf) < n {
		return nil, nil, alertDecodeError
	}
	return buf[:n], buf[n:], nil
}

// parseDHEServerKeyExchange parses the DHE ServerKeyExchange body: p, g,
// Ys (each uint16-length-prefixed big-endian integers), followed by a
// 2-byte (hash,signature) identifier pair, a uint16-length-prefixed
// signature, per spec §4.5.
func parseDHEServerKeyExchange(body []byte) (p, g, ys *big.Int, sigHash, sigAlg uint8, signature, paramsRaw []byte, err error) {
	start := body

	pBytes, rest, err := readUint16LenPrefixed(body)
	if err != nil {
		return
	}
	gBytes, rest2, err := readUint16LenPrefixed(rest)
	if err != nil {
		return
	}
	ysBytes, rest3, err := readUint16LenPrefixed(rest2)
	if err != nil {
		return
	}

	paramsLen := len(start) - len(rest3)
	paramsRaw = start[:paramsLen]

	if len(rest3) < 2 {
		err = alertDecodeError
		return
	}
	sigHash = rest3[0]
	sigAlg = rest3[1]
	signature, _, err = readUint16LenPrefixed(rest3[2:])
	if err != nil {
		return
	}

	p = new(big.Int).SetBytes(pBytes)
	g = new(big.Int).SetBytes(gBytes)
	ys = new(big.Int).SetBytes(ysBytes)
	return
}

// namedCurveFromID maps the wire named-curve id to an elliptic.Curve, for
// the three curves spec §4.5 supports.
func namedCurveFromID(id uint16) elliptic.Curve {
	switch CurveID(id) {
	case CurveP256:
		return elliptic.P256()
	case CurveP384:
		return elliptic.P384()
	case CurveP521:
		return elliptic.P521()
	}
	return nil
}

// parseECDHEServerKeyExchange parses curve_type(1)==0x03, named
// curve(2), point(uint8-length-prefixed, uncompressed form 0x04||X||Y),
// then the (hash,signature,len,signature) trailer — spec §4.5.
func parseECDHEServerKeyExchange(body []byte) (curve elliptic.Curve, x, y *big.Int, sigHash, sigAlg uint8, signature, paramsRaw []byte, err error) {
	start := body
	if len(body) < 1 || body[0] != 0x03 {
		err = alertIllegalParameter
		return
	}
	body = body[1:]
	if len(body) < 2 {
		err = alertDecodeError
		return
	}
	curve = namedCurveFromID(uint16(body[0])<<8 | uint16(body[1]))
	if curve == nil {
		err = alertIllegalParameter
		return
	}
	body = body[2:]

	if len(body) < 1 {
		err = alertDecodeError
		return
	}
	pointLen := int(body[0])
	body = body[1:]
	if len(body) < pointLen {
		err = alertDecodeError
		return
	}
	point := body[:pointLen]
	rest := body[pointLen:]

	if len(point) == 0 || point[0] != 0x04 {
		err = errors.New("tls: server ECDHE point is not in uncompressed form")
		return
	}
	byteLen := (curve.Params().BitSize + 7) / 8
	if len(point) != 1+2*byteLen {
		err = alertDecodeError
		return
	}
	x = new(big.Int).SetBytes(point[1 : 1+byteLen])
	y = new(big.Int).SetBytes(point[1+byteLen:])
	if !curve.IsOnCurve(x, y) {
		err = errors.New("tls: server ECDHE point is not on the negotiated curve")
		return
	}

	paramsLen := len(start) - len(rest)
	paramsRaw = start[:paramsLen]

	if len(rest) < 2 {
		err = alertDecodeError
		return
	}
	sigHash = rest[0]
	sigAlg = rest[1]
	signature, _, err = readUint16LenPrefixed(rest[2:])
	return
}
