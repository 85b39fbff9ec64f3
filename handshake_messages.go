// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import "bytes"

// handshakeMessage is implemented by every message type this engine sends
// or parses. marshal produces the wire form (type(1)||length(3)||body);
// unmarshal consumes a full such buffer.
type handshakeMessage interface {
	marshal() []byte
	unmarshal(data []byte) bool
}

func writeUint24(b []byte, n int) {
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func readUint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// wrapHandshake prefixes a marshalled body with its 1-byte type and 3-byte
// length, per spec §3 "HandshakeData wire shape".
func wrapHandshake(typ handshakeType, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = byte(typ)
	writeUint24(out[1:4], len(body))
	copy(out[4:], body)
	return out
}

type clientHelloMsg struct {
	raw                []byte
	vers               uint16
	random             []byte
	sessionID          []byte
	cipherSuites       []uint16
	compressionMethods []uint8

	serverName string

	supportedCurves []CurveID
	supportedPoints []uint8

	signatureAndHashes []signatureAndHash

	secureRenegotiationSupported bool
	secureRenegotiation          []byte
}

func (m *clientHelloMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}

	var body bytes.Buffer
	body.WriteByte(byte(m.vers >> 8))
	body.WriteByte(byte(m.vers))
	body.Write(m.random)

	body.WriteByte(byte(len(m.sessionID)))
	body.Write(m.sessionID)

	body.WriteByte(byte(len(m.cipherSuites) * 2 >> 8))
	body.WriteByte(byte(len(m.cipherSuites) * 2))
	for _, s := range m.cipherSuites {
		body.WriteByte(byte(s >> 8))
		body.WriteByte(byte(s))
	}

	body.WriteByte(byte(len(m.compressionMethods)))
	body.Write(m.compressionMethods)

	var exts bytes.Buffer

	if m.serverName != "" {
		var sni bytes.Buffer
		sni.WriteByte(0) // host_name
		sni.WriteByte(byte(len(m.serverName) >> 8))
		sni.WriteByte(byte(len(m.serverName)))
		sni.WriteString(m.serverName)
		writeExtension(&exts, extensionServerName, prefixUint16(sni.Bytes()))
	}

	if len(m.supportedCurves) > 0 {
		var buf bytes.Buffer
		for _, c := range m.supportedCurves {
			buf.WriteByte(byte(c >> 8))
			buf.WriteByte(byte(c))
		}
		writeExtension(&exts, extensionSupportedCurves, prefixUint16(buf.Bytes()))
	}

	if len(m.supportedPoints) > 0 {
		var buf bytes.Buffer
		buf.WriteByte(byte(len(m.supportedPoints)))
		buf.Write(m.supportedPoints)
		writeExtension(&exts, extensionSupportedPoints, buf.Bytes())
	}

	if len(m.signatureAndHashes) > 0 {
		var buf bytes.Buffer
		n := len(m.signatureAndHashes) * 2
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
		for _, sh := range m.signatureAndHashes {
			buf.WriteByte(sh.hash)
			buf.WriteByte(sh.signature)
		}
		writeExtension(&exts, extensionSignatureAlgorithms, buf.Bytes())
	}

	if m.secureRenegotiationSupported {
		var buf bytes.Buffer
		buf.WriteByte(byte(len(m.secureRenegotiation)))
		buf.Write(m.secureRenegotiation)
		writeExtension(&exts, extensionRenegotiationInfo, buf.Bytes())
	}

	if exts.Len() > 0 {
		body.WriteByte(byte(exts.Len() >> 8))
		body.WriteByte(byte(exts.Len()))
		body.Write(exts.Bytes())
	}

	m.raw = wrapHandshake(typeClientHello, body.Bytes())
	return m.raw
}

func prefixUint16(b []byte) []byte {
	out := make([]byte, 2+len(b))
	out[0] = byte(len(b) >> 8)
	out[1] = byte(len(b))
	copy(out[2:], b)
	return out
}

func writeExtension(buf *bytes.Buffer, id uint16, body []byte) {
	buf.WriteByte(byte(id >> 8))
	buf.WriteByte(byte(id))
	buf.WriteByte(byte(len(body) >> 8))
	buf.WriteByte(byte(len(body)))
	buf.Write(body)
}

// unmarshal is only needed for fixtures/tests; the engine itself never
// receives a ClientHello.
func (m *clientHelloMsg) unmarshal(data []byte) bool {
	if len(data) < 4+2+32+1 {
		return false
	}
	m.raw = data
	body := data[4:]
	m.vers = uint16(body[0])<<8 | uint16(body[1])
	m.random = body[2:34]
	body = body[34:]
	if len(body) < 1 {
		return false
	}
	sidLen := int(body[0])
	body = body[1:]
	if len(body) < sidLen {
		return false
	}
	m.sessionID = body[:sidLen]
	body = body[sidLen:]
	return len(body) >= 2
}

type serverHelloMsg struct {
	raw               []byte
	vers              uint16
	random            []byte
	sessionID         []byte
	cipherSuite       uint16
	compressionMethod uint8

	secureRenegotiationSupported bool
	secureRenegotiation          []byte
}

func (m *serverHelloMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	var body bytes.Buffer
	body.WriteByte(byte(m.vers >> 8))
	body.WriteByte(byte(m.vers))
	body.Write(m.random)
	body.WriteByte(byte(len(m.sessionID)))
	body.Write(m.sessionID)
	body.WriteByte(byte(m.cipherSuite >> 8))
	body.WriteByte(byte(m.cipherSuite))
	body.WriteByte(m.compressionMethod)

	if m.secureRenegotiationSupported {
		var exts bytes.Buffer
		var buf bytes.Buffer
		buf.WriteByte(byte(len(m.secureRenegotiation)))
		buf.Write(m.secureRenegotiation)
		writeExtension(&exts, extensionRenegotiationInfo, buf.Bytes())
		body.WriteByte(byte(exts.Len() >> 8))
		body.WriteByte(byte(exts.Len()))
		body.Write(exts.Bytes())
	}

	m.raw = wrapHandshake(typeServerHello, body.Bytes())
	return m.raw
}

// unmarshal parses a ServerHello; data is the full message including its
// 4-byte header, per handshakeMessage.
func (m *serverHelloMsg) unmarshal(data []byte) bool {
	if len(data) < 4+2+32+1 {
		return false
	}
	m.raw = data
	body := data[4:]

	m.vers = uint16(body[0])<<8 | uint16(body[1])
	body = body[2:]
	m.random = body[:32]
	body = body[32:]

	if len(body) < 1 {
		return false
	}
	sidLen := int(body[0])
	body = body[1:]
	if len(body) < sidLen {
		return false
	}
	m.sessionID = body[:sidLen]
	body = body[sidLen:]

	if len(body) < 3 {
		return false
	}
	m.cipherSuite = uint16(body[0])<<8 | uint16(body[1])
	m.compressionMethod = body[2]
	body = body[3:]

	if len(body) == 0 {
		return true
	}
	if len(body) < 2 {
		return false
	}
	extsLen := int(body[0])<<8 | int(body[1])
	body = body[2:]
	if len(body) < extsLen {
		return false
	}
	exts := body[:extsLen]

	for len(exts) > 0 {
		if len(exts) < 4 {
			return false
		}
		id := uint16(exts[0])<<8 | uint16(exts[1])
		length := int(exts[2])<<8 | int(exts[3])
		exts = exts[4:]
		if len(exts) < length {
			return false
		}
		val := exts[:length]
		exts = exts[length:]

		if id == extensionRenegotiationInfo {
			if len(val) < 1 || int(val[0]) != len(val)-1 {
				return false
			}
			m.secureRenegotiationSupported = true
			m.secureRenegotiation = val[1:]
		}
	}
	return true
}

type certificateMsg struct {
	raw          []byte
	certificates [][]byte
}

func (m *certificateMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	var listLen int
	for _, c := range m.certificates {
		listLen += 3 + len(c)
	}
	body := make([]byte, 3+listLen)
	writeUint24(body[0:3], listLen)
	off := 3
	for _, c := range m.certificates {
		writeUint24(body[off:off+3], len(c))
		off += 3
		copy(body[off:], c)
		off += len(c)
	}
	m.raw = wrapHandshake(typeCertificate, body)
	return m.raw
}

func (m *certificateMsg) unmarshal(data []byte) bool {
	if len(data) < 7 {
		return false
	}
	m.raw = data
	body := data[4:]
	listLen := readUint24(body[0:3])
	body = body[3:]
	if len(body) != listLen {
		return false
	}
	var certs [][]byte
	for len(body) > 0 {
		if len(body) < 3 {
			return false
		}
		certLen := readUint24(body[0:3])
		body = body[3:]
		if len(body) < certLen {
			return false
		}
		certs = append(certs, body[:certLen])
		body = body[certLen:]
	}
	m.certificates = certs
	return true
}

// serverKeyExchangeMsg carries the opaque, ciphersuite-specific key
// parameters (plus trailing signature, when present) named in spec §4.5
// "ServerKeyExchange content".
type serverKeyExchangeMsg struct {
	raw []byte
	key []byte
}

func (m *serverKeyExchangeMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	m.raw = wrapHandshake(typeServerKeyExchange, m.key)
	return m.raw
}

func (m *serverKeyExchangeMsg) unmarshal(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	m.raw = data
	m.key = data[4:]
	return true
}

type certificateRequestMsg struct {
	raw                    []byte
	certificateTypes       []byte
	signatureAndHashes     []signatureAndHash
	certificateAuthorities [][]byte
}

func (m *certificateRequestMsg) unmarshal(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	m.raw = data
	body := data[4:]

	n := int(body[0])
	body = body[1:]
	if len(body) < n {
		return false
	}
	m.certificateTypes = body[:n]
	body = body[n:]

	if len(body) < 2 {
		return false
	}
	shLen := int(body[0])<<8 | int(body[1])
	body = body[2:]
	if len(body) < shLen || shLen%2 != 0 {
		return false
	}
	shBytes := body[:shLen]
	body = body[shLen:]
	for len(shBytes) > 0 {
		m.signatureAndHashes = append(m.signatureAndHashes, signatureAndHash{hash: shBytes[0], signature: shBytes[1]})
		shBytes = shBytes[2:]
	}

	if len(body) < 2 {
		return false
	}
	caLen := int(body[0])<<8 | int(body[1])
	body = body[2:]
	if len(body) != caLen {
		return false
	}
	for len(body) > 0 {
		if len(body) < 2 {
			return false
		}
		nameLen := int(body[0])<<8 | int(body[1])
		body = body[2:]
		if len(body) < nameLen {
			return false
		}
		m.certificateAuthorities = append(m.certificateAuthorities, body[:nameLen])
		body = body[nameLen:]
	}
	return true
}

func (m *certificateRequestMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	var body bytes.Buffer
	body.WriteByte(byte(len(m.certificateTypes)))
	body.Write(m.certificateTypes)

	body.WriteByte(byte(len(m.signatureAndHashes) * 2 >> 8))
	body.WriteByte(byte(len(m.signatureAndHashes) * 2))
	for _, sh := range m.signatureAndHashes {
		body.WriteByte(sh.hash)
		body.WriteByte(sh.signature)
	}

	var cas bytes.Buffer
	for _, ca := range m.certificateAuthorities {
		cas.WriteByte(byte(len(ca) >> 8))
		cas.WriteByte(byte(len(ca)))
		cas.Write(ca)
	}
	body.WriteByte(byte(cas.Len() >> 8))
	body.WriteByte(byte(cas.Len()))
	body.Write(cas.Bytes())

	m.raw = wrapHandshake(typeCertificateRequest, body.Bytes())
	return m.raw
}

type serverHelloDoneMsg struct{ raw []byte }

func (m *serverHelloDoneMsg) marshal() []byte {
	if m.raw == nil {
		m.raw = wrapHandshake(typeServerHelloDone, nil)
	}
	return m.raw
}

func (m *serverHelloDoneMsg) unmarshal(data []byte) bool {
	m.raw = data
	return len(data) == 4
}

// clientKeyExchangeMsg carries the ciphersuite-specific public value
// (RSA-encrypted PreMasterSecret, DHE Y_c, or ECDHE point) named in spec
// §4.5 "ClientKeyExchange content".
type clientKeyExchangeMsg struct {
	raw        []byte
	ciphertext []byte
}

func (m *clientKeyExchangeMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	m.raw = wrapHandshake(typeClientKeyExchange, m.ciphertext)
	return m.raw
}

func (m *clientKeyExchangeMsg) unmarshal(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	m.raw = data
	m.ciphertext = data[4:]
	return true
}

// certificateVerifyMsg carries the client's proof of possession of the
// private key matching its Certificate message — spec §4.5
// "CertificateVerify".
type certificateVerifyMsg struct {
	raw                []byte
	hashAlgorithm      uint8
	signatureAlgorithm uint8
	signature          []byte
}

func (m *certificateVerifyMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	body := make([]byte, 2+2+len(m.signature))
	body[0] = m.hashAlgorithm
	body[1] = m.signatureAlgorithm
	body[2] = byte(len(m.signature) >> 8)
	body[3] = byte(len(m.signature))
	copy(body[4:], m.signature)
	m.raw = wrapHandshake(typeCertificateVerify, body)
	return m.raw
}

func (m *certificateVerifyMsg) unmarshal(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	m.raw = data
	body := data[4:]
	m.hashAlgorithm = body[0]
	m.signatureAlgorithm = body[1]
	sigLen := int(body[2])<<8 | int(body[3])
	body = body[4:]
	if len(body) != sigLen {
		return false
	}
	m.signature = body
	return true
}

type finishedMsg struct {
	raw        []byte
	verifyData []byte
}

func (m *finishedMsg) marshal() []byte {
	if m.raw != nil {
		return m.raw
	}
	m.raw = wrapHandshake(typeFinished, m.verifyData)
	return m.raw
}

func (m *finishedMsg) unmarshal(data []byte) bool {
	if len(data) != 4+finishedVerifyLength {
		return false
	}
	m.raw = data
	m.verifyData = data[4:]
	return true
}

type helloRequestMsg struct{ raw []byte }

func (m *helloRequestMsg) marshal() []byte {
	if m.raw == nil {
		m.raw = wrapHandshake(typeHelloRequest, nil)
	}
	return m.raw
}

func (m *helloRequestMsg) unmarshal(data []byte) bool {
	m.raw = data
	return len(data) == 4
}
