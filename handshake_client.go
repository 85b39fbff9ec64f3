// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto/sha256"
	"crypto/x509"
	"io"
)

// clientHandshakeState drives one ClientHello→Finished exchange — the
// initial handshake or a renegotiation re-entry, both run runToFlightSent
// then finish (Conn.Handshake/Conn.Write call them directly, renegotiation
// through handshake()) — spec §4.5's state machine and §4.6's
// renegotiation trigger.
type clientHandshakeState struct {
	c *Conn

	hello       *clientHelloMsg
	serverHello *serverHelloMsg

	finishedHash finishedHash
	keyAgreement keyAgreement
	suite        *cipherSuite

	serverCert *certificateChain

	clientCert             *Certificate
	clientSignatureAndHash signatureAndHash

	masterSecret []byte
}

func (hs *clientHandshakeState) handshake() error {
	if err := hs.runToFlightSent(); err != nil {
		return err
	}
	return hs.finish()
}

// runToFlightSent drives the handshake from ClientHello through the
// client's own Finished, leaving the server's Finished unread. Split out
// from handshake() so Conn.Write can false-start on forward-secret suites
// per spec §4.5 "False start".
func (hs *clientHandshakeState) runToFlightSent() error {
	hs.finishedHash = newFinishedHash(nil, false)

	if err := hs.sendClientHello(); err != nil {
		return err
	}
	if err := hs.readServerHello(); err != nil {
		return err
	}
	if err := hs.readServerCertificate(); err != nil {
		return err
	}
	if err := hs.readServerKeyExchange(); err != nil {
		return err
	}
	certRequested, certReqMsg, err := hs.readCertificateRequest()
	if err != nil {
		return err
	}
	if err := hs.readServerHelloDone(); err != nil {
		return err
	}
	return hs.sendClientFlight(certRequested, certReqMsg)
}

// finish reads and verifies the server's ChangeCipherSpec+Finished and
// marks the connection ready for application reads.
func (hs *clientHandshakeState) finish() error {
	c := hs.c
	if err := hs.readServerFinishedFlight(); err != nil {
		return err
	}

	c.vers = VersionTLS12
	c.cipherSuite = hs.suite
	c.masterSecret = hs.masterSecret
	c.handshakeComplete = true
	c.hand.resetFlight()
	return nil
}

// sendClientHello builds and sends the ClientHello named in spec §4.5.
func (hs *clientHandshakeState) sendClientHello() error {
	c := hs.c

	random := make([]byte, 32)
	if _, err := io.ReadFull(c.config.rand(), random); err != nil {
		return err
	}
	t := uint32(c.config.time().Unix())
	random[0] = byte(t >> 24)
	random[1] = byte(t >> 16)
	random[2] = byte(t >> 8)
	random[3] = byte(t)

	serverName, sendSNI := c.config.serverNameForSNI()

	suites := c.config.cipherSuites()
	needsECDHE := false
	for _, id := range suites {
		if s := cipherSuiteByID(id); s != nil && s.flags&(suiteECDHE|suiteStaticECDH) != 0 {
			needsECDHE = true
		}
	}

	hello := &clientHelloMsg{
		vers:               VersionTLS12,
		random:             random,
		cipherSuites:       suites,
		compressionMethods: []uint8{compressionNone},
		signatureAndHashes: defaultSignatureAndHashes,

		secureRenegotiationSupported: true,
		secureRenegotiation:          c.clientVerifyData,
	}
	if sendSNI {
		hello.serverName = serverName
	}
	if needsECDHE {
		hello.supportedCurves = c.config.curvePreferences()
		hello.supportedPoints = []uint8{pointFormatUncompressed}
	}

	hs.hello = hello
	copy(c.clientRandom[:], random)

	msg := hello.marshal()
	hs.finishedHash.Write(msg)
	_, err := c.writeRecordLocked(recordTypeHandshake, msg)
	return err
}

// readServerHello reads ServerHello, validates version/ciphersuite, and
// fixes the PRF hash — spec §4.5 "ServerHello processing".
func (hs *clientHandshakeState) readServerHello() error {
	c := hs.c
	typ, data, err := c.readHandshakeMsg()
	if err != nil {
		return err
	}
	if typ != typeServerHello {
		return c.sendAlertLocked(alertUnexpectedMessage)
	}
	sh := new(serverHelloMsg)
	if !sh.unmarshal(data) {
		return c.sendAlertLocked(alertDecodeError)
	}
	hs.finishedHash.Write(data)

	if sh.vers != VersionTLS12 {
		return c.sendAlertLocked(alertProtocolVersion)
	}
	if sh.compressionMethod != compressionNone {
		return c.sendAlertLocked(alertIllegalParameter)
	}

	suite := mutualCipherSuite(hs.hello.cipherSuites, sh.cipherSuite)
	if suite == nil {
		return c.sendAlertLocked(alertIllegalParameter)
	}
	hs.suite = suite
	hs.keyAgreement = suite.ka(VersionTLS12)
	hs.finishedHash.isSHA384 = suite.flags&suiteSHA384 != 0
	if hs.finishedHash.isSHA384 {
		hs.finishedHash.prfHash = newSHA384
	} else {
		hs.finishedHash.prfHash = sha256.New
	}
	hs.finishedHash.discardUnusedFamily()

	if err := hs.processRenegotiationInfo(sh); err != nil {
		return err
	}

	hs.serverHello = sh
	copy(c.serverRandom[:], sh.random)
	c.serverName = hs.hello.serverName
	return nil
}

// processRenegotiationInfo validates the renegotiation_info extension per
// spec §4.5 and RFC 5746.
func (hs *clientHandshakeState) processRenegotiationInfo(sh *serverHelloMsg) error {
	c := hs.c
	renegotiating := c.secureRenegotiation

	if !sh.secureRenegotiationSupported {
		if renegotiating {
			return c.sendAlertLocked(alertHandshakeFailure)
		}
		if c.config.StrictRenegotiationExtension {
			return c.sendAlertLocked(alertHandshakeFailure)
		}
		return nil
	}

	if renegotiating {
		want := make([]byte, 0, len(c.clientVerifyData)+len(c.serverVerifyData))
		want = append(want, c.clientVerifyData...)
		want = append(want, c.serverVerifyData...)
		if !constantTimeVerifyDataEqual(sh.secureRenegotiation, want) {
			return c.sendAlertLocked(alertHandshakeFailure)
		}
	} else if len(sh.secureRenegotiation) != 0 {
		return c.sendAlertLocked(alertHandshakeFailure)
	}
	c.secureRenegotiation = true
	return nil
}

func (hs *clientHandshakeState) readServerCertificate() error {
	c := hs.c
	typ, data, err := c.readHandshakeMsg()
	if err != nil {
		return err
	}
	if typ != typeCertificate {
		return c.sendAlertLocked(alertUnexpectedMessage)
	}
	cm := new(certificateMsg)
	if !cm.unmarshal(data) {
		return c.sendAlertLocked(alertDecodeError)
	}
	hs.finishedHash.Write(data)

	chain, err := newCertificateChain(cm.certificates)
	if err != nil {
		return c.sendAlertLocked(alertBadCertificate)
	}
	hs.serverCert = chain

	verified, statuses, verr := verifyServerCertificate(c.config, chain, hs.hello.serverName)
	if verr != nil {
		if a, ok := verr.(alert); ok {
			return c.sendAlertLocked(a)
		}
		return c.sendAlertLocked(alertBadCertificate)
	}
	c.verifiedChains = verified
	c.chainStatuses = statuses
	for _, raw := range cm.certificates {
		if leaf, err := x509.ParseCertificate(raw); err == nil {
			c.peerCertificates = append(c.peerCertificates, leaf)
		}
	}
	return nil
}

func (hs *clientHandshakeState) readServerKeyExchange() error {
	c := hs.c
	data, ok, err := c.peekHandshakeMsg(typeServerKeyExchange)
	if err != nil || !ok {
		return err
	}
	skx := new(serverKeyExchangeMsg)
	if !skx.unmarshal(data) {
		return c.sendAlertLocked(alertDecodeError)
	}
	hs.finishedHash.Write(data)

	if err := hs.keyAgreement.processServerKeyExchange(c.config, hs.hello, hs.serverHello, hs.serverCert, skx); err != nil {
		if a, ok := err.(alert); ok {
			return c.sendAlertLocked(a)
		}
		return c.sendAlertLocked(alertIllegalParameter)
	}
	return nil
}

func (hs *clientHandshakeState) readCertificateRequest() (bool, *certificateRequestMsg, error) {
	c := hs.c
	data, ok, err := c.peekHandshakeMsg(typeCertificateRequest)
	if err != nil || !ok {
		return false, nil, err
	}
	cr := new(certificateRequestMsg)
	if !cr.unmarshal(data) {
		return false, nil, c.sendAlertLocked(alertDecodeError)
	}
	hs.finishedHash.Write(data)
	return true, cr, nil
}

func (hs *clientHandshakeState) readServerHelloDone() error {
	c := hs.c
	typ, data, err := c.readHandshakeMsg()
	if err != nil {
		return err
	}
	if typ != typeServerHelloDone {
		return c.sendAlertLocked(alertUnexpectedMessage)
	}
	shd := new(serverHelloDoneMsg)
	if !shd.unmarshal(data) {
		return c.sendAlertLocked(alertDecodeError)
	}
	hs.finishedHash.Write(data)
	return nil
}

// sendClientFlight emits, in order, the optional Certificate,
// ClientKeyExchange, optional CertificateVerify, ChangeCipherSpec, and
// Finished — spec §4.5 "Client flight".
func (hs *clientHandshakeState) sendClientFlight(certRequested bool, certReq *certificateRequestMsg) error {
	c := hs.c

	if certRequested {
		cm := &certificateMsg{}
		if cert, sh, ok := selectClientCertificate(c.config, certReq); ok {
			hs.clientCert = cert
			hs.clientSignatureAndHash = sh
			cm.certificates = cert.Certificate
		}
		msg := cm.marshal()
		hs.finishedHash.Write(msg)
		if _, err := c.writeRecordLocked(recordTypeHandshake, msg); err != nil {
			return err
		}
	}

	preMaster, ckx, err := hs.keyAgreement.generateClientKeyExchange(c.config, hs.hello, hs.serverCert)
	if err != nil {
		if a, ok := err.(alert); ok {
			return c.sendAlertLocked(a)
		}
		return c.sendAlertLocked(alertInternalError)
	}
	ckxMsg := ckx.marshal()
	hs.finishedHash.Write(ckxMsg)
	if _, err := c.writeRecordLocked(recordTypeHandshake, ckxMsg); err != nil {
		return err
	}

	hs.masterSecret = masterFromPreMasterSecret(hs.finishedHash.prfHash, preMaster, c.clientRandom[:], c.serverRandom[:])
	zero(preMaster)

	if hs.clientCert != nil {
		// CertificateVerify always signs the SHA-1 transcript sum, per
		// spec §4.5 — independent of whatever hash selectSignatureAndHash
		// paired with the chosen signature algorithm.
		digest := hs.finishedHash.certificateVerifySum()
		sig, err := signCertificateVerify(c.config.rand(), hs.clientCert.PrivateKey, hashSHA1, hs.clientSignatureAndHash.signature, digest)
		if err != nil {
			return c.sendAlertLocked(alertInternalError)
		}
		cv := &certificateVerifyMsg{
			hashAlgorithm:      hashSHA1,
			signatureAlgorithm: hs.clientSignatureAndHash.signature,
			signature:          sig,
		}
		msg := cv.marshal()
		hs.finishedHash.Write(msg)
		if _, err := c.writeRecordLocked(recordTypeHandshake, msg); err != nil {
			return err
		}
	}

	if _, err := c.writeRecordLocked(recordTypeChangeCipherSpec, []byte{1}); err != nil {
		return err
	}
	hs.adoptWriteCipher()

	clientVerifyData := hs.finishedHash.clientSum(hs.masterSecret)
	fin := &finishedMsg{verifyData: clientVerifyData}
	finMsg := fin.marshal()
	hs.finishedHash.writeServerOnly(finMsg)
	if _, err := c.writeRecordLocked(recordTypeHandshake, finMsg); err != nil {
		return err
	}
	c.clientVerifyData = clientVerifyData
	c.forwardSecret = hs.suite.flags&(suiteECDHE|suiteDHE) != 0
	return nil
}

// adoptWriteCipher derives the key block and installs the write half of
// the new cipher state, and stashes the read half for installation once
// the server's own ChangeCipherSpec arrives — spec §4.5 "Key expansion"
// and §3 "on each ChangeCipherSpec activation, the corresponding sequence
// number resets to 0".
func (hs *clientHandshakeState) adoptWriteCipher() {
	c := hs.c
	suite := hs.suite

	ivLen := 0
	if suite.aead != nil {
		ivLen = suite.ivLen
	}
	clientMAC, serverMAC, clientKey, serverKey, clientIV, serverIV := keysFromMasterSecret(
		hs.finishedHash.prfHash, hs.masterSecret, c.clientRandom[:], c.serverRandom[:], suite.macLen, suite.keyLen, ivLen)

	c.out = halfConn{suite: suite}
	if suite.aead != nil {
		c.out.aead = suite.aead(clientKey, clientIV)
	} else {
		c.out.macKey = clientMAC
		c.out.cbcKey = clientKey
	}

	c.in.pendingSuite = suite
	c.in.pendingMAC = serverMAC
	c.in.pendingKey = serverKey
	c.in.pendingIV = serverIV

	// The AEAD constructors copy their key and nonce, so only those client
	// slices are retired here; the CBC keys and the stashed read half are
	// still referenced by c.out and c.in.
	if suite.aead != nil {
		zeroAll(clientKey, clientIV)
	}
}

// readServerFinishedFlight reads the server's ChangeCipherSpec and
// Finished, verifying verify_data — spec §4.5 "Finished".
func (hs *clientHandshakeState) readServerFinishedFlight() error {
	c := hs.c

	if err := c.readChangeCipherSpec(); err != nil {
		return err
	}

	suite := c.in.pendingSuite
	pendingMAC, pendingKey, pendingIV := c.in.pendingMAC, c.in.pendingKey, c.in.pendingIV
	c.in = halfConn{suite: suite}
	if suite.aead != nil {
		c.in.aead = suite.aead(pendingKey, pendingIV)
	} else {
		c.in.macKey = pendingMAC
		c.in.cbcKey = pendingKey
	}

	typ, data, err := c.readHandshakeMsg()
	if err != nil {
		return err
	}
	if typ != typeFinished {
		return c.sendAlertLocked(alertUnexpectedMessage)
	}
	fin := new(finishedMsg)
	if !fin.unmarshal(data) {
		return c.sendAlertLocked(alertDecodeError)
	}

	want := hs.finishedHash.serverSum(hs.masterSecret)
	if !constantTimeVerifyDataEqual(fin.verifyData, want) {
		return c.sendAlertLocked(alertDecryptError)
	}
	c.serverVerifyData = fin.verifyData
	return nil
}

// selectClientCertificate returns the first configured certificate whose
// private key type matches an entry of the request's signature_algorithms;
// the request's certificate types and issuer names are not consulted. An
// empty Certificate message is sent when nothing matches.
func selectClientCertificate(config *Config, req *certificateRequestMsg) (*Certificate, signatureAndHash, bool) {
	for i := range config.Certificates {
		cert := &config.Certificates[i]
		if cert.PrivateKey == nil {
			continue
		}
		sh, ok := selectSignatureAndHash(cert.PrivateKey, req.signatureAndHashes)
		if !ok {
			continue
		}
		return cert, sh, true
	}
	return nil, signatureAndHash{}, false
}
