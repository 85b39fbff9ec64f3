// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"crypto/x509"
	"io"
	"net"
	"time"
)

const (
	recordHeaderLen = 5
	maxPlaintext    = 1 << 14
	maxCiphertext   = maxPlaintext + 2048
)

// maxBufferedApplicationData is the 10 MiB limit for queued decrypted
// application data. The queue only ever holds the unread tail of a single
// record (see Read), and no code path compares against this limit.
const maxBufferedApplicationData = 10 << 20

// halfConn holds the live state for one direction (read or write) of the
// connection: the negotiated cipher descriptor, its keys, and the 64-bit
// sequence number that resets on every cipher activation (spec §3
// ConnectionState).
type halfConn struct {
	suite *cipherSuite
	seq   [8]byte

	macKey []byte
	cbcKey []byte
	aead   aead

	// pendingSuite/pendingMAC/pendingKey/pendingIV stash the read-side
	// key material derived alongside the write side's, for installation
	// once the peer's own ChangeCipherSpec is observed (read and write
	// activate at different points in the flight).
	pendingSuite *cipherSuite
	pendingMAC   []byte
	pendingKey   []byte
	pendingIV    []byte
}

func (hc *halfConn) incSeq() {
	for i := 7; i >= 0; i-- {
		hc.seq[i]++
		if hc.seq[i] != 0 {
			return
		}
	}
	panic("tls: sequence number wraparound")
}

// additionalData builds seq(8)||type(1)||version(2)||length(2), used both
// as CBC MAC input and GCM/ChaCha20 AAD, per spec §4.3.
func additionalData(seq [8]byte, typ recordType, length int) []byte {
	b := make([]byte, 13)
	copy(b, seq[:])
	b[8] = byte(typ)
	b[9] = byte(VersionTLS12 >> 8)
	b[10] = byte(VersionTLS12 & 0xff)
	b[11] = byte(length >> 8)
	b[12] = byte(length)
	return b
}

func (hc *halfConn) encrypt(typ recordType, payload []byte, rnd io.Reader) ([]byte, error) {
	defer hc.incSeq()

	if hc.suite == nil {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	if hc.aead != nil {
		return hc.encryptAEAD(typ, payload)
	}
	return hc.encryptCBC(typ, payload, rnd)
}

func (hc *halfConn) encryptAEAD(typ recordType, payload []byte) ([]byte, error) {
	nonce := hc.seq[:]
	ad := additionalData(hc.seq, typ, len(payload))
	sealed := hc.aead.Seal(nil, nonce, payload, ad)

	// explicitNonceLen is 8 for the prefix-salt GCM construction (the
	// sequence number rides on the wire) and 0 for the XOR-mask ChaCha20
	// construction (both sides derive the nonce from the sequence number
	// they already track, per RFC 7905).
	explicitNonceLen := hc.aead.explicitNonceLen()
	out := make([]byte, explicitNonceLen+len(sealed))
	copy(out, nonce[:explicitNonceLen])
	copy(out[explicitNonceLen:], sealed)
	return out, nil
}

// encryptCBC implements MAC-then-pad-then-encrypt with a fresh random IV
// per record, per spec §4.3.
func (hc *halfConn) encryptCBC(typ recordType, payload []byte, rnd io.Reader) ([]byte, error) {
	mac := hc.macKeyedMAC(typ, payload)

	blockSize := aes.BlockSize
	plain := make([]byte, 0, len(payload)+len(mac)+blockSize+256)
	plain = append(plain, payload...)
	plain = append(plain, mac...)

	paddingLen := blockSize - (len(plain)+1)%blockSize
	if paddingLen == blockSize {
		paddingLen = 0
	}
	for i := 0; i <= paddingLen; i++ {
		plain = append(plain, byte(paddingLen))
	}

	iv := make([]byte, blockSize)
	if _, err := io.ReadFull(rnd, iv); err != nil {
		return nil, err
	}

	encrypter := hc.suite.cipher(hc.cbcKey, iv, false).(cipher.BlockMode)
	ciphertext := make([]byte, len(plain))
	encrypter.CryptBlocks(ciphertext, plain)

	out := make([]byte, blockSize+len(ciphertext))
	copy(out, iv)
	copy(out[blockSize:], ciphertext)
	return out, nil
}

func (hc *halfConn) macKeyedMAC(typ recordType, payload []byte) []byte {
	header := additionalData(hc.seq, typ, len(payload))[8:]
	return hc.suite.mac(hc.macKey).MAC(hc.seq[:], header, payload, nil)
}

func (hc *halfConn) decrypt(typ recordType, fragment []byte) ([]byte, error) {
	defer hc.incSeq()

	if hc.suite == nil {
		return fragment, nil
	}
	if hc.aead != nil {
		return hc.decryptAEAD(typ, fragment)
	}
	return hc.decryptCBC(typ, fragment)
}

func (hc *halfConn) decryptAEAD(typ recordType, fragment []byte) ([]byte, error) {
	explicitNonceLen := hc.aead.explicitNonceLen()
	if len(fragment) < explicitNonceLen+hc.aead.Overhead() {
		return nil, alertBadRecordMAC
	}
	nonce := fragment[:explicitNonceLen]
	if explicitNonceLen == 0 {
		nonce = hc.seq[:]
	}
	ciphertext := fragment[explicitNonceLen:]

	plaintextLen := len(ciphertext) - hc.aead.Overhead()
	ad := additionalData(hc.seq, typ, plaintextLen)

	plain, err := hc.aead.Open(ciphertext[:0], nonce, ciphertext, ad)
	if err != nil {
		return nil, alertBadRecordMAC
	}
	return plain, nil
}

// constantTimeLessOrEq reports, without branching on either operand,
// whether a <= b. Both inputs here are small lengths (≤ a few KiB), so a
// 32-bit difference never overflows the sign-bit trick.
func constantTimeLessOrEq(a, b int) int {
	x := uint32(b - a)
	return int(1 - (x>>31)&1)
}

const maxPaddingCheck = 256

// decryptCBC decrypts, then validates padding and MAC without branching
// on the first failure encountered — spec §4.3 "evaluated before the
// fatal alert is emitted to avoid leaking which failed via timing", and
// Design Notes "Constant-time CBC verification".
func (hc *halfConn) decryptCBC(typ recordType, fragment []byte) ([]byte, error) {
	blockSize := aes.BlockSize
	macLen := hc.suite.macLen

	if len(fragment) < blockSize+macLen+1 || (len(fragment)-blockSize)%blockSize != 0 {
		return nil, alertBadRecordMAC
	}

	iv := fragment[:blockSize]
	ciphertext := fragment[blockSize:]

	decrypter := hc.suite.cipher(hc.cbcKey, iv, true).(cipher.BlockMode)
	plain := make([]byte, len(ciphertext))
	decrypter.CryptBlocks(plain, ciphertext)

	n := len(plain)
	paddingLen := int(plain[n-1])

	good := constantTimeLessOrEq(paddingLen, n-1-macLen)

	toCheck := maxPaddingCheck
	if toCheck > n {
		toCheck = n
	}
	for i := 0; i < toCheck; i++ {
		pos := n - 1 - i
		include := constantTimeLessOrEq(i, paddingLen)
		eq := subtle.ConstantTimeByteEq(plain[pos], byte(paddingLen))
		good &= (1 - include) | eq
	}

	effectivePaddingLen := paddingLen
	if good == 0 {
		effectivePaddingLen = 0
	}
	payloadLen := n - 1 - effectivePaddingLen - macLen
	if payloadLen < 0 {
		payloadLen = 0
		good = 0
	}

	givenMAC := plain[payloadLen : payloadLen+macLen]
	wantMAC := hc.macKeyedMAC(typ, plain[:payloadLen])

	macOK := subtle.ConstantTimeCompare(givenMAC, wantMAC)
	if good&macOK != 1 {
		return nil, alertBadRecordMAC
	}
	return plain[:payloadLen], nil
}

// Conn is a client-side TLS 1.2 connection layered over an arbitrary byte
// transport, implementing net.Conn. It is the single-threaded,
// cooperative engine named in spec §5: one caller at a time for reads,
// one for writes, with no internal background workers.
type Conn struct {
	conn   net.Conn
	config *Config

	in, out halfConn

	rawInput []byte // bytes read from the transport, not yet a complete record
	hand     handshakeBuffer
	peeked   []byte // one handshake message read ahead to test its type

	vers        uint16
	cipherSuite *cipherSuite

	clientRandom, serverRandom [32]byte
	masterSecret               []byte

	secureRenegotiation bool
	clientVerifyData    []byte
	serverVerifyData    []byte

	handshakeComplete bool
	forwardSecret     bool // true when the negotiated suite allows false start
	hs                *clientHandshakeState // in-progress handshake, retained across a false start

	serverName       string
	peerCertificates []*x509.Certificate
	verifiedChains   [][]*x509.Certificate
	chainStatuses    []ChainStatus

	buffered    [][]byte
	bufferedLen int

	closeNotifySent bool
	closed          bool

	stats ConnStats
}

// ConnStats accumulates non-fatal observations the controller makes but
// does not act on — Design Notes' Open Question on warning alerts.
type ConnStats struct {
	WarningAlertsReceived int
}

// Client returns a new TLS client side connection using conn as the
// underlying transport — spec §6 "Host API consumed by the core".
func Client(conn net.Conn, config *Config) *Conn {
	return &Conn{conn: conn, config: config}
}

// Dial connects to the given network address, wraps it in a Conn, and
// runs the initial handshake before returning.
func Dial(network, addr string, config *Config) (*Conn, error) {
	raw, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	c := Client(raw, config)
	if err := c.Handshake(); err != nil {
		raw.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) readFromTransport(n int) error {
	for len(c.rawInput) < n {
		buf := make([]byte, n-len(c.rawInput))
		m, err := c.conn.Read(buf)
		if m > 0 {
			c.rawInput = append(c.rawInput, buf[:m]...)
		}
		if err != nil {
			return err
		}
		if m == 0 {
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}

// readRecord reads and decrypts exactly one record from the transport,
// returning its content type and plaintext fragment.
func (c *Conn) readRecord() (recordType, []byte, error) {
	if err := c.readFromTransport(recordHeaderLen); err != nil {
		return 0, nil, err
	}
	header := c.rawInput[:recordHeaderLen]
	typ := recordType(header[0])
	vers := uint16(header[1])<<8 | uint16(header[2])
	length := int(header[3])<<8 | int(header[4])

	maxLen := maxPlaintext
	if c.in.suite != nil {
		maxLen = maxCiphertext
	}
	if length > maxLen {
		return 0, nil, c.sendAlertLocked(alertRecordOverflow)
	}
	if vers != 0 && vers != VersionTLS12 {
		return 0, nil, c.sendAlertLocked(alertProtocolVersion)
	}

	if err := c.readFromTransport(recordHeaderLen + length); err != nil {
		return 0, nil, err
	}
	fragment := c.rawInput[recordHeaderLen : recordHeaderLen+length]

	plain, err := c.in.decrypt(typ, fragment)
	c.rawInput = c.rawInput[recordHeaderLen+length:]
	if err != nil {
		if a, ok := err.(alert); ok {
			return 0, nil, c.sendAlertLocked(a)
		}
		return 0, nil, err
	}
	return typ, plain, nil
}

func recordHeader(typ recordType, length int) []byte {
	return []byte{byte(typ), byte(VersionTLS12 >> 8), byte(VersionTLS12 & 0xff), byte(length >> 8), byte(length)}
}

// writeRecordLocked encrypts and writes payload as one or more records of
// at most maxPlaintext bytes each, per spec §4.6 "Writes larger than
// available record space are split".
func (c *Conn) writeRecordLocked(typ recordType, payload []byte) (int, error) {
	written := 0
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > maxPlaintext {
			chunk = chunk[:maxPlaintext]
		}
		fragment, err := c.out.encrypt(typ, chunk, c.config.rand())
		if err != nil {
			return written, err
		}
		record := append(recordHeader(typ, len(fragment)), fragment...)
		if _, err := c.conn.Write(record); err != nil {
			return written, err
		}
		written += len(chunk)
		payload = payload[len(chunk):]
	}
	return written, nil
}

// sendAlertLocked emits a one-record fatal (or close_notify) Alert,
// tears down the connection on fatal alerts, and returns the alert as an
// error for the caller — spec §7.
func (c *Conn) sendAlertLocked(a alert) error {
	level := byte(a.level())
	c.writeRecordLocked(recordTypeAlert, []byte{level, byte(a)})
	if a.level() == alertLevelFatal {
		c.cleanupLocked()
	}
	return a
}

func (c *Conn) cleanupLocked() {
	zeroAll(c.masterSecret, c.out.macKey, c.out.cbcKey, c.in.macKey, c.in.cbcKey)
	c.closed = true
	c.conn.Close()
}

// Handshake performs the initial ClientHello→Finished exchange if it has
// not already completed — spec §6 "perform_initial_handshake()". If a
// prior Write already false-started the handshake, this only completes
// the remaining server Finished step.
func (c *Conn) Handshake() error {
	if c.handshakeComplete {
		return nil
	}
	if c.hs == nil {
		c.hs = &clientHandshakeState{c: c}
		if err := c.hs.runToFlightSent(); err != nil {
			return err
		}
	}
	return c.hs.finish()
}

// readHandshakeMsg returns the next complete handshake message, feeding
// the handshake buffer from records as needed and handling any Alert
// records encountered along the way — spec §4.4/§4.5.
func (c *Conn) readHandshakeMsg() (handshakeType, []byte, error) {
	if c.peeked != nil {
		msg := c.peeked
		c.peeked = nil
		return handshakeType(msg[0]), msg, nil
	}
	for {
		msg, ok, err := c.hand.next()
		if err != nil {
			return 0, nil, c.sendAlertLocked(err.(alert))
		}
		if ok {
			return handshakeType(msg[0]), msg, nil
		}
		typ, data, err := c.readRecord()
		if err != nil {
			return 0, nil, err
		}
		switch typ {
		case recordTypeHandshake:
			c.hand.write(data)
		case recordTypeAlert:
			if err := c.handleAlertLocked(data); err != nil {
				return 0, nil, err
			}
		default:
			return 0, nil, c.sendAlertLocked(alertUnexpectedMessage)
		}
	}
}

// peekHandshakeMsg reads the next handshake message and reports whether
// its type matches want. When it doesn't, the message is stashed for the
// next readHandshakeMsg call instead of being consumed — used for the
// optional ServerKeyExchange/CertificateRequest messages in spec §4.5's
// flight ordering.
func (c *Conn) peekHandshakeMsg(want handshakeType) (data []byte, ok bool, err error) {
	typ, data, err := c.readHandshakeMsg()
	if err != nil {
		return nil, false, err
	}
	if typ == want {
		return data, true, nil
	}
	c.peeked = data
	return nil, false, nil
}

// readChangeCipherSpec reads one ChangeCipherSpec record, requiring the
// handshake buffer to be empty first — spec §4.6 "no buffered handshake
// message may remain".
func (c *Conn) readChangeCipherSpec() error {
	if len(c.hand.data) > 0 {
		return c.sendAlertLocked(alertUnexpectedMessage)
	}
	typ, data, err := c.readRecord()
	if err != nil {
		return err
	}
	if typ != recordTypeChangeCipherSpec {
		return c.sendAlertLocked(alertUnexpectedMessage)
	}
	if len(data) != 1 || data[0] != 1 {
		return c.sendAlertLocked(alertIllegalParameter)
	}
	return nil
}

// Read implements net.Conn. The part of an earlier application-data record
// that did not fit the caller's buffer is drained first. Application data
// that arrives during a handshake is not queued: readHandshakeMsg answers
// it with an unexpected_message alert.
func (c *Conn) Read(b []byte) (int, error) {
	if err := c.Handshake(); err != nil {
		return 0, err
	}
	if c.bufferedLen > 0 {
		chunk := c.buffered[0]
		n := copy(b, chunk)
		if n == len(chunk) {
			c.buffered = c.buffered[1:]
		} else {
			c.buffered[0] = chunk[n:]
		}
		c.bufferedLen -= n
		return n, nil
	}

	for {
		typ, data, err := c.readRecord()
		if err != nil {
			return 0, err
		}
		switch typ {
		case recordTypeApplicationData:
			if len(data) == 0 {
				continue
			}
			n := copy(b, data)
			if n < len(data) {
				c.queueBuffered(data[n:])
			}
			return n, nil
		case recordTypeHandshake:
			if err := c.handleHandshakeRecordLocked(data); err != nil {
				return 0, err
			}
		case recordTypeAlert:
			if err := c.handleAlertLocked(data); err != nil {
				return 0, err
			}
		case recordTypeChangeCipherSpec:
			return 0, c.sendAlertLocked(alertUnexpectedMessage)
		default:
			return 0, c.sendAlertLocked(alertUnexpectedMessage)
		}
	}
}

func (c *Conn) queueBuffered(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.buffered = append(c.buffered, cp)
	c.bufferedLen += len(cp)
}

// handleHandshakeRecordLocked feeds post-handshake Handshake-type records
// (HelloRequest, triggering renegotiation) into the handshake buffer —
// spec §4.6.
func (c *Conn) handleHandshakeRecordLocked(data []byte) error {
	c.hand.write(data)
	for {
		msg, ok, err := c.hand.next()
		if err != nil {
			return c.sendAlertLocked(err.(alert))
		}
		if !ok {
			return nil
		}
		if handshakeType(msg[0]) != typeHelloRequest {
			return c.sendAlertLocked(alertUnexpectedMessage)
		}
		hs := &clientHandshakeState{c: c}
		if err := hs.handshake(); err != nil {
			return err
		}
	}
}

func (c *Conn) handleAlertLocked(data []byte) error {
	if len(data) != 2 {
		return c.sendAlertLocked(alertDecodeError)
	}
	a := alert(data[1])
	if a == alertCloseNotify {
		c.closeNotifyReceived()
		return io.EOF
	}
	if alertLevel(data[0]) == alertLevelFatal {
		c.cleanupLocked()
		return a
	}
	c.stats.WarningAlertsReceived++
	return nil
}

func (c *Conn) closeNotifyReceived() {
	if !c.closeNotifySent {
		c.sendAlertLocked(alertCloseNotify)
	}
	var probe [1]byte
	c.conn.Read(probe[:])
	c.cleanupLocked()
}

// Write implements net.Conn. On a forward-secret ciphersuite, a write
// begun before the server's Finished has been read proceeds once the
// client's own flight is sent, per spec §4.5 "False start"; on RSA/static
// ECDH suites it blocks for the full handshake like Read does.
func (c *Conn) Write(b []byte) (int, error) {
	if !c.handshakeComplete {
		if c.hs == nil {
			c.hs = &clientHandshakeState{c: c}
			if err := c.hs.runToFlightSent(); err != nil {
				return 0, err
			}
		}
		if !c.forwardSecret {
			if err := c.hs.finish(); err != nil {
				return 0, err
			}
		}
	}
	return c.writeRecordLocked(recordTypeApplicationData, b)
}

// Close performs the orderly close_notify exchange named in spec §4.6's
// Alert handling and end-to-end scenario 6.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.sendAlertLocked(alertCloseNotify)
	c.closeNotifySent = true
	var probe [1]byte
	c.conn.Read(probe[:])
	c.cleanupLocked()
	return nil
}

func (c *Conn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline, SetReadDeadline, and SetWriteDeadline pass through to the
// underlying transport. The core itself implements no timeouts (spec §5
// "Cancellation"); a deadline simply turns a blocking transport read or
// write into an I/O error, which this engine already treats as fatal.
func (c *Conn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// HasBufferedReadData reports whether queued application data remains
// from a record that did not fit an earlier Read's buffer — spec §6
// "has_buffered_read_data()".
func (c *Conn) HasBufferedReadData() bool { return c.bufferedLen > 0 }

// ConnectionState exports the subset of handshake results spec §6 names
// as host-visible.
func (c *Conn) ConnectionState() ConnectionState {
	var suiteID uint16
	if c.cipherSuite != nil {
		suiteID = c.cipherSuite.id
	}
	return ConnectionState{
		Version:                       c.vers,
		CipherSuite:                   suiteID,
		ServerName:                    c.serverName,
		PeerCertificates:              c.peerCertificates,
		VerifiedChains:                c.verifiedChains,
		ChainStatuses:                 c.chainStatuses,
		HandshakeComplete:             c.handshakeComplete,
		NegotiatedSecureRenegotiation: c.secureRenegotiation,
	}
}

// Stats returns the connection's accumulated non-fatal observations.
func (c *Conn) Stats() ConnStats { return c.stats }
