// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func newCBCHalfConnPair(t *testing.T) (write, read *halfConn) {
	t.Helper()
	suite := cipherSuiteByID(TLS_RSA_WITH_AES_128_CBC_SHA256)
	if suite == nil {
		t.Fatal("TLS_RSA_WITH_AES_128_CBC_SHA256 missing from cipherSuites table")
	}
	key := bytes.Repeat([]byte{0x01}, suite.keyLen)
	macKey := bytes.Repeat([]byte{0x02}, suite.macLen)

	write = &halfConn{suite: suite, cbcKey: key, macKey: macKey}
	read = &halfConn{suite: suite, cbcKey: key, macKey: macKey}
	return
}

func newGCMHalfConnPair(t *testing.T) (write, read *halfConn) {
	t.Helper()
	suite := cipherSuiteByID(TLS_RSA_WITH_AES_128_GCM_SHA256)
	if suite == nil {
		t.Fatal("TLS_RSA_WITH_AES_128_GCM_SHA256 missing from cipherSuites table")
	}
	key := bytes.Repeat([]byte{0x03}, suite.keyLen)
	prefix := bytes.Repeat([]byte{0x04}, suite.ivLen)

	write = &halfConn{suite: suite, aead: suite.aead(key, prefix)}
	read = &halfConn{suite: suite, aead: suite.aead(key, prefix)}
	return
}

func newChaCha20HalfConnPair(t *testing.T) (write, read *halfConn) {
	t.Helper()
	suite := cipherSuiteByID(TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305)
	if suite == nil {
		t.Fatal("TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305 missing from cipherSuites table")
	}
	key := bytes.Repeat([]byte{0x07}, suite.keyLen)
	nonceMask := bytes.Repeat([]byte{0x08}, suite.ivLen)

	write = &halfConn{suite: suite, aead: suite.aead(key, nonceMask)}
	read = &halfConn{suite: suite, aead: suite.aead(key, nonceMask)}
	return
}

// TestChaCha20RecordRoundTrip exercises the xorNonceAEAD construction:
// a full 12-byte nonce mask, no explicit nonce on the wire, and a record
// that is exactly ciphertext+tag length (no leading 8-byte nonce prefix
// the way GCM carries one).
func TestChaCha20RecordRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 1024, maxPlaintext} {
		write, read := newChaCha20HalfConnPair(t)
		payload := bytes.Repeat([]byte{0x5c}, n)

		ciphertext, err := write.encrypt(recordTypeApplicationData, payload, rand.Reader)
		if err != nil {
			t.Fatalf("encrypt(n=%d): %v", n, err)
		}
		if want := n + write.aead.Overhead(); len(ciphertext) != want {
			t.Fatalf("ciphertext length = %d, want %d (no explicit nonce on the wire)", len(ciphertext), want)
		}
		plain, err := read.decrypt(recordTypeApplicationData, ciphertext)
		if err != nil {
			t.Fatalf("decrypt(n=%d): %v", n, err)
		}
		if !bytes.Equal(plain, payload) {
			t.Fatalf("round trip mismatch at n=%d", n)
		}
	}
}

func TestChaCha20RecordSequenceNumberMismatchFailsMAC(t *testing.T) {
	write, read := newChaCha20HalfConnPair(t)
	ciphertext, err := write.encrypt(recordTypeApplicationData, []byte("first record"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	// Encrypt a second record so write's sequence number advances past
	// read's, then feed the first ciphertext to read out of order: with no
	// nonce on the wire, read derives the nonce purely from its own
	// sequence number, so a desynchronised sequence must fail to decrypt.
	if _, err := write.encrypt(recordTypeApplicationData, []byte("second record"), rand.Reader); err != nil {
		t.Fatal(err)
	}
	read.incSeq()
	if _, err := read.decrypt(recordTypeApplicationData, ciphertext); err != alertBadRecordMAC {
		t.Fatalf("decrypt with desynchronised sequence number = %v, want alertBadRecordMAC", err)
	}
}

func TestCBCRecordRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 255, 1024, maxPlaintext} {
		write, read := newCBCHalfConnPair(t)
		payload := bytes.Repeat([]byte{0x5a}, n)

		ciphertext, err := write.encrypt(recordTypeApplicationData, payload, rand.Reader)
		if err != nil {
			t.Fatalf("encrypt(n=%d): %v", n, err)
		}
		plain, err := read.decrypt(recordTypeApplicationData, ciphertext)
		if err != nil {
			t.Fatalf("decrypt(n=%d): %v", n, err)
		}
		if !bytes.Equal(plain, payload) {
			t.Fatalf("round trip mismatch at n=%d", n)
		}
	}
}

func TestCBCRecordSequenceNumberAdvances(t *testing.T) {
	write, read := newCBCHalfConnPair(t)
	payload := []byte("hello")

	for i := 0; i < 3; i++ {
		ciphertext, err := write.encrypt(recordTypeApplicationData, payload, rand.Reader)
		if err != nil {
			t.Fatalf("encrypt #%d: %v", i, err)
		}
		if _, err := read.decrypt(recordTypeApplicationData, ciphertext); err != nil {
			t.Fatalf("decrypt #%d: %v", i, err)
		}
	}
	if write.seq != read.seq {
		t.Fatalf("seq mismatch after 3 records: write=%x read=%x", write.seq, read.seq)
	}
	want := [8]byte{0, 0, 0, 0, 0, 0, 0, 3}
	if write.seq != want {
		t.Fatalf("seq = %x, want %x", write.seq, want)
	}
}

func TestCBCRecordTamperedCiphertextFailsMAC(t *testing.T) {
	write, read := newCBCHalfConnPair(t)
	ciphertext, err := write.encrypt(recordTypeApplicationData, []byte("tamper me"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xff

	if _, err := read.decrypt(recordTypeApplicationData, ciphertext); err != alertBadRecordMAC {
		t.Fatalf("decrypt of tampered ciphertext = %v, want alertBadRecordMAC", err)
	}
}

func TestCBCRecordTamperedHeaderFailsMAC(t *testing.T) {
	write, read := newCBCHalfConnPair(t)
	ciphertext, err := write.encrypt(recordTypeApplicationData, []byte("same ciphertext"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	// Decrypting under the wrong content type changes the MAC'd header
	// without touching the ciphertext itself.
	if _, err := read.decrypt(recordTypeHandshake, ciphertext); err != alertBadRecordMAC {
		t.Fatalf("decrypt under mismatched content type = %v, want alertBadRecordMAC", err)
	}
}

func TestCBCRecordPaddingBoundary(t *testing.T) {
	// Sweep payload lengths across a full AES block so paddingLen cycles
	// through every value in [0, blockSize-1], including the exact
	// block-boundary case where no padding byte beyond the length byte
	// itself is needed.
	for n := 0; n < 32; n++ {
		write, read := newCBCHalfConnPair(t)
		payload := bytes.Repeat([]byte{0x5a}, n)

		ciphertext, err := write.encrypt(recordTypeApplicationData, payload, rand.Reader)
		if err != nil {
			t.Fatalf("encrypt(n=%d): %v", n, err)
		}
		plain, err := read.decrypt(recordTypeApplicationData, ciphertext)
		if err != nil {
			t.Fatalf("decrypt(n=%d): %v", n, err)
		}
		if !bytes.Equal(plain, payload) {
			t.Fatalf("round trip mismatch at n=%d", n)
		}
	}
}

func TestGCMRecordRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 1024, maxPlaintext} {
		write, read := newGCMHalfConnPair(t)
		payload := bytes.Repeat([]byte{0x5b}, n)

		ciphertext, err := write.encrypt(recordTypeApplicationData, payload, rand.Reader)
		if err != nil {
			t.Fatalf("encrypt(n=%d): %v", n, err)
		}
		plain, err := read.decrypt(recordTypeApplicationData, ciphertext)
		if err != nil {
			t.Fatalf("decrypt(n=%d): %v", n, err)
		}
		if !bytes.Equal(plain, payload) {
			t.Fatalf("round trip mismatch at n=%d", n)
		}
	}
}

func TestGCMRecordTamperedCiphertextFailsMAC(t *testing.T) {
	write, read := newGCMHalfConnPair(t)
	ciphertext, err := write.encrypt(recordTypeApplicationData, []byte("aead tamper"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xff

	if _, err := read.decrypt(recordTypeApplicationData, ciphertext); err != alertBadRecordMAC {
		t.Fatalf("decrypt of tampered GCM record = %v, want alertBadRecordMAC", err)
	}
}

func TestNullCipherPassesThrough(t *testing.T) {
	hc := &halfConn{}
	payload := []byte("plaintext before the first ChangeCipherSpec")

	ciphertext, err := hc.encrypt(recordTypeHandshake, payload, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ciphertext, payload) {
		t.Fatal("null cipher should pass the payload through unchanged")
	}
	plain, err := hc.decrypt(recordTypeHandshake, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, payload) {
		t.Fatal("null cipher decrypt should pass the payload through unchanged")
	}
}

func TestHandshakeBufferReassemblesSpanningMessage(t *testing.T) {
	var hb handshakeBuffer
	body := bytes.Repeat([]byte{0x09}, 4000)
	full := wrapHandshake(typeCertificate, body)

	// Feed the message across many small chunks, as if it arrived split
	// over several records.
	const chunk = 250
	for i := 0; i < len(full); i += chunk {
		end := i + chunk
		if end > len(full) {
			end = len(full)
		}
		hb.write(full[i:end])

		msg, ok, err := hb.next()
		if err != nil {
			t.Fatalf("next() returned error before message was complete: %v", err)
		}
		if end < len(full) {
			if ok {
				t.Fatal("next() reported a complete message before all bytes arrived")
			}
			continue
		}
		if !ok {
			t.Fatal("next() did not report completion once all bytes arrived")
		}
		if !bytes.Equal(msg, full) {
			t.Fatal("reassembled message does not match the original")
		}
	}
}

func TestHandshakeBufferFlightLimit(t *testing.T) {
	var hb handshakeBuffer
	// Six non-terminating handshake messages in one flight should be fatal.
	for i := 0; i < maxHandshakeMessagesPerFlight; i++ {
		hb.write(wrapHandshake(typeCertificate, nil))
		if _, _, err := hb.next(); err != nil {
			t.Fatalf("message %d unexpectedly rejected: %v", i, err)
		}
	}
	hb.write(wrapHandshake(typeCertificate, nil))
	if _, _, err := hb.next(); err != alertUnexpectedMessage {
		t.Fatalf("6th queued message = %v, want alertUnexpectedMessage", err)
	}
}

func TestHandshakeBufferServerHelloDoneResetsCounter(t *testing.T) {
	var hb handshakeBuffer
	for i := 0; i < maxHandshakeMessagesPerFlight; i++ {
		hb.write(wrapHandshake(typeCertificate, nil))
		if _, _, err := hb.next(); err != nil {
			t.Fatalf("message %d unexpectedly rejected: %v", i, err)
		}
	}
	hb.write(wrapHandshake(typeServerHelloDone, nil))
	if _, ok, err := hb.next(); err != nil || !ok {
		t.Fatalf("ServerHelloDone rejected: ok=%v err=%v", ok, err)
	}
	hb.resetFlight()

	hb.write(wrapHandshake(typeCertificate, nil))
	if _, _, err := hb.next(); err != nil {
		t.Fatalf("first message of new flight unexpectedly rejected: %v", err)
	}
}
