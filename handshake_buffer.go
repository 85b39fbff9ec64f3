// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tls

// maxHandshakeMessagesPerFlight bounds how many handshake messages
// handshakeBuffer may return before ServerHelloDone arrives, per spec
// §4.4 "more than five handshake messages queued in one flight without a
// terminating message is fatal".
const maxHandshakeMessagesPerFlight = 5

// handshakeBuffer reassembles a stream of Handshake-content-type records
// into complete handshake messages (spec §4.4: a single handshake message
// may span several records, and several messages may share one record).
// It applies no HelloRequest policy: a HelloRequest is returned like any
// other message and the caller decides what to do with it.
type handshakeBuffer struct {
	data     []byte
	queued   int // messages returned by next since resetFlight, counted until ServerHelloDone
	seenDone bool
}

// write appends newly-received handshake-content-type record payload.
func (b *handshakeBuffer) write(p []byte) {
	b.data = append(b.data, p...)
}

// next extracts the next complete handshake message, if any, reporting
// ok=false when more record data is needed first. The returned slice
// includes the 4-byte type+length header.
func (b *handshakeBuffer) next() (msg []byte, ok bool, err error) {
	if len(b.data) < 4 {
		return nil, false, nil
	}
	n := readUint24(b.data[1:4])
	total := 4 + n
	if len(b.data) < total {
		return nil, false, nil
	}
	msg = b.data[:total]
	b.data = b.data[total:]

	if handshakeType(msg[0]) == typeServerHelloDone {
		b.seenDone = true
	}
	if !b.seenDone {
		b.queued++
		if b.queued > maxHandshakeMessagesPerFlight {
			return nil, false, alertUnexpectedMessage
		}
	}
	return msg, true, nil
}

// resetFlight is called once the server's Finished has been verified at
// the end of a (full or renegotiated) handshake, so the per-flight message
// counter starts over for the next handshake.
func (b *handshakeBuffer) resetFlight() {
	b.queued = 0
	b.seenDone = false
}
