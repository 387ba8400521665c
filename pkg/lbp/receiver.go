/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package lbp

import (
	"github.com/dare-rocketry/go-lbp/pkg/log"
)

type rxState int

const (
	rxIdle rxState = iota
	rxReceiving
	rxEscaping
)

// PacketHandler is called with the decoded packet bytes (header plus
// data, checksum already stripped) once a frame passes the residue
// check. An error returned by the handler is propagated to the caller
// of Feed; the receiver itself keeps going.
type PacketHandler func(packet []byte) error

// Receiver deframes a raw byte stream one byte at a time. A start byte
// resynchronizes it from any state, so the stream recovers from
// corruption on the next frame boundary and no persistent error state
// exists. Corrupt or truncated frames are dropped silently.
type Receiver struct {
	handler PacketHandler
	buffer  []byte
	crc     byte
	state   rxState

	// drop counters, diagnostic only
	BadChecksum  uint64
	ShortPackets uint64
}

// NewReceiver creates a receiver in the idle state. The handler must
// not be nil.
func NewReceiver(handler PacketHandler) *Receiver {
	return &Receiver{handler: handler}
}

// Reset discards any partially received frame and returns to idle.
func (r *Receiver) Reset() {
	r.buffer = r.buffer[:0]
	r.crc = 0
	r.state = rxIdle
}

// Feed consumes a single byte. It never blocks and performs O(1) work
// per byte aside from the handler invocation, which runs to completion
// before Feed returns.
func (r *Receiver) Feed(b byte) error {
	if b == FrameStart {
		// start always resynchronizes, nested frames are impossible
		r.buffer = r.buffer[:0]
		r.crc = 0
		r.state = rxReceiving
		return nil
	}

	switch r.state {
	case rxIdle:
		return nil
	case rxEscaping:
		r.append(^b)
		r.state = rxReceiving
		return nil
	}

	switch b {
	case FrameEnd:
		err := r.finish()
		r.state = rxIdle
		return err
	case FrameEscape:
		r.state = rxEscaping
		return nil
	default:
		r.append(b)
		return nil
	}
}

// FeedAll consumes a batch of bytes sequentially. It stops at the first
// handler error; framing errors never surface.
func (r *Receiver) FeedAll(data []byte) error {
	for _, b := range data {
		if err := r.Feed(b); err != nil {
			return err
		}
	}
	return nil
}

func (r *Receiver) append(b byte) {
	r.buffer = append(r.buffer, b)
	r.crc = CRC8Update(r.crc, b)
}

// finish validates the accumulated frame. The buffer holds the decoded
// bytes including the trailing checksum, so the residue must be zero
// and at least the checksum byte must be present.
func (r *Receiver) finish() error {
	if r.crc != 0 || len(r.buffer) < 1 {
		r.BadChecksum++
		log.Debug("Dropping frame with bad checksum: length: %d residue: 0x%02x", len(r.buffer), r.crc)
		return nil
	}
	packet := r.buffer[:len(r.buffer)-1]
	if len(packet) < HeaderLength {
		r.ShortPackets++
		log.Debug("Dropping truncated packet: length: %d", len(packet))
		return nil
	}
	decoded := make([]byte, len(packet))
	copy(decoded, packet)
	return r.handler(decoded)
}
