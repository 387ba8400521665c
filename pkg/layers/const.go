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

package layers

// Header field masks. Byte 0 carries flags in bits 7:6 and the source
// address in bits 5:0, byte 1 carries the sequence number in bits 7:6
// and the destination address in bits 5:0, byte 2 is the message id.
const (
	AddressMask byte = 0x3F
	FlagsMask   byte = 0xC0
	SeqShift         = 6
)

// AddressUnknown is the source address an end device always transmits.
// End devices never know their own address; only routers rewrite this
// field while relaying.
const AddressUnknown byte = 0x3F

// MaxSequence is the highest 2-bit sequence number. The sequence field
// exists so that up to four commands could be pipelined; this package
// tracks a single outstanding command and merely echoes the field.
const MaxSequence byte = 3

// Flags is the 2-bit packet kind carried in the top bits of header
// byte 0.
type Flags byte

const (
	// FlagsCommand packets always elicit exactly one reply.
	FlagsCommand Flags = 0x00
	// FlagsReply packets are sent in reply to commands and never
	// answered.
	FlagsReply Flags = 0x40
	// FlagsNotification packets are fire-and-forget to one destination.
	FlagsNotification Flags = 0x80
	// FlagsBroadcast packets are relayed by routers to all ports.
	FlagsBroadcast Flags = 0xC0
)

var flagsNames = [4]string{"Command", "Reply", "Notification", "Broadcast"}

func (f Flags) String() string {
	return flagsNames[byte(f)>>SeqShift]
}

// MessageID identifies the packet and the meaning of its data. Values
// 0x00-0x0F are reserved by the protocol; the rest are free for
// applications.
type MessageID byte

const (
	// MsgResend used to request retransmission in earlier protocol
	// revisions; replaced by timeouts and now unused.
	MsgResend MessageID = 0x00
	// MsgNack is sent in reply to unknown or unimplemented commands.
	MsgNack MessageID = 0x01
	// MsgIdentify asks a device who it is. If the destination address
	// is AddressUnknown, a router along the way answers instead of
	// forwarding; that rule belongs to routers and is not applied here.
	MsgIdentify MessageID = 0x02
	// MsgIdentifyReply carries the identification payload, sent as a
	// notification in reply to a notification or broadcast MsgIdentify.
	MsgIdentifyReply MessageID = 0x03
	// MsgDiscovery is answered by routers with a list of reachable
	// addresses; end devices NACK it.
	MsgDiscovery MessageID = 0x04
	// MsgDiscoveryReply is sent by routers only.
	MsgDiscoveryReply MessageID = 0x05
	// MsgStatus asks a device for its current status.
	MsgStatus MessageID = 0x06
	// MsgStatusReply carries the status payload.
	MsgStatusReply MessageID = 0x07
	// MsgWindowSize asks for the maximum pipelining depth (1 to 4).
	MsgWindowSize MessageID = 0x08
	// MsgReservedMax is the upper bound of the reserved id range.
	MsgReservedMax MessageID = 0x0F
)

var messageNames = map[MessageID]string{
	MsgResend:         "Resend",
	MsgNack:           "Nack",
	MsgIdentify:       "Identify",
	MsgIdentifyReply:  "IdentifyReply",
	MsgDiscovery:      "Discovery",
	MsgDiscoveryReply: "DiscoveryReply",
	MsgStatus:         "Status",
	MsgStatusReply:    "StatusReply",
	MsgWindowSize:     "WindowSize",
}

// String returns the protocol name of a reserved id, "Reserved" for the
// rest of the reserved range and a hex rendering for application ids.
func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	if id <= MsgReservedMax {
		return "Reserved"
	}
	return "0x" + hexDigits(byte(id))
}

func hexDigits(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}
