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

import (
	"github.com/google/gopacket"
	gopacketlayers "github.com/google/gopacket/layers"

	"github.com/dare-rocketry/go-lbp/pkg/lbp"
)

const (
	// LBPLayerNum identifies the layer. Chosen outside the range used
	// by the gopacket builtin layers.
	LBPLayerNum = 2112
)

// Header is the decoded 3-byte network-layer packet header.
type Header struct {
	Flags       Flags
	Source      byte
	Sequence    byte
	Destination byte
	ID          MessageID
}

// Encode writes the header into buf, which must be at least
// lbp.HeaderLength bytes.
func (h *Header) Encode(buf []byte) {
	buf[0] = byte(h.Flags)&FlagsMask | h.Source&AddressMask
	buf[1] = h.Sequence<<SeqShift&FlagsMask | h.Destination&AddressMask
	buf[2] = byte(h.ID)
}

// Bytes returns the encoded header.
func (h *Header) Bytes() []byte {
	buf := make([]byte, lbp.HeaderLength)
	h.Encode(buf)
	return buf
}

// DecodeHeader reads the header fields from the first three bytes of a
// decoded packet.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < lbp.HeaderLength {
		return Header{}, ErrShortPacket{Length: len(data)}
	}
	return Header{
		Flags:       Flags(data[0] & FlagsMask),
		Source:      data[0] & AddressMask,
		Sequence:    data[1] >> SeqShift,
		Destination: data[1] & AddressMask,
		ID:          MessageID(data[2]),
	}, nil
}

// LBPLayer is the decoded network-layer packet: header plus data. It
// operates on deframed bytes, the link-layer escaping and checksum are
// handled by lbp.Receiver and lbp.EncodeFrame.
type LBPLayer struct {
	gopacketlayers.BaseLayer
	Header
}

var LBPLayerType = gopacket.RegisterLayerType(LBPLayerNum,
	gopacket.LayerTypeMetadata{Name: "LBPLayerType", Decoder: gopacket.DecodeFunc(decodeLBPLayer)})

func (l *LBPLayer) LayerType() gopacket.LayerType {
	return LBPLayerType
}

// SerializeTo serializes the header into bytes and prepends them to the
// SerializeBuffer.
func (l *LBPLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	headerBytes, err := b.PrependBytes(lbp.HeaderLength)
	if err != nil {
		return err
	}
	l.Header.Encode(headerBytes)
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as an LBP packet.
func (l *LBPLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < lbp.HeaderLength {
		df.SetTruncated()
		return ErrShortPacket{Length: len(data)}
	}
	header, err := DecodeHeader(data)
	if err != nil {
		return err
	}
	l.Header = header
	l.BaseLayer = gopacketlayers.BaseLayer{
		Contents: data[:lbp.HeaderLength],
		Payload:  data[lbp.HeaderLength:],
	}
	return nil
}

func (l *LBPLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func decodeLBPLayer(data []byte, p gopacket.PacketBuilder) error {
	l := &LBPLayer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(l.NextLayerType())
}
