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

// Frame delimiters and the escape byte. These three values are reserved
// on the wire: any occurrence inside the frame body is replaced by
// FrameEscape followed by the one's complement of the original byte.
const (
	FrameStart  byte = 0x55
	FrameEnd    byte = 0x5A
	FrameEscape byte = 0x50
)

// HeaderLength is the size of the network-layer packet header. Decoded
// frames shorter than this are dropped by the receiver before any
// handler sees them.
const HeaderLength = 3

// EncodeFrame wraps a decoded byte sequence (header followed by data)
// into a wire frame: start byte, escaped body, escaped checksum, end
// byte. The checksum accumulates the original unescaped bytes; the
// checksum byte itself is escaped on the wire but not re-accumulated.
func EncodeFrame(payload []byte) []byte {
	// worst case every byte escapes
	frame := make([]byte, 0, 2*len(payload)+4)
	frame = append(frame, FrameStart)
	var crc byte
	for _, b := range payload {
		frame = appendEscaped(frame, b)
		crc = CRC8Update(crc, b)
	}
	frame = appendEscaped(frame, crc)
	frame = append(frame, FrameEnd)
	return frame
}

func appendEscaped(frame []byte, b byte) []byte {
	switch b {
	case FrameStart, FrameEnd, FrameEscape:
		return append(frame, FrameEscape, ^b)
	}
	return append(frame, b)
}
