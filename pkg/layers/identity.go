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

// ExtendedSystemType marks the system type nibble as extended: the
// real system type follows in its own byte.
const ExtendedSystemType uint8 = 0x0F

// Identification payload as carried by MsgIdentifyReply (and by the
// reply to a MsgIdentify command):
//   Byte 0   bits 7:4 electronics system type, bits 3:0 major version
//   Byte 1   bits 7:1 minor version, bit 0 stable flag
//   Byte 2   system type, present only when the nibble in byte 0 is
//            0b1111
//   Rest     ASCII string with additional information
type Identification struct {
	SystemType uint8  `json:"SystemType"`
	Major      uint8  `json:"Major"`
	Minor      uint8  `json:"Minor"`
	Stable     bool   `json:"Stable"`
	Info       string `json:"Info,omitempty"`
}

// EncodeIdentification builds the identification payload bytes. System
// types that do not fit the 4-bit field (0x0F and up) are carried in
// the extended byte.
func EncodeIdentification(ident *Identification) []byte {
	nibble := ident.SystemType
	extended := nibble >= ExtendedSystemType
	if extended {
		nibble = ExtendedSystemType
	}
	data := make([]byte, 2, 3+len(ident.Info))
	data[0] = nibble<<4 | ident.Major&0x0F
	data[1] = ident.Minor << 1
	if ident.Stable {
		data[1] |= 0x01
	}
	if extended {
		data = append(data, ident.SystemType)
	}
	return append(data, []byte(ident.Info)...)
}

// DecodeIdentification parses an identification payload.
func DecodeIdentification(data []byte) (*Identification, error) {
	if len(data) < 2 {
		return nil, ErrEmptyPayload{ID: MsgIdentifyReply}
	}
	ident := &Identification{
		SystemType: data[0] >> 4,
		Major:      data[0] & 0x0F,
		Minor:      data[1] >> 1,
		Stable:     data[1]&0x01 == 0x01,
	}
	rest := data[2:]
	if ident.SystemType == ExtendedSystemType {
		if len(rest) < 1 {
			return nil, ErrEmptyPayload{ID: MsgIdentifyReply}
		}
		ident.SystemType = rest[0]
		rest = rest[1:]
	}
	ident.Info = string(rest)
	return ident, nil
}

// StatusMaxTextLength limits the friendly state string carried by
// MsgStatusReply.
const StatusMaxTextLength = 16

// Status payload as carried by MsgStatusReply: one state byte followed
// by up to 16 ASCII characters with a friendly rendering of the state.
type Status struct {
	Code uint8  `json:"Code"`
	Text string `json:"Text,omitempty"`
}

// EncodeStatus builds the status payload bytes, truncating the text to
// StatusMaxTextLength.
func EncodeStatus(status *Status) []byte {
	text := status.Text
	if len(text) > StatusMaxTextLength {
		text = text[:StatusMaxTextLength]
	}
	data := make([]byte, 1, 1+len(text))
	data[0] = status.Code
	return append(data, []byte(text)...)
}

// DecodeStatus parses a status payload.
func DecodeStatus(data []byte) (*Status, error) {
	if len(data) < 1 {
		return nil, ErrEmptyPayload{ID: MsgStatusReply}
	}
	return &Status{
		Code: data[0],
		Text: string(data[1:]),
	}, nil
}
