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

// CRC8Poly is the reflected polynomial used for frame integrity.
// The checksum is processed LSB-first, one bit at a time, over every
// header/data byte in transmission order. A frame is valid iff the
// residue after also consuming the trailing checksum byte is zero.
const CRC8Poly = 0x8C

// CRC8Update consumes one byte and returns the new accumulator value.
// It is a pure function of (crc, b).
func CRC8Update(crc, b byte) byte {
	for i := 0; i < 8; i++ {
		odd := (b^crc)&1 == 1
		crc >>= 1
		b >>= 1
		if odd {
			crc ^= CRC8Poly
		}
	}
	return crc
}

// CRC8 computes the checksum of data starting from a zero accumulator.
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = CRC8Update(crc, b)
	}
	return crc
}
