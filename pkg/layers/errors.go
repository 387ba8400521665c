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
	"fmt"
)

// ErrShortPacket returned when a decoded packet is shorter than the
// network-layer header.
type ErrShortPacket struct {
	Length int
}

func (e ErrShortPacket) Error() string {
	return fmt.Sprintf("Packet shorter than header: %d bytes", e.Length)
}

// ErrEmptyPayload returned when a reserved reply payload is missing its
// fixed leading bytes.
type ErrEmptyPayload struct {
	ID MessageID
}

func (e ErrEmptyPayload) Error() string {
	return fmt.Sprintf("Empty payload for message %s", e.ID)
}
