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

package srv

import (
	"context"
	"io"
	"time"

	"github.com/google/gopacket"

	"github.com/dare-rocketry/go-lbp/pkg/config"
)

type InPacket struct {
	Data []byte
	gopacket.CaptureInfo
}

// GetLinkName returns the name of the serial link the packet was
// captured on.
func GetLinkName(packet gopacket.Packet) (string, error) {
	meta := packet.Metadata()
	if len(meta.CaptureInfo.AncillaryData) >= 1 {
		ancillary := meta.CaptureInfo.AncillaryData[0]
		linkName, ok := ancillary.(string)
		if !ok {
			return "", ErrGetLinkName{What: "can not cast ancillary data to string"}
		}
		return linkName, nil
	}
	return "", ErrGetLinkName{What: "no ancillary data"}
}

type Server struct {
	context.Context
	*config.Config
	ChIn chan InPacket
}

// ReadPacketData reads the ChIn channel and returns packet data and metadata.
// This method is from PacketDataSource interface. It reports io.EOF once
// the server context is cancelled so packet sources draining the
// channel terminate instead of blocking forever.
func (s *Server) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	select {
	case p := <-s.ChIn:
		return p.Data, p.CaptureInfo, nil
	case <-s.Done():
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
}

func Now() uint64 {
	return uint64(time.Now().UnixNano()) * uint64(time.Nanosecond) / uint64(time.Millisecond)
}
