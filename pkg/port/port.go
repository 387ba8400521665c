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

package port

import (
	"io"

	"go.bug.st/serial"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/log"
)

// Port is the byte sink/source for one link. The protocol core is
// transport-agnostic: anything that moves bytes in order will do.
type Port interface {
	io.ReadWriteCloser
}

// Open opens the UART behind a configured link: 8 data bits, no
// parity, 1 stop bit.
func Open(link *config.Link) (Port, error) {
	baud := link.Baud
	if baud == 0 {
		baud = config.DefaultBaudRate
	}
	log.Debug("Opening serial port: device: %s baud: %d", link.Device, baud)
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(link.Device, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}
