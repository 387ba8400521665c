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
)

// loopbackPort is one side of an in-memory crossed pair: writes on one
// side surface as reads on the other. Used by tests and by the device
// emulator demos; there is no flow control beyond the pipe's own
// blocking.
type loopbackPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter
}

func (p *loopbackPort) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *loopbackPort) Write(b []byte) (int, error) {
	return p.writer.Write(b)
}

func (p *loopbackPort) Close() error {
	p.reader.Close()
	return p.writer.Close()
}

// Loopback returns two ports wired to each other.
func Loopback() (Port, Port) {
	ra, wa := io.Pipe()
	rb, wb := io.Pipe()
	return &loopbackPort{reader: ra, writer: wb}, &loopbackPort{reader: rb, writer: wa}
}
