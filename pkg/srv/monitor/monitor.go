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

package monitor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/lbp"
	"github.com/dare-rocketry/go-lbp/pkg/log"
	"github.com/dare-rocketry/go-lbp/pkg/port"
	"github.com/dare-rocketry/go-lbp/pkg/srv"
)

// link pairs an open serial port with a write mutex so replies and
// injected packets never interleave on the wire.
type link struct {
	name string
	port port.Port
	mu   sync.Mutex
}

func (l *link) write(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.port.Write(frame)
	return err
}

// MonitorServer listens on every configured serial link, decodes the
// frames flowing by and keeps a per-device record of the identify and
// status replies it sees.
type MonitorServer struct {
	srv.Server
	state *State
	api   *ApiServer
	links map[string]*link
}

func NewMonitorServer(ctx context.Context, cfg *config.Config) (*MonitorServer, error) {
	log.Info("Initializing monitor server: links: %d db: %s", len(cfg.Links), cfg.DBPath)

	state, err := NewState(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &MonitorServer{
		Server: srv.Server{
			Context: ctx,
			Config:  cfg,
			ChIn:    make(chan srv.InPacket),
		},
		state: state,
		links: make(map[string]*link),
	}

	apiServer, err := NewApiServer(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	s.api = apiServer

	return s, nil
}

// Send frames a packet and writes it to the named link.
func (s *MonitorServer) Send(linkName string, header layers.Header, data []byte) error {
	l, ok := s.links[linkName]
	if !ok {
		return config.ErrLinkNotFound{Name: linkName}
	}
	log.Debug("Sending packet: link: %s flags: %s destination: 0x%02x id: %s",
		linkName, header.Flags, header.Destination, header.ID)
	return l.write(lbp.EncodeFrame(append(header.Bytes(), data...)))
}

// capture pumps one serial port into the input queue. Every decoded
// packet is tagged with the link name so the consumer knows where it
// came from.
func (s *MonitorServer) capture(l *link, errChan chan<- error) {
	rx := lbp.NewReceiver(func(packet []byte) error {
		captureInfo := gopacket.CaptureInfo{
			Length:        len(packet),
			CaptureLength: len(packet),
			Timestamp:     time.Now(),
			AncillaryData: []interface{}{l.name},
		}
		in := srv.InPacket{CaptureInfo: captureInfo, Data: make([]byte, len(packet))}
		copy(in.Data, packet)
		select {
		case s.ChIn <- in:
			return nil
		case <-s.Done():
			return s.Err()
		}
	})

	buffer := make([]byte, 2048)
	for {
		length, err := l.port.Read(buffer)
		if length > 0 {
			if feedErr := rx.FeedAll(buffer[:length]); feedErr != nil {
				errChan <- feedErr
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			errChan <- err
			return
		}
	}
}

// record updates the device database from one decoded packet.
func (s *MonitorServer) record(packet gopacket.Packet) {
	layer := packet.Layer(layers.LBPLayerType)
	if layer == nil {
		return
	}
	lbpLayer, ok := layer.(*layers.LBPLayer)
	if !ok {
		log.Error("Error while asserting to LBPLayer")
		return
	}
	linkName, err := srv.GetLinkName(packet)
	if err != nil {
		log.Error("Error while getting link name: %s", err)
		return
	}

	source := lbpLayer.Source
	if source == layers.AddressUnknown {
		// un-routed traffic carries no usable source address
		return
	}

	rec, err := s.state.GetRecord(linkName, source)
	if err != nil {
		log.Error("Error while reading device record: link: %s source: 0x%02x error: %s",
			linkName, source, err)
		return
	}
	if rec == nil {
		rec = &DeviceRecord{Link: linkName, Source: source}
	}
	rec.Timestamp = srv.Now()
	rec.LastID = lbpLayer.ID.String()

	switch lbpLayer.ID {
	case layers.MsgIdentifyReply, layers.MsgIdentify:
		if lbpLayer.Flags == layers.FlagsReply || lbpLayer.Flags == layers.FlagsNotification {
			if ident, decodeErr := layers.DecodeIdentification(lbpLayer.LayerPayload()); decodeErr == nil {
				rec.Identity = ident
			}
		}
	case layers.MsgStatusReply, layers.MsgStatus:
		if lbpLayer.Flags == layers.FlagsReply || lbpLayer.Flags == layers.FlagsNotification {
			if status, decodeErr := layers.DecodeStatus(lbpLayer.LayerPayload()); decodeErr == nil {
				rec.Status = status
			}
		}
	}

	if err := s.state.SetRecord(rec); err != nil {
		log.Error("Error while updating device record: link: %s source: 0x%02x error: %s",
			linkName, source, err)
	}
}

func (s *MonitorServer) Run() error {
	for _, cfgLink := range s.Config.Links {
		p, err := port.Open(cfgLink)
		if err != nil {
			return err
		}
		s.links[cfgLink.Name] = &link{name: cfgLink.Name, port: p}
	}
	defer func() {
		for _, l := range s.links {
			l.port.Close()
		}
		s.state.Close()
	}()

	errChan := make(chan error, len(s.links)+1)

	// Read frames from every link and put them to the input queue
	for _, l := range s.links {
		go s.capture(l, errChan)
	}

	// Read captured packets from the input queue, parse them and
	// update the device database
	go func() {
		source := gopacket.NewPacketSource(s, layers.LBPLayerType)
		for packet := range source.Packets() {
			s.record(packet)
		}
	}()

	go func() {
		errChan <- s.api.Run()
	}()

	select {
	case <-s.Context.Done():
		return s.Context.Err()
	case err := <-errChan:
		return err
	}
}
