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

package device

import (
	"context"
	"io"
	"sync"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/lbp"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/log"
)

// Packet is the decoded view handed to application handlers: the
// sender, the echoed sequence number, the message id and the data
// bytes. It is valid only for the duration of the handler call.
type Packet struct {
	Source   byte
	Sequence byte
	ID       layers.MessageID
	Data     []byte
}

// Handlers are the application callbacks of an end device. Any of them
// may be left nil; New fills the gaps with config-driven defaults, so
// dispatch never has to nil-check. The fill handlers return the payload
// to send, the command handler returns (data, true) to acknowledge with
// an echo of the incoming id or (_, false) to NACK.
type Handlers struct {
	Command            func(p *Packet) ([]byte, bool)
	Asynchronous       func(p *Packet)
	Reply              func(p *Packet)
	FillIdentification func(p *Packet) []byte
	FillStatus         func(p *Packet) []byte
	WindowSize         func(p *Packet) []byte
}

// Device interprets decoded packets against the protocol decision
// table and composes any required reply. One instance per link. Reads
// feed it through Feed/FeedAll/Run; writes go out through the
// transport. The pending transmit header and buffer are guarded by a
// single mutex so a reply is never sent half-mutated when the
// application transmits concurrently with dispatch.
type Device struct {
	handlers  Handlers
	transport io.ReadWriter
	rx        *lbp.Receiver

	mu       sync.Mutex
	txHeader layers.Header
	txData   []byte
}

// New builds a device on a transport. cfg seeds the default identify,
// status and window size replies; nil means the stock defaults.
func New(cfg *config.Config, transport io.ReadWriter, handlers Handlers) (*Device, error) {
	if transport == nil {
		return nil, ErrNilTransport{}
	}
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	if handlers.Command == nil {
		handlers.Command = func(*Packet) ([]byte, bool) { return nil, false }
	}
	if handlers.Asynchronous == nil {
		handlers.Asynchronous = func(*Packet) {}
	}
	if handlers.Reply == nil {
		handlers.Reply = func(*Packet) {}
	}
	if handlers.FillIdentification == nil {
		identity := cfg.Identity
		if identity == nil {
			// a config file may carry identity: null
			identity = config.NewDefaultConfig().Identity
		}
		handlers.FillIdentification = func(*Packet) []byte {
			return layers.EncodeIdentification(identity)
		}
	}
	if handlers.FillStatus == nil {
		status := cfg.Status
		if status == nil {
			status = config.NewDefaultConfig().Status
		}
		handlers.FillStatus = func(*Packet) []byte {
			return layers.EncodeStatus(status)
		}
	}
	if handlers.WindowSize == nil {
		window := cfg.Window
		if window < 1 || window > 4 {
			window = config.DefaultWindow
		}
		handlers.WindowSize = func(*Packet) []byte { return []byte{window} }
	}

	d := &Device{
		handlers:  handlers,
		transport: transport,
	}
	d.rx = lbp.NewReceiver(d.handlePacket)
	return d, nil
}

// Feed consumes one raw byte from the link. Dispatch of a completed
// packet, including any reply transmission, runs to completion before
// Feed returns. A transmit failure is returned to the caller and never
// retried.
func (d *Device) Feed(b byte) error {
	return d.rx.Feed(b)
}

// FeedAll consumes a batch of raw bytes sequentially.
func (d *Device) FeedAll(data []byte) error {
	return d.rx.FeedAll(data)
}

// Run pumps the transport into the receiver until the context is done,
// the transport fails, or a reply transmission fails. Transmit errors
// raised while dispatching surface to the caller and stop the loop.
// Closing the transport from another goroutine is the way to unblock a
// pending read.
func (d *Device) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := d.transport.Read(buf)
		if n > 0 {
			if feedErr := d.FeedAll(buf[:n]); feedErr != nil {
				return feedErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handlePacket is the receiver callback. The receiver guarantees at
// least a full header.
func (d *Device) handlePacket(data []byte) error {
	header, err := layers.DecodeHeader(data)
	if err != nil {
		return nil
	}
	p := &Packet{
		Source:   header.Source,
		Sequence: header.Sequence,
		ID:       header.ID,
		Data:     data[lbp.HeaderLength:],
	}
	log.Debug("Dispatching packet: flags: %s source: 0x%02x id: %s length: %d",
		header.Flags, header.Source, header.ID, len(p.Data))

	switch header.Flags {
	case layers.FlagsCommand:
		return d.handleCommand(header, p)
	case layers.FlagsReply:
		d.handlers.Reply(p)
		return nil
	default: // Notification or Broadcast
		return d.handleAsynchronous(header, p)
	}
}

// handleCommand always transmits exactly one reply: an echo of the
// incoming id with data, or a NACK with empty data.
func (d *Device) handleCommand(header layers.Header, p *Packet) error {
	id := header.ID
	var data []byte

	switch header.ID {
	case layers.MsgResend, layers.MsgNack, layers.MsgIdentifyReply,
		layers.MsgDiscovery, layers.MsgDiscoveryReply, layers.MsgStatusReply:
		// these never arrive as legitimate commands at an end device
		id = layers.MsgNack
	case layers.MsgIdentify:
		data = d.handlers.FillIdentification(p)
	case layers.MsgStatus:
		data = d.handlers.FillStatus(p)
	case layers.MsgWindowSize:
		data = d.handlers.WindowSize(p)
	default:
		if out, ack := d.handlers.Command(p); ack {
			data = out
		} else {
			id = layers.MsgNack
		}
	}

	return d.send(layers.Header{
		Flags:       layers.FlagsReply,
		Source:      layers.AddressUnknown,
		Sequence:    header.Sequence,
		Destination: header.Source,
		ID:          id,
	}, data)
}

func (d *Device) handleAsynchronous(header layers.Header, p *Packet) error {
	switch header.ID {
	case layers.MsgResend, layers.MsgNack, layers.MsgDiscovery, layers.MsgWindowSize:
		return nil
	case layers.MsgIdentify:
		return d.send(layers.Header{
			Flags:       layers.FlagsNotification,
			Source:      layers.AddressUnknown,
			Sequence:    header.Sequence,
			Destination: header.Source,
			ID:          layers.MsgIdentifyReply,
		}, d.handlers.FillIdentification(p))
	case layers.MsgStatus:
		return d.send(layers.Header{
			Flags:       layers.FlagsNotification,
			Source:      layers.AddressUnknown,
			Sequence:    header.Sequence,
			Destination: header.Source,
			ID:          layers.MsgStatusReply,
		}, d.handlers.FillStatus(p))
	default:
		d.handlers.Asynchronous(p)
		return nil
	}
}

// Write sends an arbitrary packet. The source address is always
// AddressUnknown; routers along the way fill in the real one.
func (d *Device) Write(flags layers.Flags, destination, sequence byte, id layers.MessageID, data []byte) error {
	return d.send(layers.Header{
		Flags:       flags,
		Source:      layers.AddressUnknown,
		Sequence:    sequence & layers.MaxSequence,
		Destination: destination,
		ID:          id,
	}, data)
}

// Notify sends a fire-and-forget notification to one destination.
func (d *Device) Notify(destination byte, id layers.MessageID, data []byte) error {
	return d.Write(layers.FlagsNotification, destination, 0, id, data)
}

// Broadcast sends a packet relayed by routers to all ports.
func (d *Device) Broadcast(id layers.MessageID, data []byte) error {
	return d.Write(layers.FlagsBroadcast, layers.AddressUnknown, 0, id, data)
}

// send stages the pending header and buffer, frames them and hands the
// bytes to the transport. The mutex spans staging through write. A
// write failure surfaces to the caller; nothing is retried here.
func (d *Device) send(header layers.Header, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txHeader = header
	d.txData = data

	payload := append(d.txHeader.Bytes(), d.txData...)
	d.txData = nil

	frame := lbp.EncodeFrame(payload)
	if _, err := d.transport.Write(frame); err != nil {
		return err
	}
	return nil
}
