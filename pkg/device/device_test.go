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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/lbp"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/port"
)

func commandFrame(source, sequence, destination byte, id layers.MessageID, data []byte) []byte {
	return packetFrame(layers.FlagsCommand, source, sequence, destination, id, data)
}

func packetFrame(flags layers.Flags, source, sequence, destination byte, id layers.MessageID, data []byte) []byte {
	h := layers.Header{
		Flags:       flags,
		Source:      source,
		Sequence:    sequence,
		Destination: destination,
		ID:          id,
	}
	return lbp.EncodeFrame(append(h.Bytes(), data...))
}

type sent struct {
	header layers.Header
	data   []byte
}

// deframe decodes every frame the device wrote to its transport.
func deframe(t *testing.T, raw []byte) []sent {
	t.Helper()
	var out []sent
	rx := lbp.NewReceiver(func(p []byte) error {
		header, err := layers.DecodeHeader(p)
		require.NoError(t, err)
		out = append(out, sent{header: header, data: append([]byte{}, p[lbp.HeaderLength:]...)})
		return nil
	})
	require.NoError(t, rx.FeedAll(raw))
	return out
}

func TestIdentifyCommand(t *testing.T) {
	mock := &port.MockPort{}
	calls := 0
	d, err := New(nil, mock, Handlers{
		FillIdentification: func(p *Packet) []byte {
			calls++
			return []byte{0xB0, 0x01, 'S', 'R', 'P'}
		},
	})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(commandFrame(0x3F, 0, 0x3F, layers.MsgIdentify, nil)))

	assert.Equal(t, 1, calls)
	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	r := replies[0]
	assert.Equal(t, layers.FlagsReply, r.header.Flags)
	assert.Equal(t, byte(0x3F), r.header.Destination)
	assert.Equal(t, byte(0), r.header.Sequence)
	assert.Equal(t, layers.MsgIdentify, r.header.ID)
	assert.Equal(t, []byte{0xB0, 0x01, 'S', 'R', 'P'}, r.data)
}

func TestUnknownCommandWithoutHandlerNacks(t *testing.T) {
	mock := &port.MockPort{}
	d, err := New(nil, mock, Handlers{})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(commandFrame(0x12, 1, 0x3F, layers.MessageID(0x30), []byte{0xAA})))

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	r := replies[0]
	assert.Equal(t, layers.FlagsReply, r.header.Flags)
	assert.Equal(t, layers.MsgNack, r.header.ID)
	assert.Equal(t, byte(0x12), r.header.Destination)
	assert.Equal(t, byte(1), r.header.Sequence)
	assert.Empty(t, r.data)
}

func TestCommandHandlerAckEchoesID(t *testing.T) {
	mock := &port.MockPort{}
	d, err := New(nil, mock, Handlers{
		Command: func(p *Packet) ([]byte, bool) {
			assert.Equal(t, layers.MessageID(0x42), p.ID)
			assert.Equal(t, []byte{0x01, 0x02}, p.Data)
			return []byte{0x99}, true
		},
	})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(commandFrame(0x05, 3, 0x3F, layers.MessageID(0x42), []byte{0x01, 0x02})))

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	assert.Equal(t, layers.MessageID(0x42), replies[0].header.ID)
	assert.Equal(t, byte(3), replies[0].header.Sequence)
	assert.Equal(t, []byte{0x99}, replies[0].data)
}

func TestCommandHandlerNack(t *testing.T) {
	mock := &port.MockPort{}
	d, err := New(nil, mock, Handlers{
		Command: func(p *Packet) ([]byte, bool) { return []byte{0xFF}, false },
	})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(commandFrame(0x05, 0, 0x3F, layers.MessageID(0x42), nil)))

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	assert.Equal(t, layers.MsgNack, replies[0].header.ID)
	assert.Empty(t, replies[0].data)
}

func TestInterceptedCommandsNackWithoutCallback(t *testing.T) {
	intercepted := []layers.MessageID{
		layers.MsgResend, layers.MsgNack, layers.MsgIdentifyReply,
		layers.MsgDiscovery, layers.MsgDiscoveryReply, layers.MsgStatusReply,
	}
	for _, id := range intercepted {
		mock := &port.MockPort{}
		d, err := New(nil, mock, Handlers{
			Command: func(p *Packet) ([]byte, bool) {
				t.Fatalf("command handler must not run for %s", id)
				return nil, false
			},
		})
		require.NoError(t, err)
		require.NoError(t, d.FeedAll(commandFrame(0x07, 2, 0x3F, id, []byte{0x01})))

		replies := deframe(t, mock.Written())
		require.Len(t, replies, 1, "id %s", id)
		assert.Equal(t, layers.MsgNack, replies[0].header.ID, "id %s", id)
		assert.Equal(t, byte(2), replies[0].header.Sequence, "id %s", id)
		assert.Empty(t, replies[0].data, "id %s", id)
	}
}

func TestStatusCommandUsesConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Status = &layers.Status{Code: 0x11, Text: "ARMED"}
	mock := &port.MockPort{}
	d, err := New(cfg, mock, Handlers{})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(commandFrame(0x01, 0, 0x3F, layers.MsgStatus, nil)))

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	assert.Equal(t, layers.MsgStatus, replies[0].header.ID)
	status, err := layers.DecodeStatus(replies[0].data)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x11), status.Code)
	assert.Equal(t, "ARMED", status.Text)
}

func TestNilIdentityConfigFallsBack(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Identity = nil
	cfg.Status = nil
	mock := &port.MockPort{}
	d, err := New(cfg, mock, Handlers{})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.NoError(t, d.FeedAll(commandFrame(0x01, 0, 0x3F, layers.MsgIdentify, nil)))
		require.NoError(t, d.FeedAll(commandFrame(0x01, 1, 0x3F, layers.MsgStatus, nil)))
	})

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 2)
	ident, err := layers.DecodeIdentification(replies[0].data)
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaultConfig().Identity, ident)
	status, err := layers.DecodeStatus(replies[1].data)
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaultConfig().Status, status)
}

func TestWindowSizeCommandDefault(t *testing.T) {
	mock := &port.MockPort{}
	d, err := New(nil, mock, Handlers{})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(commandFrame(0x01, 0, 0x3F, layers.MsgWindowSize, nil)))

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	assert.Equal(t, layers.MsgWindowSize, replies[0].header.ID)
	assert.Equal(t, []byte{config.DefaultWindow}, replies[0].data)
}

func TestReplyPacketNeverAnswered(t *testing.T) {
	mock := &port.MockPort{}
	var got *Packet
	d, err := New(nil, mock, Handlers{
		Reply: func(p *Packet) { got = p },
	})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(packetFrame(layers.FlagsReply, 0x09, 1, 0x3F, layers.MsgNack, []byte{0x55})))

	require.NotNil(t, got)
	assert.Equal(t, byte(0x09), got.Source)
	assert.Equal(t, []byte{0x55}, got.Data)
	assert.Empty(t, mock.Written(), "a reply packet must never generate traffic")
}

func TestNotificationIdentify(t *testing.T) {
	for _, flags := range []layers.Flags{layers.FlagsNotification, layers.FlagsBroadcast} {
		mock := &port.MockPort{}
		d, err := New(nil, mock, Handlers{
			FillIdentification: func(p *Packet) []byte { return []byte{0xB0, 0x01} },
		})
		require.NoError(t, err)

		require.NoError(t, d.FeedAll(packetFrame(flags, 0x22, 3, 0x3F, layers.MsgIdentify, nil)))

		replies := deframe(t, mock.Written())
		require.Len(t, replies, 1)
		r := replies[0]
		assert.Equal(t, layers.FlagsNotification, r.header.Flags)
		assert.Equal(t, layers.MsgIdentifyReply, r.header.ID)
		assert.Equal(t, byte(0x22), r.header.Destination)
		assert.Equal(t, byte(3), r.header.Sequence)
		assert.Equal(t, []byte{0xB0, 0x01}, r.data)
	}
}

func TestNotificationStatus(t *testing.T) {
	mock := &port.MockPort{}
	d, err := New(nil, mock, Handlers{
		FillStatus: func(p *Packet) []byte { return []byte{0x10, 'O', 'K'} },
	})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(packetFrame(layers.FlagsNotification, 0x08, 0, 0x3F, layers.MsgStatus, nil)))

	replies := deframe(t, mock.Written())
	require.Len(t, replies, 1)
	assert.Equal(t, layers.MsgStatusReply, replies[0].header.ID)
	assert.Equal(t, []byte{0x10, 'O', 'K'}, replies[0].data)
}

func TestNotificationInterceptedIgnored(t *testing.T) {
	for _, id := range []layers.MessageID{
		layers.MsgResend, layers.MsgNack, layers.MsgDiscovery, layers.MsgWindowSize,
	} {
		mock := &port.MockPort{}
		d, err := New(nil, mock, Handlers{
			Asynchronous: func(p *Packet) {
				t.Fatalf("asynchronous handler must not run for %s", id)
			},
		})
		require.NoError(t, err)
		require.NoError(t, d.FeedAll(packetFrame(layers.FlagsNotification, 0x01, 0, 0x3F, id, nil)))
		assert.Empty(t, mock.Written(), "id %s", id)
	}
}

func TestBroadcastReachesAsynchronousHandler(t *testing.T) {
	mock := &port.MockPort{}
	var got *Packet
	d, err := New(nil, mock, Handlers{
		Asynchronous: func(p *Packet) { got = p },
	})
	require.NoError(t, err)

	require.NoError(t, d.FeedAll(packetFrame(layers.FlagsBroadcast, 0x3F, 0, 0x00, layers.MessageID(0x09), []byte("TE\x5AT"))))

	require.NotNil(t, got)
	assert.Equal(t, layers.MessageID(0x09), got.ID)
	assert.Equal(t, []byte("TE\x5AT"), got.Data)
	assert.Empty(t, mock.Written())
}

func TestWriteSourceAlwaysUnknown(t *testing.T) {
	mock := &port.MockPort{}
	d, err := New(nil, mock, Handlers{})
	require.NoError(t, err)

	require.NoError(t, d.Write(layers.FlagsCommand, 0x05, 2, layers.MsgStatus, nil))

	written := deframe(t, mock.Written())
	require.Len(t, written, 1)
	assert.Equal(t, layers.AddressUnknown, written[0].header.Source)
	assert.Equal(t, byte(0x05), written[0].header.Destination)
	assert.Equal(t, byte(2), written[0].header.Sequence)
}

func TestTransmitErrorPropagates(t *testing.T) {
	wantErr := errors.New("port gone")
	mock := &port.MockPort{WriteError: wantErr}
	d, err := New(nil, mock, Handlers{})
	require.NoError(t, err)

	err = d.FeedAll(commandFrame(0x01, 0, 0x3F, layers.MsgIdentify, nil))
	assert.ErrorIs(t, err, wantErr)
	assert.ErrorIs(t, d.Broadcast(layers.MessageID(0x09), nil), wantErr)
}

func TestRunReturnsTransmitError(t *testing.T) {
	wantErr := errors.New("port gone")
	mock := &port.MockPort{
		ReadData:   commandFrame(0x01, 0, 0x3F, layers.MsgIdentify, nil),
		WriteError: wantErr,
	}
	d, err := New(nil, mock, Handlers{})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Run(context.Background()), wantErr)
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := New(nil, nil, Handlers{})
	require.Error(t, err)
	assert.IsType(t, ErrNilTransport{}, err)
}

func TestLoopbackCommandReply(t *testing.T) {
	a, b := port.Loopback()
	defer a.Close()
	defer b.Close()

	replies := make(chan *Packet, 1)
	host, err := New(nil, a, Handlers{
		Reply: func(p *Packet) {
			replies <- &Packet{Source: p.Source, Sequence: p.Sequence, ID: p.ID, Data: append([]byte{}, p.Data...)}
		},
	})
	require.NoError(t, err)

	cfg := config.NewDefaultConfig()
	cfg.Identity = &layers.Identification{SystemType: 0x0B, Major: 1, Minor: 2, Stable: true, Info: "pad box"}
	remote, err := New(cfg, b, Handlers{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go host.Run(ctx)
	go remote.Run(ctx)

	require.NoError(t, host.Write(layers.FlagsCommand, layers.AddressUnknown, 0, layers.MsgIdentify, nil))

	select {
	case p := <-replies:
		assert.Equal(t, layers.MsgIdentify, p.ID)
		ident, err := layers.DecodeIdentification(p.Data)
		require.NoError(t, err)
		assert.Equal(t, "pad box", ident.Info)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply over the loopback pair")
	}
}
