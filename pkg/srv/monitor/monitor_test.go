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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/lbp"
	"github.com/dare-rocketry/go-lbp/pkg/port"
)

// A capture goroutine blocked on the input queue must unblock and
// return once the server context is cancelled, even with no consumer
// draining the queue.
func TestCaptureStopsOnContextCancel(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "monitor.db")
	cfg.Links = nil

	ctx, cancel := context.WithCancel(context.Background())
	s, err := NewMonitorServer(ctx, cfg)
	require.NoError(t, err)
	defer s.state.Close()

	header := layers.Header{Flags: layers.FlagsReply, Source: 0x05, Destination: 0x3F, ID: layers.MsgNack}
	mock := &port.MockPort{ReadData: lbp.EncodeFrame(header.Bytes())}

	errChan := make(chan error, 2)
	done := make(chan struct{})
	go func() {
		s.capture(&link{name: "link0", port: mock}, errChan)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture goroutine did not stop on context cancellation")
	}
}
