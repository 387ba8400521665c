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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/device"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/log"
	"github.com/dare-rocketry/go-lbp/pkg/port"
)

const (
	LinkOptionName = "link"
	InfoOptionName = "info"
	TeztOptionName = "tezt"

	// MsgTezt is the conventional message id of the link self test
	// broadcast. Its payload contains an end byte that must survive
	// escaping.
	MsgTezt = layers.MessageID(0x09)
)

var teztPayload = []byte("TE\x5AT")

// NewCommand creates a cobra command object that emulates an end
// device on one of the configured links
func NewCommand() *cobra.Command {
	var linkName, info string
	var tezt uint
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Run an emulated end device on a serial link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if info != "" {
				if cfg.Identity == nil {
					cfg.Identity = config.NewDefaultConfig().Identity
				}
				cfg.Identity.Info = info
			}
			link := cfg.GetLinkByName(linkName)
			if link == nil {
				return config.ErrLinkNotFound{Name: linkName}
			}

			p, err := port.Open(link)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			d, err := device.New(cfg, p, device.Handlers{
				Command: func(pkt *device.Packet) ([]byte, bool) {
					fmt.Fprintf(out, "command  source: 0x%02x seq: %d id: %s data: % x\n",
						pkt.Source, pkt.Sequence, pkt.ID, pkt.Data)
					return pkt.Data, true
				},
				Asynchronous: func(pkt *device.Packet) {
					fmt.Fprintf(out, "async    source: 0x%02x seq: %d id: %s data: % x\n",
						pkt.Source, pkt.Sequence, pkt.ID, pkt.Data)
				},
				Reply: func(pkt *device.Packet) {
					fmt.Fprintf(out, "reply    source: 0x%02x seq: %d id: %s data: % x\n",
						pkt.Source, pkt.Sequence, pkt.ID, pkt.Data)
				},
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if tezt > 0 {
				go func() {
					ticker := time.NewTicker(time.Duration(tezt) * time.Second)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
							if err := d.Broadcast(MsgTezt, teztPayload); err != nil {
								log.Error("Self test broadcast failed: %s", err)
								return
							}
						}
					}
				}()
			}

			log.Info("Emulated device running: link: %s device: %s", link.Name, link.Device)
			return d.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&linkName, LinkOptionName, config.DefaultLinkName, "Name of the link to attach to")
	cmd.Flags().StringVar(&info, InfoOptionName, "", "Identification info string to report")
	cmd.Flags().UintVar(&tezt, TeztOptionName, 0, "Broadcast a link self test packet every N seconds, 0 to disable")
	return cmd
}
