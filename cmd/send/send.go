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

package send

import (
	"github.com/spf13/cobra"

	"github.com/dare-rocketry/go-lbp/pkg/command"
	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/srv/monitor"
)

const (
	LinkOptionName        = "link"
	FlagsOptionName       = "flags"
	DestinationOptionName = "destination"
	SequenceOptionName    = "sequence"
	IDOptionName          = "id"
	DataOptionName        = "data"
)

// NewCommand creates a cobra command object for injecting a packet
// through a running monitor server
func NewCommand() *cobra.Command {
	var link, flags, data string
	var destination, sequence, id uint8
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Inject a packet on a monitored link",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			return apiClient.Send(&monitor.SendRequest{
				Link:        link,
				Flags:       flags,
				Destination: destination,
				Sequence:    sequence,
				ID:          id,
				Data:        data,
			})
		},
	}
	cmd.Flags().StringVar(&link, LinkOptionName, config.DefaultLinkName, "Name of the link to send on")
	cmd.Flags().StringVar(&flags, FlagsOptionName, "command", "Packet flags: command, reply, notification or broadcast")
	cmd.Flags().Uint8Var(&destination, DestinationOptionName, 0, "Destination address")
	cmd.Flags().Uint8Var(&sequence, SequenceOptionName, 0, "Sequence number, 0 to 3")
	cmd.Flags().Uint8Var(&id, IDOptionName, 0, "Message id")
	cmd.Flags().StringVar(&data, DataOptionName, "", "Hex encoded application data")
	return cmd
}
