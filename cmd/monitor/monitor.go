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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dare-rocketry/go-lbp/pkg/command"
	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/srv"
	"github.com/dare-rocketry/go-lbp/pkg/srv/monitor"
)

const (
	IPOptionName = "ip"

	// OfflineAfter is how long a device may stay silent before the
	// list command marks it offline, in milliseconds.
	OfflineAfter = 10000
)

// NewCommand creates the parent command for monitor operations
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor traffic on the configured serial links",
	}
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewListCommand())
	return cmd
}

func NewRunCommand() *cobra.Command {
	var ip string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the monitor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ip != "" {
				cfg.IP = ip
			}
			server, err := monitor.NewMonitorServer(context.Background(), cfg)
			if err != nil {
				return err
			}
			return server.Run()
		},
	}
	cmd.Flags().StringVar(&ip, IPOptionName, "", fmt.Sprintf("Address to bind the API server to. E.g. %s", config.DefaultIP))
	return cmd
}

func NewListCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices seen by the monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			records, err := apiClient.ListDevices()
			if err != nil {
				return err
			}
			for _, record := range records {
				fmt.Fprint(cmd.OutOrStdout(), record.String())
				if srv.Now()-record.Timestamp > OfflineAfter {
					fmt.Fprintln(cmd.OutOrStdout(), "!!! Device is offline")
				}
			}
			return nil
		},
	}
	return cmd
}
