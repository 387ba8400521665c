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

package command

import (
	"errors"
	"fmt"

	"github.com/imroc/req"

	"github.com/dare-rocketry/go-lbp/pkg/command/ifc"
	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/srv/monitor"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

var _ ifc.ApiClient = &ApiClient{}

func NewApiClient(cfg *config.Config) ifc.ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", cfg.IP, monitor.ApiPort),
	}
}

// ListDevices sends request to get the records of all devices the
// monitor has seen
func (c *ApiClient) ListDevices() ([]*monitor.DeviceRecord, error) {
	r, err := req.Get(fmt.Sprintf("%s/devices", c.ApiPrefix))
	if err != nil {
		return nil, err
	}
	if r.Response().StatusCode != 200 {
		return nil, errors.New(r.Response().Status)
	}
	var records []*monitor.DeviceRecord
	if err = r.ToJSON(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// Send sends request to inject a packet on one of the monitored links
func (c *ApiClient) Send(request *monitor.SendRequest) error {
	r, err := req.Post(fmt.Sprintf("%s/send", c.ApiPrefix), req.BodyJSON(request))
	if err != nil {
		return err
	}
	if r.Response().StatusCode != 200 {
		return errors.New(r.Response().Status)
	}
	return nil
}
