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

package config

import (
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/dare-rocketry/go-lbp/pkg/layers"
)

// Link is one UART-class channel the toolkit talks over.
type Link struct {
	Name   string `json:"name"`
	Device string `json:"device"`
	Baud   int    `json:"baud,omitempty"`
}

type Config struct {
	LogLevel string  `json:"loglevel,omitempty"`
	IP       string  `json:"ip,omitempty"`
	DBPath   string  `json:"dbpath,omitempty"`
	Links    []*Link `json:"links"`

	// Identity and Status seed the default identify/status replies of
	// an emulated end device; applications may override them with fill
	// handlers.
	Identity *layers.Identification `json:"identity,omitempty"`
	Status   *layers.Status         `json:"status,omitempty"`

	// Window is the pipelining depth reported in reply to a window
	// size command, 1 to 4.
	Window uint8 `json:"window,omitempty"`

	filepath string
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file if it exists. A missing file leaves the
// defaults untouched.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) GetLinkByName(name string) *Link {
	for _, link := range c.Links {
		if link.Name == name {
			return link
		}
	}
	return nil
}

func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, DBFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		IP:       DefaultIP,
		DBPath:   DefaultDBPath(),
		Links: []*Link{
			{
				Name:   DefaultLinkName,
				Device: DefaultLinkDevice,
				Baud:   DefaultBaudRate,
			},
		},
		Identity: &layers.Identification{
			SystemType: 0x0B,
			Major:      0,
			Minor:      0,
			Stable:     true,
			Info:       "go-lbp",
		},
		Status: &layers.Status{
			Code: 0x00,
			Text: "standard device",
		},
		Window:   DefaultWindow,
		filepath: DefaultConfigPath(),
	}
}

// NewConfigWithPath is used by tests and tools that keep their config
// outside the home directory.
func NewConfigWithPath(path string) *Config {
	cfg := NewDefaultConfig()
	cfg.filepath = path
	return cfg
}
