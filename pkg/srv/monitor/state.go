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

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/log"
)

const (
	BucketPrefix = "monitor_"
	RecordKey    = "device_record"
)

// DeviceRecord is everything the monitor has learned about one device
// on one link. Identity and Status stay nil until the device answers
// the corresponding query.
type DeviceRecord struct {
	Link      string                 `json:"Link"`
	Source    byte                   `json:"Source"`
	Identity  *layers.Identification `json:"Identity,omitempty"`
	Status    *layers.Status         `json:"Status,omitempty"`
	Timestamp uint64                 `json:"Timestamp"`
	LastID    string                 `json:"LastID,omitempty"`
}

func (r *DeviceRecord) String() string {
	out, err := yaml.Marshal(r)
	if err != nil {
		return err.Error()
	}
	return string(out)
}

type State struct {
	context.Context
	DB *bbolt.DB
}

func NewState(ctx context.Context, cfg *config.Config) (*State, error) {
	db, err := bbolt.Open(cfg.DBPath, 0600, nil)
	if err != nil {
		return nil, err
	}
	return &State{
		Context: ctx,
		DB:      db,
	}, nil
}

func (s *State) Close() {
	s.DB.Close()
}

func BucketName(link string, source byte) string {
	return fmt.Sprintf("%s%s_%02x", BucketPrefix, link, source)
}

// SetRecord creates the device bucket when needed and stores the record.
func (s *State) SetRecord(record *DeviceRecord) error {
	log.Debug("Setting device record: link: %s source: 0x%02x", record.Link, record.Source)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName(record.Link, record.Source)))
		if err != nil {
			return err
		}
		recordBytes, err := yaml.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(RecordKey), recordBytes)
	})
}

// GetRecord returns the stored record for a device, or nil when the
// device has never been seen.
func (s *State) GetRecord(link string, source byte) (*DeviceRecord, error) {
	var record *DeviceRecord
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(link, source)))
		if b == nil {
			return nil
		}
		recordBytes := b.Get([]byte(RecordKey))
		if recordBytes == nil {
			return nil
		}
		record = &DeviceRecord{}
		return yaml.Unmarshal(recordBytes, record)
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// GetAllRecords returns the records of every device ever seen on any link.
func (s *State) GetAllRecords() ([]*DeviceRecord, error) {
	log.Debug("Getting all device records")
	var records []*DeviceRecord
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(_ []byte, b *bbolt.Bucket) error {
			recordBytes := b.Get([]byte(RecordKey))
			if recordBytes == nil {
				return nil
			}
			record := &DeviceRecord{}
			if err := yaml.Unmarshal(recordBytes, record); err != nil {
				log.Error("Error while unmarshalling device record: %s", err)
				return err
			}
			records = append(records, record)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return records, nil
}
