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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/dare-rocketry/go-lbp/pkg/config"
	"github.com/dare-rocketry/go-lbp/pkg/layers"
	"github.com/dare-rocketry/go-lbp/pkg/log"
)

const (
	ApiPort = 8003
)

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	monitor *MonitorServer
}

func NewApiServer(ctx context.Context, cfg *config.Config, monitor *MonitorServer) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.IP, ApiPort)

	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		monitor: monitor,
	}
	return s, nil
}

func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s port: %d", s.Config.IP, ApiPort)
	s.configureRouter()
	httpServer := &http.Server{
		Handler: handlers.LoggingHandler(os.Stdout, s.Router),
		Addr:    fmt.Sprintf("%s:%d", s.Config.IP, ApiPort),
	}
	return httpServer.ListenAndServe()
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/devices", s.handleDevices()).Methods("GET")
	subRouter.HandleFunc("/send", s.handleSend()).Methods("POST")
}

func (s *ApiServer) handleDevices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling devices request")
		records, err := s.monitor.state.GetAllRecords()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

// SendRequest is the body of a POST /api/send request. Data is hex
// encoded application data, Flags one of command, reply, notification
// or broadcast.
type SendRequest struct {
	Link        string `json:"link"`
	Flags       string `json:"flags"`
	Destination byte   `json:"destination"`
	Sequence    byte   `json:"sequence"`
	ID          byte   `json:"id"`
	Data        string `json:"data,omitempty"`
}

func parseFlags(name string) (layers.Flags, error) {
	switch strings.ToLower(name) {
	case "command":
		return layers.FlagsCommand, nil
	case "reply":
		return layers.FlagsReply, nil
	case "notification":
		return layers.FlagsNotification, nil
	case "broadcast":
		return layers.FlagsBroadcast, nil
	}
	return 0, fmt.Errorf("Unknown flags value: %s", name)
}

func (s *ApiServer) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling send request")
		request := &SendRequest{}
		if err := json.NewDecoder(r.Body).Decode(request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		flags, err := parseFlags(request.Flags)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := hex.DecodeString(request.Data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		header := layers.Header{
			Flags:       flags,
			Source:      layers.AddressUnknown,
			Sequence:    request.Sequence & layers.MaxSequence,
			Destination: request.Destination,
			ID:          layers.MessageID(request.ID),
		}
		if err := s.monitor.Send(request.Link, header, data); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
