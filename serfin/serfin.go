/*
 * Copyright (c) 2013-2019, Jeremy Bingham (<jeremy@goiardi.gl>)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package serfin bundles up the serf client connection, so rule, catalog, and
// access snapshot changes can be announced to other interested nodes.
package serfin

import (
	"encoding/json"
	"os"

	"github.com/portiere/portiere/config"
	serfclient "github.com/hashicorp/serf/client"
	"github.com/tideland/golib/logger"
)

// Serfer is the shared serf client connection.
var Serfer *serfclient.RPCClient

// StartSerfin connects to the local serf agent and announces this node to the
// rest of the cluster.
func StartSerfin() error {
	var err error
	Serfer, err = serfclient.NewRPCClient(config.Config.SerfAddr)
	if err != nil {
		logger.Criticalf(err.Error())
		os.Exit(1)
	}

	err = Serfer.UserEvent("portiere-join", []byte(config.Config.Hostname), true)
	if err != nil {
		logger.Criticalf(err.Error())
		os.Exit(1)
	}

	return nil
}

// SendEvent sends a serf event out with the given payload, marshaled to JSON.
func SendEvent(eventName string, payload interface{}) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf(err.Error())
		return
	}
	err = Serfer.UserEvent(eventName, jsonPayload, true)
	if err != nil {
		logger.Debugf(err.Error())
	}
	return
}

// NewRPCClient returns a fresh serf client connection, for callers that need
// their own rather than the shared one.
func NewRPCClient(serfAddr string) (*serfclient.RPCClient, error) {
	return serfclient.NewRPCClient(serfAddr)
}

// CloseAll closes the shared serf client connection.
func CloseAll() {
	if Serfer != nil && !Serfer.IsClosed() {
		Serfer.Close()
	}
}

// SendQuery sends a serf query out with the given payload. Responses are not
// collected.
func SendQuery(queryName string, payload interface{}) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf(err.Error())
		return
	}
	q := &serfclient.QueryParam{Name: queryName, Payload: jsonPayload}
	err = Serfer.Query(q)
	if err != nil {
		logger.Debugf(err.Error())
	}
	return
}
