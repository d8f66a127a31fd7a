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

// Package secret contains functions for handling secrets stored outside of
// portiere, like the bearer token used to talk to a remote authorization
// service.
package secret

type secretSource interface {
	getToken(string) (string, error)
	setToken(string, string) error
	deleteToken(string) error
}

var secretStore secretSource

// The vault path the remote oracle token lives under.
const OracleTokenPath = "portiere/oracle"

// ConfigureSecretStore sets up the secret store. Currently vault is the only
// supported backend.
func ConfigureSecretStore() error {
	var err error
	secretStore, err = configureVault()
	if err != nil {
		return err
	}
	return nil
}

// GetOracleToken fetches the bearer token for the remote authorization
// service from the secret store.
func GetOracleToken() (string, error) {
	return secretStore.getToken(OracleTokenPath)
}

// SetOracleToken stores a new bearer token for the remote authorization
// service.
func SetOracleToken(token string) error {
	return secretStore.setToken(OracleTokenPath, token)
}

// DeleteOracleToken removes the remote oracle token from the secret store.
func DeleteOracleToken() error {
	return secretStore.deleteToken(OracleTokenPath)
}
