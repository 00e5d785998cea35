/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name for save authentication keys.
const KeyringService = "vnengine"

// DefaultKeyName names the key used when a command is not given one.
const DefaultKeyName = "save_hmac"

// ErrKeyNotFound is returned by Get when no key is stored under the name.
var ErrKeyNotFound = errors.New("save key not found in keyring")

// KeyStore keeps save authentication keys in the OS keyring. Keys are stored
// hex encoded.
type KeyStore struct {
	Service string
}

// NewKeyStore returns a store under KeyringService.
func NewKeyStore() *KeyStore { return &KeyStore{Service: KeyringService} }

func (k *KeyStore) service() string {
	if k.Service == "" {
		return KeyringService
	}
	return k.Service
}

// Get returns the key stored under name.
func (k *KeyStore) Get(name string) ([]byte, error) {
	v, err := keyring.Get(k.service(), name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s: %w", name, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("keyring entry %s is not hex: %w", name, err)
	}
	return key, nil
}

// Set stores key under name. Empty keys are rejected.
func (k *KeyStore) Set(name string, key []byte) error {
	if len(key) == 0 {
		return errors.New("save key must not be empty")
	}
	if err := keyring.Set(k.service(), name, hex.EncodeToString(key)); err != nil {
		return fmt.Errorf("keyring set %s: %w", name, err)
	}
	return nil
}

// Delete removes the key under name. A missing key is not an error.
func (k *KeyStore) Delete(name string) error {
	err := keyring.Delete(k.service(), name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", name, err)
	}
	return nil
}

// Ensure returns the key under name, generating and storing a random 32-byte
// key on first use.
func (k *KeyStore) Ensure(name string) ([]byte, error) {
	key, err := k.Get(name)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate save key: %w", err)
	}
	if err := k.Set(name, key); err != nil {
		return nil, err
	}
	return key, nil
}
