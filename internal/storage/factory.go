/*
 * Copyright 2025 Cong Wang
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

package storage

import (
	"fmt"
	"strings"
)

// NewBackend creates a new backend instance based on the configuration
func NewBackend(config BackendConfig) (Backend, error) {
	backendType := strings.ToLower(config.Type)
	if backendType == "" {
		backendType = "memory" // Default to memory backend
	}

	switch backendType {
	case "memory":
		memConfig := MemoryBackendConfig{}
		if config.Memory != nil {
			memConfig = *config.Memory
		}
		return NewMemoryBackend(memConfig), nil

	case "database":
		dbConfig := DatabaseBackendConfig{}
		if config.Database != nil {
			dbConfig = *config.Database
		}
		return NewDatabaseBackend(dbConfig)

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// DefaultBackendConfig returns a default backend configuration
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Type: "memory",
		Memory: &MemoryBackendConfig{
			MaxArtifacts: 0, // Unlimited
		},
	}
}
