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
	"context"
	"errors"

	"github.com/artifact-registry/registryd/internal/types"
)

// Sentinel errors reported by backends. The registry engine translates
// these into domain errors; backends never import the domain error package.
var (
	// ErrVersionExists signals a CreateVersion call against a version
	// number that is already present for the key.
	ErrVersionExists = errors.New("version already exists")

	// ErrArtifactAbsent signals a field write against a key with no versions
	ErrArtifactAbsent = errors.New("artifact absent")

	// ErrVersionAbsent signals a version-level operation against a version
	// that is not present for the key.
	ErrVersionAbsent = errors.New("version absent")
)

// VersionIndex is the ordered mapping from version number to version record
// held for one ArtifactKey. Backends return detached snapshots; mutating a
// returned index never mutates the store.
type VersionIndex map[int64]types.VersionRecord

// TupleID is the global-index entry mapping a globalId back to the
// coordinates of its version record.
type TupleID struct {
	GroupID    string
	ArtifactID string
	Version    int64
}

// StorageMap is the multi-versioned content map every backend must provide.
// All single-key operations are atomic with respect to each other for the
// same key.
type StorageMap interface {
	// Get returns the version index for a key, or nil if the key is absent
	Get(ctx context.Context, key types.ArtifactKey) (VersionIndex, error)

	// Compute returns the existing version index, atomically inserting and
	// returning a fresh empty one if the key is absent. This is the single
	// point of atomicity for the create/update race.
	Compute(ctx context.Context, key types.ArtifactKey) (VersionIndex, error)

	// CreateVersion atomically inserts a new version under key. Returns
	// ErrVersionExists if the version number is already taken for the key.
	CreateVersion(ctx context.Context, key types.ArtifactKey, version int64, record types.VersionRecord) error

	// Put updates one field on the latest (highest-numbered) version.
	// Returns ErrArtifactAbsent if the key holds no versions.
	Put(ctx context.Context, key types.ArtifactKey, field, value string) error

	// PutVersion updates one field on a specific version. Returns
	// ErrVersionAbsent if the version is not present.
	PutVersion(ctx context.Context, key types.ArtifactKey, version int64, field, value string) error

	// Remove deletes the whole version index for a key and returns it, or
	// nil if the key was absent.
	Remove(ctx context.Context, key types.ArtifactKey) (VersionIndex, error)

	// RemoveVersion deletes a single version and returns the globalId that
	// was stored there. Returns ErrVersionAbsent if the version was not
	// present. The key itself survives even when its last version goes.
	RemoveVersion(ctx context.Context, key types.ArtifactKey, version int64) (int64, error)

	// RemoveVersionField deletes one field from a specific version. Absent
	// fields are ignored; an absent version is ErrVersionAbsent.
	RemoveVersionField(ctx context.Context, key types.ArtifactKey, version int64, field string) error

	// KeySet enumerates the live artifact keys. The enumeration must be
	// safely iterable under concurrent mutation.
	KeySet(ctx context.Context) ([]types.ArtifactKey, error)
}

// GlobalMap is the globalId index: globalId -> (group, artifact, version)
type GlobalMap interface {
	Get(ctx context.Context, globalID int64) (*TupleID, error)
	Put(ctx context.Context, globalID int64, tuple TupleID) error
	Remove(ctx context.Context, globalID int64) error
}

// MultiMap is the two-level key map holding per-artifact rules
type MultiMap interface {
	// Get returns the configured value, or ok=false if the rule is absent
	Get(ctx context.Context, key types.ArtifactKey, rule types.RuleType) (string, bool, error)

	// PutIfAbsent stores value only when no prior value exists; the
	// returned previous value (ok=true) signals "already exists".
	PutIfAbsent(ctx context.Context, key types.ArtifactKey, rule types.RuleType, value string) (string, bool, error)

	// PutIfPresent stores value only when a prior value exists; ok=false
	// signals "not found".
	PutIfPresent(ctx context.Context, key types.ArtifactKey, rule types.RuleType, value string) (string, bool, error)

	// Remove deletes one rule and returns the previous value, ok=false if absent
	Remove(ctx context.Context, key types.ArtifactKey, rule types.RuleType) (string, bool, error)

	// RemoveAll deletes every rule configured for the key
	RemoveAll(ctx context.Context, key types.ArtifactKey) error

	// Keys lists the rule types configured for the key
	Keys(ctx context.Context, key types.ArtifactKey) ([]types.RuleType, error)
}

// RuleMap is the single-level rule map holding global rules
type RuleMap interface {
	Get(ctx context.Context, rule types.RuleType) (string, bool, error)
	Put(ctx context.Context, rule types.RuleType, value string) error
	PutIfAbsent(ctx context.Context, rule types.RuleType, value string) (string, bool, error)
	ContainsKey(ctx context.Context, rule types.RuleType) (bool, error)
	Remove(ctx context.Context, rule types.RuleType) (string, bool, error)
	Keys(ctx context.Context) ([]types.RuleType, error)
	Clear(ctx context.Context) error
}

// Backend bundles the map primitives a registry engine runs against
type Backend interface {
	Storage() StorageMap
	Global() GlobalMap
	ArtifactRules() MultiMap
	GlobalRules() RuleMap

	// NextGlobalID returns a process-wide unique, strictly increasing id.
	// Ids are never reused; they need not be contiguous.
	NextGlobalID(ctx context.Context) (int64, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

// BackendConfig defines configuration for backend implementations
type BackendConfig struct {
	Type string `yaml:"type" json:"type"` // "memory" or "database"

	// Memory backend config
	Memory *MemoryBackendConfig `yaml:"memory,omitempty" json:"memory,omitempty"`

	// Database backend config
	Database *DatabaseBackendConfig `yaml:"database,omitempty" json:"database,omitempty"`
}

// MemoryBackendConfig configures the in-memory backend
type MemoryBackendConfig struct {
	MaxArtifacts int `yaml:"max_artifacts" json:"max_artifacts"` // 0 = unlimited
}

// DatabaseBackendConfig configures the database backend
type DatabaseBackendConfig struct {
	Driver           string `yaml:"driver" json:"driver"`
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
	MaxConnections   int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleTime      int    `yaml:"max_idle_time" json:"max_idle_time"`
}
