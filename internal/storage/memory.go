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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/artifact-registry/registryd/internal/types"
)

// MemoryBackend implements Backend using mutex-guarded in-memory maps.
// Single-key atomicity comes from holding the per-map write lock across
// each operation.
type MemoryBackend struct {
	config        MemoryBackendConfig
	storage       *memoryStorageMap
	global        *memoryGlobalMap
	artifactRules *memoryMultiMap
	globalRules   *memoryRuleMap
	nextID        int64
}

// NewMemoryBackend creates a new in-memory backend instance
func NewMemoryBackend(config MemoryBackendConfig) *MemoryBackend {
	return &MemoryBackend{
		config: config,
		storage: &memoryStorageMap{
			maxArtifacts: config.MaxArtifacts,
			artifacts:    make(map[types.ArtifactKey]map[int64]types.VersionRecord),
		},
		global: &memoryGlobalMap{
			entries: make(map[int64]TupleID),
		},
		artifactRules: &memoryMultiMap{
			rules: make(map[types.ArtifactKey]map[types.RuleType]string),
		},
		globalRules: &memoryRuleMap{
			rules: make(map[types.RuleType]string),
		},
	}
}

// Storage returns the content map
func (mb *MemoryBackend) Storage() StorageMap { return mb.storage }

// Global returns the globalId index
func (mb *MemoryBackend) Global() GlobalMap { return mb.global }

// ArtifactRules returns the per-artifact rule map
func (mb *MemoryBackend) ArtifactRules() MultiMap { return mb.artifactRules }

// GlobalRules returns the global rule map
func (mb *MemoryBackend) GlobalRules() RuleMap { return mb.globalRules }

// NextGlobalID returns the next value of the process-wide counter
func (mb *MemoryBackend) NextGlobalID(ctx context.Context) (int64, error) {
	return atomic.AddInt64(&mb.nextID, 1), nil
}

// Close closes the backend (no-op for memory backend)
func (mb *MemoryBackend) Close() error {
	return nil
}

// HealthCheck performs a health check on the backend
func (mb *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}

// memoryStorageMap is the in-memory StorageMap
type memoryStorageMap struct {
	mu           sync.RWMutex
	maxArtifacts int
	artifacts    map[types.ArtifactKey]map[int64]types.VersionRecord
}

// snapshot deep-copies a version index so callers never see live state
func snapshot(versions map[int64]types.VersionRecord) VersionIndex {
	index := make(VersionIndex, len(versions))
	for version, record := range versions {
		index[version] = record.Clone()
	}
	return index
}

func (m *memoryStorageMap) Get(ctx context.Context, key types.ArtifactKey) (VersionIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, exists := m.artifacts[key]
	if !exists {
		return nil, nil
	}
	return snapshot(versions), nil
}

func (m *memoryStorageMap) Compute(ctx context.Context, key types.ArtifactKey) (VersionIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists {
		if m.maxArtifacts > 0 && len(m.artifacts) >= m.maxArtifacts {
			return nil, fmt.Errorf("storage capacity exceeded: max %d artifacts", m.maxArtifacts)
		}
		versions = make(map[int64]types.VersionRecord)
		m.artifacts[key] = versions
	}
	return snapshot(versions), nil
}

func (m *memoryStorageMap) CreateVersion(ctx context.Context, key types.ArtifactKey, version int64, record types.VersionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists {
		versions = make(map[int64]types.VersionRecord)
		m.artifacts[key] = versions
	}
	if _, taken := versions[version]; taken {
		return ErrVersionExists
	}
	versions[version] = record.Clone()
	return nil
}

func (m *memoryStorageMap) Put(ctx context.Context, key types.ArtifactKey, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists || len(versions) == 0 {
		return ErrArtifactAbsent
	}

	var latest int64
	for version := range versions {
		if version > latest {
			latest = version
		}
	}
	versions[latest][field] = value
	return nil
}

func (m *memoryStorageMap) PutVersion(ctx context.Context, key types.ArtifactKey, version int64, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists {
		return ErrVersionAbsent
	}
	record, present := versions[version]
	if !present {
		return ErrVersionAbsent
	}
	record[field] = value
	return nil
}

func (m *memoryStorageMap) Remove(ctx context.Context, key types.ArtifactKey) (VersionIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists {
		return nil, nil
	}
	delete(m.artifacts, key)
	return snapshot(versions), nil
}

func (m *memoryStorageMap) RemoveVersion(ctx context.Context, key types.ArtifactKey, version int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists {
		return 0, ErrVersionAbsent
	}
	record, present := versions[version]
	if !present {
		return 0, ErrVersionAbsent
	}
	globalID := record.GlobalID()
	delete(versions, version)
	// The key survives with an empty index; only Remove destroys the artifact.
	return globalID, nil
}

func (m *memoryStorageMap) RemoveVersionField(ctx context.Context, key types.ArtifactKey, version int64, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, exists := m.artifacts[key]
	if !exists {
		return ErrVersionAbsent
	}
	record, present := versions[version]
	if !present {
		return ErrVersionAbsent
	}
	delete(record, field)
	return nil
}

func (m *memoryStorageMap) KeySet(ctx context.Context) ([]types.ArtifactKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]types.ArtifactKey, 0, len(m.artifacts))
	for key := range m.artifacts {
		keys = append(keys, key)
	}
	return keys, nil
}

// memoryGlobalMap is the in-memory globalId index
type memoryGlobalMap struct {
	mu      sync.RWMutex
	entries map[int64]TupleID
}

func (m *memoryGlobalMap) Get(ctx context.Context, globalID int64) (*TupleID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tuple, exists := m.entries[globalID]
	if !exists {
		return nil, nil
	}
	return &tuple, nil
}

func (m *memoryGlobalMap) Put(ctx context.Context, globalID int64, tuple TupleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[globalID] = tuple
	return nil
}

func (m *memoryGlobalMap) Remove(ctx context.Context, globalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, globalID)
	return nil
}

// memoryMultiMap is the in-memory per-artifact rule map
type memoryMultiMap struct {
	mu    sync.RWMutex
	rules map[types.ArtifactKey]map[types.RuleType]string
}

func (m *memoryMultiMap) Get(ctx context.Context, key types.ArtifactKey, rule types.RuleType) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.rules[key][rule]
	return value, exists, nil
}

func (m *memoryMultiMap) PutIfAbsent(ctx context.Context, key types.ArtifactKey, rule types.RuleType, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, exists := m.rules[key]
	if !exists {
		inner = make(map[types.RuleType]string)
		m.rules[key] = inner
	}
	if prev, present := inner[rule]; present {
		return prev, true, nil
	}
	inner[rule] = value
	return "", false, nil
}

func (m *memoryMultiMap) PutIfPresent(ctx context.Context, key types.ArtifactKey, rule types.RuleType, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, exists := m.rules[key]
	if !exists {
		return "", false, nil
	}
	prev, present := inner[rule]
	if !present {
		return "", false, nil
	}
	inner[rule] = value
	return prev, true, nil
}

func (m *memoryMultiMap) Remove(ctx context.Context, key types.ArtifactKey, rule types.RuleType) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, exists := m.rules[key]
	if !exists {
		return "", false, nil
	}
	prev, present := inner[rule]
	if !present {
		return "", false, nil
	}
	delete(inner, rule)
	if len(inner) == 0 {
		delete(m.rules, key)
	}
	return prev, true, nil
}

func (m *memoryMultiMap) RemoveAll(ctx context.Context, key types.ArtifactKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rules, key)
	return nil
}

func (m *memoryMultiMap) Keys(ctx context.Context, key types.ArtifactKey) ([]types.RuleType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inner := m.rules[key]
	keys := make([]types.RuleType, 0, len(inner))
	for rule := range inner {
		keys = append(keys, rule)
	}
	return keys, nil
}

// memoryRuleMap is the in-memory global rule map
type memoryRuleMap struct {
	mu    sync.RWMutex
	rules map[types.RuleType]string
}

func (m *memoryRuleMap) Get(ctx context.Context, rule types.RuleType) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.rules[rule]
	return value, exists, nil
}

func (m *memoryRuleMap) Put(ctx context.Context, rule types.RuleType, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules[rule] = value
	return nil
}

func (m *memoryRuleMap) PutIfAbsent(ctx context.Context, rule types.RuleType, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, present := m.rules[rule]; present {
		return prev, true, nil
	}
	m.rules[rule] = value
	return "", false, nil
}

func (m *memoryRuleMap) ContainsKey(ctx context.Context, rule types.RuleType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.rules[rule]
	return exists, nil
}

func (m *memoryRuleMap) Remove(ctx context.Context, rule types.RuleType) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, present := m.rules[rule]
	if !present {
		return "", false, nil
	}
	delete(m.rules, rule)
	return prev, true, nil
}

func (m *memoryRuleMap) Keys(ctx context.Context) ([]types.RuleType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]types.RuleType, 0, len(m.rules))
	for rule := range m.rules {
		keys = append(keys, rule)
	}
	return keys, nil
}

func (m *memoryRuleMap) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = make(map[types.RuleType]string)
	return nil
}
