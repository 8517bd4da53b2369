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

// Package registry implements the registry engine: every artifact, version,
// metadata and rule operation expressed against the abstract storage maps.
// The engine holds no locks of its own; per-key correctness rests entirely
// on the atomicity of the storage primitives.
package registry

import (
	"bytes"
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/logging"
	"github.com/artifact-registry/registryd/internal/provider"
	"github.com/artifact-registry/registryd/internal/storage"
	"github.com/artifact-registry/registryd/internal/types"
)

// Identity resolves the principal recorded as the creator of new versions
type Identity interface {
	Principal() string
}

type staticIdentity struct {
	principal string
}

// NewStaticIdentity returns an Identity that always reports the same principal
func NewStaticIdentity(principal string) Identity {
	return staticIdentity{principal: principal}
}

func (s staticIdentity) Principal() string {
	return s.principal
}

// Engine orchestrates registry operations against a storage backend
type Engine struct {
	backend   storage.Backend
	providers provider.Factory
	identity  Identity
	logger    *logging.Logger

	// clock and idGenerator are injectable for deterministic tests
	clock       func() time.Time
	idGenerator func() string
}

// NewEngine creates a registry engine on top of a backend
func NewEngine(backend storage.Backend, providers provider.Factory, identity Identity, logger *logging.Logger) *Engine {
	return &Engine{
		backend:     backend,
		providers:   providers,
		identity:    identity,
		logger:      logger.WithComponent("registry"),
		clock:       time.Now,
		idGenerator: func() string { return uuid.New().String() },
	}
}

// CreateArtifact stores the first version of a new artifact. An empty
// artifactId is replaced with a generated one.
func (e *Engine) CreateArtifact(ctx context.Context, groupID, artifactID string, artifactType types.ArtifactType, content []byte) (*types.ArtifactMetaData, error) {
	return e.createOrUpdateArtifact(ctx, groupID, artifactID, artifactType, content, nil, true)
}

// CreateArtifactWithMetadata stores the first version of a new artifact and
// applies editable metadata on top of extracted values.
func (e *Engine) CreateArtifactWithMetadata(ctx context.Context, groupID, artifactID string, artifactType types.ArtifactType, content []byte, metadata *types.EditableArtifactMetaData) (*types.ArtifactMetaData, error) {
	return e.createOrUpdateArtifact(ctx, groupID, artifactID, artifactType, content, metadata, true)
}

// UpdateArtifact stores a new version of an existing artifact
func (e *Engine) UpdateArtifact(ctx context.Context, groupID, artifactID string, artifactType types.ArtifactType, content []byte) (*types.ArtifactMetaData, error) {
	return e.createOrUpdateArtifact(ctx, groupID, artifactID, artifactType, content, nil, false)
}

// UpdateArtifactWithMetadata stores a new version of an existing artifact and
// applies editable metadata on top of carried-forward and extracted values.
func (e *Engine) UpdateArtifactWithMetadata(ctx context.Context, groupID, artifactID string, artifactType types.ArtifactType, content []byte, metadata *types.EditableArtifactMetaData) (*types.ArtifactMetaData, error) {
	return e.createOrUpdateArtifact(ctx, groupID, artifactID, artifactType, content, metadata, false)
}

// createOrUpdateArtifact is the unified create/update routine. Compute
// atomically materializes the version index; when the update branch finds
// the index empty, the just-created empty mapping is removed again as a
// compensating action before failing with not-found.
func (e *Engine) createOrUpdateArtifact(ctx context.Context, groupID, artifactID string, artifactType types.ArtifactType, content []byte, metadata *types.EditableArtifactMetaData, create bool) (*types.ArtifactMetaData, error) {
	if artifactID == "" {
		if !create {
			return nil, errors.New(errors.ErrInvalidRequestFormat, "artifact id is required for update")
		}
		artifactID = e.idGenerator()
	}
	key := types.NewArtifactKey(groupID, artifactID)

	index, err := e.backend.Storage().Compute(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to resolve version index", err)
	}

	if create && len(index) > 0 {
		return nil, errors.NewArtifactAlreadyExists(key.GroupID, key.ArtifactID)
	}
	if !create && len(index) == 0 {
		if _, err := e.backend.Storage().Remove(ctx, key); err != nil {
			e.logger.Error("failed to undo empty version index", err)
		}
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}

	version := maxVersion(index) + 1
	globalID, err := e.backend.NextGlobalID(ctx)
	if err != nil {
		return nil, errors.NewStorageError("failed to allocate global id", err)
	}
	now := e.clock().UnixMilli()

	record := types.VersionRecord{
		types.KeyGroupID:    key.GroupID,
		types.KeyArtifactID: key.ArtifactID,
		types.KeyVersion:    strconv.FormatInt(version, 10),
		types.KeyGlobalID:   strconv.FormatInt(globalID, 10),
		types.KeyCreatedOn:  strconv.FormatInt(now, 10),
		types.KeyModifiedOn: strconv.FormatInt(now, 10),
		types.KeyCreatedBy:  e.identity.Principal(),
		types.KeyType:       string(artifactType),
		types.KeyState:      string(types.StateEnabled),
	}
	record.PutContent(content)

	// Metadata continuity: an update inherits name and description from the
	// previous latest version.
	if !create {
		if previous := latestRecord(index, nil); previous != nil {
			if name := previous[types.KeyName]; name != "" {
				record[types.KeyName] = name
			}
			if description := previous[types.KeyDescription]; description != "" {
				record[types.KeyDescription] = description
			}
		}
	}

	// Structural metadata extracted from the content wins over inherited values
	if extracted := e.providers.ProviderFor(artifactType).Extractor().Extract(content); extracted != nil {
		if extracted.Name != "" {
			record[types.KeyName] = extracted.Name
		}
		if extracted.Description != "" {
			record[types.KeyDescription] = extracted.Description
		}
	}

	// Caller-supplied metadata wins over everything
	if metadata != nil {
		if err := applyEditableMetadata(record, metadata); err != nil {
			return nil, err
		}
	}

	if err := e.backend.Storage().CreateVersion(ctx, key, version, record); err != nil {
		if stderrors.Is(err, storage.ErrVersionExists) {
			// A collision after atomic allocation is a consistency fault,
			// never a silent overwrite.
			return nil, errors.NewStorageError("version number collision for "+key.String(), err)
		}
		return nil, errors.NewStorageError("failed to persist version", err)
	}

	if err := e.backend.Global().Put(ctx, globalID, storage.TupleID{GroupID: key.GroupID, ArtifactID: key.ArtifactID, Version: version}); err != nil {
		return nil, errors.NewStorageError("failed to index global id", err)
	}

	meta, err := types.ToArtifactMetaData(record)
	if err != nil {
		return nil, err
	}
	// The artifact's creation time is immutable: always version 1's
	if version != 1 {
		if fresh, err := e.backend.Storage().Get(ctx, key); err == nil && fresh != nil {
			if created := firstCreatedOn(fresh); created != 0 {
				meta.CreatedOn = created
			}
		}
	}
	return meta, nil
}

// applyEditableMetadata writes the non-nil editable fields into a record
func applyEditableMetadata(record types.VersionRecord, metadata *types.EditableArtifactMetaData) error {
	if metadata.Name != nil {
		record[types.KeyName] = *metadata.Name
	}
	if metadata.Description != nil {
		record[types.KeyDescription] = *metadata.Description
	}
	if metadata.Labels != nil {
		record[types.KeyLabels] = types.JoinLabels(metadata.Labels)
	}
	if metadata.Properties != nil {
		encoded, err := types.EncodeProperties(metadata.Properties)
		if err != nil {
			return err
		}
		record[types.KeyProperties] = encoded
	}
	return nil
}

// DeleteArtifact removes an artifact with every version, its global index
// entries and its rules. Returns the removed version numbers in ascending
// order. The de-index and rule cleanup steps are not atomic with the content
// removal; a crash in between leaves only inert orphan index entries.
func (e *Engine) DeleteArtifact(ctx context.Context, groupID, artifactID string) ([]int64, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	index, err := e.backend.Storage().Remove(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to remove artifact", err)
	}
	if len(index) == 0 {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}

	versions := make([]int64, 0, len(index))
	for version, record := range index {
		versions = append(versions, version)
		if err := e.backend.Global().Remove(ctx, record.GlobalID()); err != nil {
			e.logger.Error("failed to de-index global id", err)
		}
	}
	sortInt64s(versions)

	if err := e.backend.ArtifactRules().RemoveAll(ctx, key); err != nil {
		e.logger.Error("failed to remove artifact rules", err)
	}

	e.logger.LogArtifactOperation(key.GroupID, key.ArtifactID, "delete_artifact", nil)
	return versions, nil
}

// DeleteArtifacts removes every artifact of a group, one artifact at a
// time. There is no cross-artifact atomicity: a concurrent create into the
// same group may survive the sweep.
func (e *Engine) DeleteArtifacts(ctx context.Context, groupID string) error {
	group := types.NewArtifactKey(groupID, "").GroupID

	keys, err := e.backend.Storage().KeySet(ctx)
	if err != nil {
		return errors.NewStorageError("failed to enumerate artifacts", err)
	}
	for _, key := range keys {
		if key.GroupID != group {
			continue
		}
		if _, err := e.DeleteArtifact(ctx, key.GroupID, key.ArtifactID); err != nil {
			// An artifact deleted concurrently is not a failure of the sweep
			if errors.HasCode(err, errors.ErrArtifactNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetArtifact returns the content of the latest ACTIVE version
func (e *Engine) GetArtifact(ctx context.Context, groupID, artifactID string) (*types.StoredArtifact, error) {
	key := types.NewArtifactKey(groupID, artifactID)
	record, err := e.latestActiveRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	e.logIfDeprecated(key, record)
	return types.ToStoredArtifact(record)
}

// GetArtifactMetaData returns the metadata view of the latest ACTIVE version
func (e *Engine) GetArtifactMetaData(ctx context.Context, groupID, artifactID string) (*types.ArtifactMetaData, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	return artifactMetaDataFromIndex(key, index)
}

// GetArtifactMetaDataByGlobalID resolves a version record through the global
// index. A dangling index entry is reported as not-found, never as a fault.
func (e *Engine) GetArtifactMetaDataByGlobalID(ctx context.Context, globalID int64) (*types.ArtifactMetaData, error) {
	record, err := e.recordByGlobalID(ctx, globalID)
	if err != nil {
		return nil, err
	}
	return types.ToArtifactMetaData(record)
}

// GetArtifactVersionByGlobalID returns the content of the version a global
// id points at.
func (e *Engine) GetArtifactVersionByGlobalID(ctx context.Context, globalID int64) (*types.StoredArtifact, error) {
	record, err := e.recordByGlobalID(ctx, globalID)
	if err != nil {
		return nil, err
	}
	state := types.RecordState(record)
	if !state.IsActive() {
		return nil, errors.NewArtifactNotFoundByGlobalID(globalID)
	}
	if state == types.StateDeprecated {
		e.logger.LogDeprecatedServe(record[types.KeyGroupID], record[types.KeyArtifactID], record.Version())
	}
	return types.ToStoredArtifact(record)
}

// GetArtifactVersionMetaDataByContent finds the version whose stored content
// matches the candidate, optionally canonicalizing both sides first. The
// scan is linear over the version set; version cardinality is expected to
// stay low.
func (e *Engine) GetArtifactVersionMetaDataByContent(ctx context.Context, groupID, artifactID string, content []byte, canonical bool) (*types.ArtifactVersionMetaData, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	if len(index) == 0 {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}

	latest := latestRecord(index, nil)
	artifactType := types.ArtifactType(latest[types.KeyType])
	canonicalizer := e.providers.ProviderFor(artifactType).Canonicalizer()

	candidate := content
	if canonical {
		candidate, err = canonicalizer.Canonicalize(content)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidRequestFormat, "content could not be canonicalized", err)
		}
	}

	for _, version := range sortedVersions(index) {
		record := index[version]
		stored, err := record.Content()
		if err != nil {
			return nil, err
		}
		if canonical {
			stored, err = canonicalizer.Canonicalize(stored)
			if err != nil {
				continue
			}
		}
		if bytes.Equal(stored, candidate) {
			return types.ToArtifactVersionMetaData(record)
		}
	}
	return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
}

// UpdateArtifactMetaData applies editable metadata to the latest ACTIVE version
func (e *Engine) UpdateArtifactMetaData(ctx context.Context, groupID, artifactID string, metadata *types.EditableArtifactMetaData) error {
	key := types.NewArtifactKey(groupID, artifactID)
	record, err := e.latestActiveRecord(ctx, key)
	if err != nil {
		return err
	}
	return e.putEditableMetadata(ctx, key, record.Version(), metadata)
}

// UpdateArtifactState transitions the latest ACTIVE version to the target state
func (e *Engine) UpdateArtifactState(ctx context.Context, groupID, artifactID string, state types.ArtifactState) error {
	key := types.NewArtifactKey(groupID, artifactID)
	record, err := e.latestActiveRecord(ctx, key)
	if err != nil {
		return err
	}
	// The target version is only known after resolving "latest"; the write
	// is a single parameterized field update against that version.
	version := record.Version()
	var writeErr error
	types.ApplyState(func(target types.ArtifactState) {
		writeErr = e.backend.Storage().PutVersion(ctx, key, version, types.KeyState, string(target))
	}, record, state)
	if writeErr != nil {
		return e.translateVersionError(writeErr, key, version)
	}
	return nil
}

// GetArtifactIDs lists distinct artifact ids across all groups, capped at limit
func (e *Engine) GetArtifactIDs(ctx context.Context, limit int) ([]string, error) {
	keys, err := e.backend.Storage().KeySet(ctx)
	if err != nil {
		return nil, errors.NewStorageError("failed to enumerate artifacts", err)
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key.ArtifactID]; dup {
			continue
		}
		seen[key.ArtifactID] = struct{}{}
		ids = append(ids, key.ArtifactID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

// latestActiveRecord resolves the latest version in the ACTIVE state set
func (e *Engine) latestActiveRecord(ctx context.Context, key types.ArtifactKey) (types.VersionRecord, error) {
	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	record := latestRecord(index, types.ActiveStates)
	if record == nil {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}
	return record, nil
}

// recordByGlobalID follows the global index to a concrete version record
func (e *Engine) recordByGlobalID(ctx context.Context, globalID int64) (types.VersionRecord, error) {
	tuple, err := e.backend.Global().Get(ctx, globalID)
	if err != nil {
		return nil, errors.NewStorageError("failed to read global index", err)
	}
	if tuple == nil {
		return nil, errors.NewArtifactNotFoundByGlobalID(globalID)
	}

	key := types.ArtifactKey{GroupID: tuple.GroupID, ArtifactID: tuple.ArtifactID}
	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	record, ok := index[tuple.Version]
	if !ok {
		return nil, errors.NewArtifactNotFoundByGlobalID(globalID)
	}
	return record, nil
}

// putEditableMetadata writes the non-nil editable fields to a stored version
func (e *Engine) putEditableMetadata(ctx context.Context, key types.ArtifactKey, version int64, metadata *types.EditableArtifactMetaData) error {
	fields := make(map[string]string)
	if metadata.Name != nil {
		fields[types.KeyName] = *metadata.Name
	}
	if metadata.Description != nil {
		fields[types.KeyDescription] = *metadata.Description
	}
	if metadata.Labels != nil {
		fields[types.KeyLabels] = types.JoinLabels(metadata.Labels)
	}
	if metadata.Properties != nil {
		encoded, err := types.EncodeProperties(metadata.Properties)
		if err != nil {
			return err
		}
		fields[types.KeyProperties] = encoded
	}

	for field, value := range fields {
		if err := e.backend.Storage().PutVersion(ctx, key, version, field, value); err != nil {
			return e.translateVersionError(err, key, version)
		}
	}
	return nil
}

func (e *Engine) logIfDeprecated(key types.ArtifactKey, record types.VersionRecord) {
	if types.RecordState(record) == types.StateDeprecated {
		e.logger.LogDeprecatedServe(key.GroupID, key.ArtifactID, record.Version())
	}
}

// translateVersionError maps storage sentinels to domain errors
func (e *Engine) translateVersionError(err error, key types.ArtifactKey, version int64) error {
	switch {
	case stderrors.Is(err, storage.ErrVersionAbsent):
		return errors.NewVersionNotFound(key.GroupID, key.ArtifactID, version)
	case stderrors.Is(err, storage.ErrArtifactAbsent):
		return errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	default:
		return errors.NewStorageError("storage operation failed", err)
	}
}

// latestRecord returns the record with the highest version number among
// those whose state is in the given set; nil set means no state filter.
func latestRecord(index storage.VersionIndex, states []types.ArtifactState) types.VersionRecord {
	var best types.VersionRecord
	var bestVersion int64
	for version, record := range index {
		if !types.StateIn(types.RecordState(record), states) {
			continue
		}
		if best == nil || version > bestVersion {
			best = record
			bestVersion = version
		}
	}
	return best
}

// maxVersion returns the highest version number present, 0 for an empty index
func maxVersion(index storage.VersionIndex) int64 {
	var max int64
	for version := range index {
		if version > max {
			max = version
		}
	}
	return max
}

// firstCreatedOn returns the creation time of the lowest-numbered version
func firstCreatedOn(index storage.VersionIndex) int64 {
	var minVersion int64 = -1
	var created int64
	for version, record := range index {
		if minVersion < 0 || version < minVersion {
			minVersion = version
			created, _ = strconv.ParseInt(record[types.KeyCreatedOn], 10, 64)
		}
	}
	return created
}

// artifactMetaDataFromIndex builds artifact metadata from the latest ACTIVE
// version, fixing createdOn to the first version's creation time and
// modifiedOn to the latest version's creation time.
func artifactMetaDataFromIndex(key types.ArtifactKey, index storage.VersionIndex) (*types.ArtifactMetaData, error) {
	record := latestRecord(index, types.ActiveStates)
	if record == nil {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}
	meta, err := types.ToArtifactMetaData(record)
	if err != nil {
		return nil, err
	}
	if created := firstCreatedOn(index); created != 0 {
		meta.CreatedOn = created
	}
	latestCreated, _ := strconv.ParseInt(record[types.KeyCreatedOn], 10, 64)
	meta.ModifiedOn = latestCreated
	return meta, nil
}

// sortedVersions returns the version numbers of an index in ascending order
func sortedVersions(index storage.VersionIndex) []int64 {
	versions := make([]int64, 0, len(index))
	for version := range index {
		versions = append(versions, version)
	}
	sortInt64s(versions)
	return versions
}

func sortInt64s(values []int64) {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
}
