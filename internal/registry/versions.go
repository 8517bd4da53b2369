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

package registry

import (
	"context"
	stderrors "errors"

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/storage"
	"github.com/artifact-registry/registryd/internal/types"
)

// GetArtifactVersions lists the version numbers of an artifact in ascending order
func (e *Engine) GetArtifactVersions(ctx context.Context, groupID, artifactID string) ([]int64, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	if len(index) == 0 {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}
	return sortedVersions(index), nil
}

// GetArtifactVersion returns the content of one specific version. Inactive
// versions are reported as not found; serving a DEPRECATED version is
// logged, never failed.
func (e *Engine) GetArtifactVersion(ctx context.Context, groupID, artifactID string, version int64) (*types.StoredArtifact, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	record, err := e.versionRecord(ctx, key, version)
	if err != nil {
		return nil, err
	}
	if !types.RecordState(record).IsActive() {
		return nil, errors.NewVersionNotFound(key.GroupID, key.ArtifactID, version)
	}
	e.logIfDeprecated(key, record)
	return types.ToStoredArtifact(record)
}

// GetArtifactVersionMetaData returns the metadata of one specific version
func (e *Engine) GetArtifactVersionMetaData(ctx context.Context, groupID, artifactID string, version int64) (*types.ArtifactVersionMetaData, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	record, err := e.versionRecord(ctx, key, version)
	if err != nil {
		return nil, err
	}
	return types.ToArtifactVersionMetaData(record)
}

// UpdateArtifactVersionMetaData applies editable metadata to one specific version
func (e *Engine) UpdateArtifactVersionMetaData(ctx context.Context, groupID, artifactID string, version int64, metadata *types.EditableArtifactMetaData) error {
	key := types.NewArtifactKey(groupID, artifactID)

	if _, err := e.versionRecord(ctx, key, version); err != nil {
		return err
	}
	return e.putEditableMetadata(ctx, key, version, metadata)
}

// DeleteArtifactVersionMetaData removes the editable metadata fields of one
// version; the content itself is untouched.
func (e *Engine) DeleteArtifactVersionMetaData(ctx context.Context, groupID, artifactID string, version int64) error {
	key := types.NewArtifactKey(groupID, artifactID)

	fields := []string{
		types.KeyName,
		types.KeyDescription,
		types.KeyLabels,
		types.KeyProperties,
		types.KeyCreatedBy,
	}
	for _, field := range fields {
		if err := e.backend.Storage().RemoveVersionField(ctx, key, version, field); err != nil {
			return e.translateVersionError(err, key, version)
		}
	}
	return nil
}

// UpdateArtifactVersionState transitions one specific version to the target state
func (e *Engine) UpdateArtifactVersionState(ctx context.Context, groupID, artifactID string, version int64, state types.ArtifactState) error {
	key := types.NewArtifactKey(groupID, artifactID)

	record, err := e.versionRecord(ctx, key, version)
	if err != nil {
		return err
	}

	var writeErr error
	types.ApplyState(func(target types.ArtifactState) {
		writeErr = e.backend.Storage().PutVersion(ctx, key, version, types.KeyState, string(target))
	}, record, state)
	if writeErr != nil {
		return e.translateVersionError(writeErr, key, version)
	}
	return nil
}

// DeleteArtifactVersion removes one version and its global index entry. The
// artifact survives even when its last version is removed; only the
// whole-artifact delete destroys it.
func (e *Engine) DeleteArtifactVersion(ctx context.Context, groupID, artifactID string, version int64) error {
	key := types.NewArtifactKey(groupID, artifactID)

	globalID, err := e.backend.Storage().RemoveVersion(ctx, key, version)
	if err != nil {
		if stderrors.Is(err, storage.ErrVersionAbsent) || stderrors.Is(err, storage.ErrArtifactAbsent) {
			return errors.NewVersionNotFound(key.GroupID, key.ArtifactID, version)
		}
		return errors.NewStorageError("failed to remove version", err)
	}

	if err := e.backend.Global().Remove(ctx, globalID); err != nil {
		e.logger.Error("failed to de-index global id", err)
	}
	return nil
}

// versionRecord resolves one version record, translating absence into
// domain not-found errors.
func (e *Engine) versionRecord(ctx context.Context, key types.ArtifactKey, version int64) (types.VersionRecord, error) {
	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	if len(index) == 0 {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}
	record, ok := index[version]
	if !ok {
		return nil, errors.NewVersionNotFound(key.GroupID, key.ArtifactID, version)
	}
	return record, nil
}
