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

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/search"
	"github.com/artifact-registry/registryd/internal/types"
)

// SearchArtifacts filters the live artifact set, then orders and paginates
// the matches. Count always reflects the match total before pagination.
// Keys that vanish between enumeration and metadata resolution are skipped;
// a delete racing a search is not an error.
func (e *Engine) SearchArtifacts(ctx context.Context, filters []types.SearchFilter, orderBy types.OrderBy, direction types.OrderDirection, offset, limit int) (*types.ArtifactSearchResults, error) {
	keys, err := e.backend.Storage().KeySet(ctx)
	if err != nil {
		return nil, errors.NewStorageError("failed to enumerate artifacts", err)
	}

	matches := make([]*types.ArtifactMetaData, 0, len(keys))
	for _, key := range keys {
		index, err := e.backend.Storage().Get(ctx, key)
		if err != nil {
			return nil, errors.NewStorageError("failed to read version index", err)
		}
		if len(index) == 0 {
			continue
		}
		meta, err := artifactMetaDataFromIndex(key, index)
		if err != nil {
			// Artifacts with no ACTIVE versions are invisible to search
			if errors.HasCode(err, errors.ErrArtifactNotFound) {
				continue
			}
			return nil, err
		}

		accepted, err := search.Matches(meta, filters)
		if err != nil {
			return nil, err
		}
		if accepted {
			matches = append(matches, meta)
		}
	}

	count := len(matches)
	search.Sort(matches, orderBy, direction)
	page := search.Page(matches, offset, limit)

	artifacts := make([]types.SearchedArtifact, 0, len(page))
	for _, meta := range page {
		artifacts = append(artifacts, types.BuildSearchedArtifact(meta))
	}
	return &types.ArtifactSearchResults{Artifacts: artifacts, Count: count}, nil
}

// SearchVersions lists the versions of one artifact as a paginated result
// set ordered by version number.
func (e *Engine) SearchVersions(ctx context.Context, groupID, artifactID string, offset, limit int) (*types.VersionSearchResults, error) {
	key := types.NewArtifactKey(groupID, artifactID)

	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to read version index", err)
	}
	if len(index) == 0 {
		return nil, errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}

	ordered := sortedVersions(index)
	count := len(ordered)

	if offset < 0 {
		offset = 0
	}
	if offset > len(ordered) {
		offset = len(ordered)
	}
	ordered = ordered[offset:]
	if limit >= 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}

	versions := make([]types.SearchedVersion, 0, len(ordered))
	for _, version := range ordered {
		meta, err := types.ToArtifactVersionMetaData(index[version])
		if err != nil {
			return nil, err
		}
		versions = append(versions, types.BuildSearchedVersion(meta))
	}
	return &types.VersionSearchResults{Versions: versions, Count: count}, nil
}
