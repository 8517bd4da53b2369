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

package search

import (
	"sort"
	"strings"

	"github.com/artifact-registry/registryd/internal/types"
)

// Sort orders metadata in place by the given key and direction. Name
// ordering falls back to the artifact id for records without a name, and
// ties always break on the artifact id so the order is total.
func Sort(items []*types.ArtifactMetaData, orderBy types.OrderBy, direction types.OrderDirection) {
	less := compareFunc(orderBy)
	sort.SliceStable(items, func(i, j int) bool {
		cmp := less(items[i], items[j])
		if direction == types.OrderDesc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareFunc(orderBy types.OrderBy) func(a, b *types.ArtifactMetaData) int {
	switch orderBy {
	case types.OrderByCreatedOn:
		return func(a, b *types.ArtifactMetaData) int {
			switch {
			case a.CreatedOn < b.CreatedOn:
				return -1
			case a.CreatedOn > b.CreatedOn:
				return 1
			default:
				return strings.Compare(a.ID, b.ID)
			}
		}
	default: // OrderByName
		return func(a, b *types.ArtifactMetaData) int {
			if cmp := strings.Compare(strings.ToLower(sortName(a)), strings.ToLower(sortName(b))); cmp != 0 {
				return cmp
			}
			return strings.Compare(a.ID, b.ID)
		}
	}
}

func sortName(meta *types.ArtifactMetaData) string {
	if meta.Name != "" {
		return meta.Name
	}
	return meta.ID
}

// Page applies offset and limit to an already sorted slice. It never
// reorders; count semantics belong to the caller.
func Page(items []*types.ArtifactMetaData, offset, limit int) []*types.ArtifactMetaData {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
