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

// Package search implements the filter predicates, ordering and pagination
// used by artifact search. Everything here is a pure function over already
// materialized metadata; no knowledge of storage.
package search

import (
	"strings"

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/types"
)

// Matches reports whether the metadata passes every filter. Filters are
// AND-combined.
func Matches(meta *types.ArtifactMetaData, filters []types.SearchFilter) (bool, error) {
	for _, filter := range filters {
		accepted, err := matchesFilter(meta, filter)
		if err != nil {
			return false, err
		}
		if !accepted {
			return false, nil
		}
	}
	return true, nil
}

func matchesFilter(meta *types.ArtifactMetaData, filter types.SearchFilter) (bool, error) {
	search := filter.Value
	switch filter.Type {
	case types.FilterDescription:
		return valueContains(search, meta.Description), nil

	case types.FilterEverything:
		return valueContains(search, meta.Description) ||
			valueIs(search, meta.GroupID) ||
			anyValueContains(search, meta.Labels) ||
			valueContains(search, meta.Name) ||
			valueContains(search, meta.ID), nil

	case types.FilterGroup:
		return valueIs(search, meta.GroupID), nil

	case types.FilterLabels:
		return anyValueContains(search, meta.Labels), nil

	case types.FilterName:
		// A name query matches against the display name or the artifact id.
		return valueContains(search, meta.Name) || valueContains(search, meta.ID), nil

	case types.FilterProperties:
		return false, errors.New(errors.ErrNotSupported, "searching over properties is not supported")

	default:
		return false, errors.Newf(errors.ErrInvalidRequestFormat, "unknown search filter type: %s", filter.Type)
	}
}

// valueContains is a case-insensitive substring match
func valueContains(search, value string) bool {
	return value != "" && strings.Contains(strings.ToLower(value), strings.ToLower(search))
}

// valueIs is a case-insensitive exact match
func valueIs(search, value string) bool {
	return value != "" && strings.EqualFold(value, search)
}

// anyValueContains matches if any value in the list contains the search string
func anyValueContains(search string, values []string) bool {
	for _, value := range values {
		if valueContains(search, value) {
			return true
		}
	}
	return false
}
