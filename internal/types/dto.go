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

package types

// ArtifactMetaData is the full metadata view of an artifact, reported from
// its latest version. CreatedOn always reflects version 1's creation time;
// ModifiedOn reflects the latest version's creation time.
type ArtifactMetaData struct {
	GroupID     string            `json:"groupId"`
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	CreatedBy   string            `json:"createdBy"`
	CreatedOn   int64             `json:"createdOn"`
	ModifiedOn  int64             `json:"modifiedOn"`
	Version     int64             `json:"version"`
	GlobalID    int64             `json:"globalId"`
	Type        ArtifactType      `json:"type"`
	State       ArtifactState     `json:"state"`
}

// ArtifactVersionMetaData is the metadata view of one specific version
type ArtifactVersionMetaData struct {
	GroupID     string            `json:"groupId"`
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	CreatedBy   string            `json:"createdBy"`
	CreatedOn   int64             `json:"createdOn"`
	Version     int64             `json:"version"`
	GlobalID    int64             `json:"globalId"`
	Type        ArtifactType      `json:"type"`
	State       ArtifactState     `json:"state"`
}

// StoredArtifact is the content view of one version
type StoredArtifact struct {
	Content  []byte `json:"content"`
	Version  int64  `json:"version"`
	GlobalID int64  `json:"globalId"`
}

// EditableArtifactMetaData carries the mutable metadata fields of an
// artifact. Nil fields are left untouched on update.
type EditableArtifactMetaData struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// RuleConfiguration is the opaque configuration of one rule
type RuleConfiguration struct {
	Configuration string `json:"config"`
}

// SearchedArtifact is the narrower artifact shape returned by search
type SearchedArtifact struct {
	GroupID     string        `json:"groupId"`
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
	CreatedBy   string        `json:"createdBy"`
	CreatedOn   int64         `json:"createdOn"`
	ModifiedOn  int64         `json:"modifiedOn"`
	Type        ArtifactType  `json:"type"`
	State       ArtifactState `json:"state"`
}

// SearchedVersion is the narrower version shape returned by version listing
type SearchedVersion struct {
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
	CreatedBy   string        `json:"createdBy"`
	CreatedOn   int64         `json:"createdOn"`
	Type        ArtifactType  `json:"type"`
	State       ArtifactState `json:"state"`
	GlobalID    int64         `json:"globalId"`
	Version     int64         `json:"version"`
}

// ArtifactSearchResults is a page of artifact search matches. Count always
// reflects the number of matches before pagination.
type ArtifactSearchResults struct {
	Artifacts []SearchedArtifact `json:"artifacts"`
	Count     int                `json:"count"`
}

// VersionSearchResults is a page of version listing results
type VersionSearchResults struct {
	Versions []SearchedVersion `json:"versions"`
	Count    int               `json:"count"`
}

// BuildSearchedArtifact maps full artifact metadata to the search result shape
func BuildSearchedArtifact(meta *ArtifactMetaData) SearchedArtifact {
	return SearchedArtifact{
		GroupID:     meta.GroupID,
		ID:          meta.ID,
		Name:        meta.Name,
		Description: meta.Description,
		Labels:      meta.Labels,
		CreatedBy:   meta.CreatedBy,
		CreatedOn:   meta.CreatedOn,
		ModifiedOn:  meta.ModifiedOn,
		Type:        meta.Type,
		State:       meta.State,
	}
}

// BuildSearchedVersion maps version metadata to the version listing shape
func BuildSearchedVersion(meta *ArtifactVersionMetaData) SearchedVersion {
	return SearchedVersion{
		Name:        meta.Name,
		Description: meta.Description,
		Labels:      meta.Labels,
		CreatedBy:   meta.CreatedBy,
		CreatedOn:   meta.CreatedOn,
		Type:        meta.Type,
		State:       meta.State,
		GlobalID:    meta.GlobalID,
		Version:     meta.Version,
	}
}
