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

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/artifact-registry/registryd/internal/errors"
)

// Field names of a version record. Every version of every artifact is stored
// as a flat string-to-string mapping using these keys.
const (
	KeyContent     = "content"
	KeyVersion     = "version"
	KeyGlobalID    = "globalId"
	KeyGroupID     = "groupId"
	KeyArtifactID  = "artifactId"
	KeyCreatedOn   = "createdOn"
	KeyModifiedOn  = "modifiedOn"
	KeyCreatedBy   = "createdBy"
	KeyType        = "type"
	KeyState       = "state"
	KeyName        = "name"
	KeyDescription = "description"
	KeyLabels      = "labels"
	KeyProperties  = "properties"
)

// VersionRecord is the flat field mapping holding one immutable content
// version plus its metadata fields.
type VersionRecord map[string]string

// Clone returns a shallow copy of the record
func (r VersionRecord) Clone() VersionRecord {
	clone := make(VersionRecord, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// PutContent stores raw content bytes into the record, base64-encoded
func (r VersionRecord) PutContent(content []byte) {
	r[KeyContent] = base64.StdEncoding.EncodeToString(content)
}

// Content returns the raw content bytes stored in the record
func (r VersionRecord) Content() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(r[KeyContent])
	if err != nil {
		return nil, errors.NewStorageError("stored content is not valid base64", err)
	}
	return data, nil
}

// Version returns the version number field
func (r VersionRecord) Version() int64 {
	return parseInt64(r[KeyVersion])
}

// GlobalID returns the global id field
func (r VersionRecord) GlobalID() int64 {
	return parseInt64(r[KeyGlobalID])
}

func parseInt64(value string) int64 {
	n, _ := strconv.ParseInt(value, 10, 64)
	return n
}

// splitLabels splits the comma-joined labels field. Absent or empty labels
// decode to nil.
func splitLabels(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

// decodeProperties JSON-decodes the structured properties field. Absent or
// empty properties decode to nil; malformed JSON is a structured error.
func decodeProperties(value string) (map[string]string, error) {
	if value == "" {
		return nil, nil
	}
	var properties map[string]string
	if err := json.Unmarshal([]byte(value), &properties); err != nil {
		return nil, errors.NewInvalidProperties(err)
	}
	return properties, nil
}

// EncodeProperties JSON-encodes a properties map for storage
func EncodeProperties(properties map[string]string) (string, error) {
	data, err := json.Marshal(properties)
	if err != nil {
		return "", errors.NewInvalidProperties(err)
	}
	return string(data), nil
}

// JoinLabels comma-joins a label list for storage
func JoinLabels(labels []string) string {
	return strings.Join(labels, ",")
}

// ToArtifactMetaData decodes a version record into artifact metadata.
// Optional fields (name, description, labels, properties) may be absent.
func ToArtifactMetaData(record VersionRecord) (*ArtifactMetaData, error) {
	properties, err := decodeProperties(record[KeyProperties])
	if err != nil {
		return nil, err
	}
	return &ArtifactMetaData{
		GroupID:     record[KeyGroupID],
		ID:          record[KeyArtifactID],
		Name:        record[KeyName],
		Description: record[KeyDescription],
		Labels:      splitLabels(record[KeyLabels]),
		Properties:  properties,
		CreatedBy:   record[KeyCreatedBy],
		CreatedOn:   parseInt64(record[KeyCreatedOn]),
		ModifiedOn:  parseInt64(record[KeyModifiedOn]),
		Version:     record.Version(),
		GlobalID:    record.GlobalID(),
		Type:        ArtifactType(record[KeyType]),
		State:       RecordState(record),
	}, nil
}

// ToArtifactVersionMetaData decodes a version record into version metadata
func ToArtifactVersionMetaData(record VersionRecord) (*ArtifactVersionMetaData, error) {
	properties, err := decodeProperties(record[KeyProperties])
	if err != nil {
		return nil, err
	}
	return &ArtifactVersionMetaData{
		GroupID:     record[KeyGroupID],
		ID:          record[KeyArtifactID],
		Name:        record[KeyName],
		Description: record[KeyDescription],
		Labels:      splitLabels(record[KeyLabels]),
		Properties:  properties,
		CreatedBy:   record[KeyCreatedBy],
		CreatedOn:   parseInt64(record[KeyCreatedOn]),
		Version:     record.Version(),
		GlobalID:    record.GlobalID(),
		Type:        ArtifactType(record[KeyType]),
		State:       RecordState(record),
	}, nil
}

// ToStoredArtifact decodes the content-bearing fields of a version record
func ToStoredArtifact(record VersionRecord) (*StoredArtifact, error) {
	content, err := record.Content()
	if err != nil {
		return nil, err
	}
	return &StoredArtifact{
		Content:  content,
		Version:  record.Version(),
		GlobalID: record.GlobalID(),
	}, nil
}
