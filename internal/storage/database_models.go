/*
 * Copyright 2025 Sen Wang
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
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/artifact-registry/registryd/internal/types"
)

// ArtifactEntry marks one live ArtifactKey. A row exists even while the
// artifact holds zero versions so Compute's empty-mapping semantics survive
// a round trip through the database.
type ArtifactEntry struct {
	ID         uint      `gorm:"primarykey" json:"-"`
	GroupID    string    `gorm:"size:512;not null;uniqueIndex:idx_artifact_key" json:"group_id"`
	ArtifactID string    `gorm:"size:512;not null;uniqueIndex:idx_artifact_key" json:"artifact_id"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()" json:"created_at"`
}

// VersionEntry holds one version record. The composite unique index gives
// CreateVersion its conflict detection; the global_id unique index protects
// against id reuse.
type VersionEntry struct {
	ID         uint           `gorm:"primarykey" json:"-"`
	GroupID    string         `gorm:"size:512;not null;uniqueIndex:idx_version_key" json:"group_id"`
	ArtifactID string         `gorm:"size:512;not null;uniqueIndex:idx_version_key" json:"artifact_id"`
	Version    int64          `gorm:"not null;uniqueIndex:idx_version_key" json:"version"`
	GlobalID   int64          `gorm:"not null;uniqueIndex" json:"global_id"`
	Record     datatypes.JSON `gorm:"type:jsonb;not null" json:"record"`
}

// GlobalEntry is one row of the globalId index
type GlobalEntry struct {
	ID         uint   `gorm:"primarykey" json:"-"`
	GlobalID   int64  `gorm:"not null;uniqueIndex" json:"global_id"`
	GroupID    string `gorm:"size:512;not null" json:"group_id"`
	ArtifactID string `gorm:"size:512;not null" json:"artifact_id"`
	Version    int64  `gorm:"not null" json:"version"`
}

// ArtifactRuleEntry is one per-artifact rule configuration
type ArtifactRuleEntry struct {
	ID         uint   `gorm:"primarykey" json:"-"`
	GroupID    string `gorm:"size:512;not null;uniqueIndex:idx_artifact_rule" json:"group_id"`
	ArtifactID string `gorm:"size:512;not null;uniqueIndex:idx_artifact_rule" json:"artifact_id"`
	Rule       string `gorm:"size:64;not null;uniqueIndex:idx_artifact_rule" json:"rule"`
	Config     string `gorm:"type:text;not null" json:"config"`
}

// GlobalRuleEntry is one global rule configuration
type GlobalRuleEntry struct {
	ID     uint   `gorm:"primarykey" json:"-"`
	Rule   string `gorm:"size:64;not null;uniqueIndex" json:"rule"`
	Config string `gorm:"type:text;not null" json:"config"`
}

// SequenceEntry backs the global id counter
type SequenceEntry struct {
	Name  string `gorm:"primarykey;size:64" json:"name"`
	Value int64  `gorm:"not null" json:"value"`
}

// globalIDSequence is the name of the row backing NextGlobalID
const globalIDSequence = "globalId"

// encodeRecord marshals a version record into the JSONB column
func encodeRecord(record types.VersionRecord) (datatypes.JSON, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// decodeRecord unmarshals the JSONB column back into a version record
func decodeRecord(data datatypes.JSON) (types.VersionRecord, error) {
	record := make(types.VersionRecord)
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record, nil
}
