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
	"bytes"
	"reflect"
	"testing"

	"github.com/artifact-registry/registryd/internal/errors"
)

func TestVersionRecord_ContentRoundTrip(t *testing.T) {
	record := make(VersionRecord)
	content := []byte(`{"type":"object"}`)
	record.PutContent(content)

	got, err := record.Content()
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("expected %q, got %q", content, got)
	}
}

func TestVersionRecord_ContentInvalidBase64(t *testing.T) {
	record := VersionRecord{KeyContent: "not base64!!!"}
	_, err := record.Content()
	if err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if !errors.HasCode(err, errors.ErrStorageError) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestVersionRecord_Clone(t *testing.T) {
	record := VersionRecord{KeyName: "original"}
	clone := record.Clone()
	clone[KeyName] = "changed"
	if record[KeyName] != "original" {
		t.Errorf("mutating a clone leaked into the original")
	}
}

func TestVersionRecord_NumericFields(t *testing.T) {
	record := VersionRecord{KeyVersion: "3", KeyGlobalID: "42"}
	if record.Version() != 3 {
		t.Errorf("expected version 3, got %d", record.Version())
	}
	if record.GlobalID() != 42 {
		t.Errorf("expected globalId 42, got %d", record.GlobalID())
	}

	// Absent fields parse to zero
	empty := VersionRecord{}
	if empty.Version() != 0 || empty.GlobalID() != 0 {
		t.Errorf("expected zero values for absent fields")
	}
}

func TestToArtifactMetaData(t *testing.T) {
	record := VersionRecord{
		KeyGroupID:     "g",
		KeyArtifactID:  "a",
		KeyName:        "widget",
		KeyDescription: "a widget schema",
		KeyLabels:      "alpha,beta",
		KeyProperties:  `{"team":"core"}`,
		KeyCreatedBy:   "anonymous",
		KeyCreatedOn:   "1000",
		KeyModifiedOn:  "2000",
		KeyVersion:     "2",
		KeyGlobalID:    "7",
		KeyType:        "JSON",
		KeyState:       "DEPRECATED",
	}

	meta, err := ToArtifactMetaData(record)
	if err != nil {
		t.Fatalf("ToArtifactMetaData failed: %v", err)
	}
	if meta.GroupID != "g" || meta.ID != "a" {
		t.Errorf("unexpected identity: %s/%s", meta.GroupID, meta.ID)
	}
	if meta.Name != "widget" || meta.Description != "a widget schema" {
		t.Errorf("unexpected name/description: %q %q", meta.Name, meta.Description)
	}
	if !reflect.DeepEqual(meta.Labels, []string{"alpha", "beta"}) {
		t.Errorf("unexpected labels: %v", meta.Labels)
	}
	if !reflect.DeepEqual(meta.Properties, map[string]string{"team": "core"}) {
		t.Errorf("unexpected properties: %v", meta.Properties)
	}
	if meta.CreatedOn != 1000 || meta.ModifiedOn != 2000 {
		t.Errorf("unexpected timestamps: %d %d", meta.CreatedOn, meta.ModifiedOn)
	}
	if meta.Version != 2 || meta.GlobalID != 7 {
		t.Errorf("unexpected version/globalId: %d %d", meta.Version, meta.GlobalID)
	}
	if meta.Type != TypeJSON || meta.State != StateDeprecated {
		t.Errorf("unexpected type/state: %s %s", meta.Type, meta.State)
	}
}

func TestToArtifactMetaData_OptionalFieldsAbsent(t *testing.T) {
	record := VersionRecord{
		KeyGroupID:    "g",
		KeyArtifactID: "a",
		KeyVersion:    "1",
		KeyGlobalID:   "1",
	}
	meta, err := ToArtifactMetaData(record)
	if err != nil {
		t.Fatalf("ToArtifactMetaData failed: %v", err)
	}
	if meta.Name != "" || meta.Labels != nil || meta.Properties != nil {
		t.Errorf("expected empty optional fields, got %q %v %v", meta.Name, meta.Labels, meta.Properties)
	}
	if meta.State != StateEnabled {
		t.Errorf("expected default ENABLED state, got %s", meta.State)
	}
}

func TestToArtifactMetaData_MalformedProperties(t *testing.T) {
	record := VersionRecord{KeyProperties: "{not json"}
	_, err := ToArtifactMetaData(record)
	if !errors.HasCode(err, errors.ErrInvalidProperties) {
		t.Errorf("expected invalid properties error, got %v", err)
	}
}

func TestEncodeProperties(t *testing.T) {
	encoded, err := EncodeProperties(map[string]string{"team": "core"})
	if err != nil {
		t.Fatalf("EncodeProperties failed: %v", err)
	}
	if encoded != `{"team":"core"}` {
		t.Errorf("unexpected encoding: %s", encoded)
	}
}

func TestJoinLabels(t *testing.T) {
	if got := JoinLabels([]string{"a", "b"}); got != "a,b" {
		t.Errorf("expected a,b got %q", got)
	}
	if got := JoinLabels(nil); got != "" {
		t.Errorf("expected empty string for nil labels, got %q", got)
	}
}

func TestToStoredArtifact(t *testing.T) {
	record := VersionRecord{KeyVersion: "2", KeyGlobalID: "9"}
	record.PutContent([]byte("payload"))

	stored, err := ToStoredArtifact(record)
	if err != nil {
		t.Fatalf("ToStoredArtifact failed: %v", err)
	}
	if string(stored.Content) != "payload" || stored.Version != 2 || stored.GlobalID != 9 {
		t.Errorf("unexpected stored artifact: %+v", stored)
	}
}
