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
	"reflect"
	"testing"
	"time"

	"github.com/artifact-registry/registryd/internal/config"
	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/logging"
	"github.com/artifact-registry/registryd/internal/provider"
	"github.com/artifact-registry/registryd/internal/storage"
	"github.com/artifact-registry/registryd/internal/types"
)

// newTestEngine builds an engine on the in-memory backend with a
// deterministic clock and id generator.
func newTestEngine() (*Engine, storage.Backend) {
	backend := storage.NewMemoryBackend(storage.MemoryBackendConfig{})
	logger := logging.NewLogger(config.LoggingConfig{Level: "error", Format: "json"})
	engine := NewEngine(backend, provider.NewDefaultFactory(), NewStaticIdentity("tester"), logger)

	now := time.UnixMilli(1_000_000)
	engine.clock = func() time.Time { return now }
	engine.idGenerator = func() string { return "generated-id" }
	return engine, backend
}

func strptr(s string) *string { return &s }

func TestCreateArtifact(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	meta, err := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("schema-v1"))
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	if meta.GroupID != "g" || meta.ID != "a" {
		t.Errorf("unexpected identity: %s/%s", meta.GroupID, meta.ID)
	}
	if meta.Version != 1 {
		t.Errorf("first version must be 1, got %d", meta.Version)
	}
	if meta.GlobalID == 0 {
		t.Errorf("expected a non-zero globalId")
	}
	if meta.CreatedBy != "tester" {
		t.Errorf("expected creator tester, got %q", meta.CreatedBy)
	}
	if meta.State != types.StateEnabled {
		t.Errorf("new versions must be ENABLED, got %s", meta.State)
	}
	if meta.Type != types.TypeAvro {
		t.Errorf("unexpected type %s", meta.Type)
	}
	if meta.CreatedOn != 1_000_000 || meta.ModifiedOn != 1_000_000 {
		t.Errorf("unexpected timestamps: %d %d", meta.CreatedOn, meta.ModifiedOn)
	}
}

func TestCreateArtifact_EmptyGroupUsesDefault(t *testing.T) {
	engine, _ := newTestEngine()
	meta, err := engine.CreateArtifact(context.Background(), "", "a", types.TypeAvro, []byte("x"))
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	if meta.GroupID != types.DefaultGroupID {
		t.Errorf("expected default group, got %q", meta.GroupID)
	}
}

func TestCreateArtifact_GeneratedID(t *testing.T) {
	engine, _ := newTestEngine()
	meta, err := engine.CreateArtifact(context.Background(), "g", "", types.TypeAvro, []byte("x"))
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	if meta.ID != "generated-id" {
		t.Errorf("expected generated id, got %q", meta.ID)
	}
}

func TestCreateArtifact_AlreadyExists(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("x")); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	_, err := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("y"))
	if !errors.HasCode(err, errors.ErrArtifactAlreadyExists) {
		t.Errorf("expected already-exists, got %v", err)
	}
}

func TestUpdateArtifact_NotFoundUndoesEmptyIndex(t *testing.T) {
	engine, backend := newTestEngine()
	ctx := context.Background()

	_, err := engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("x"))
	if !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	// The empty mapping materialized by Compute must have been removed again
	keys, _ := backend.Storage().KeySet(ctx)
	if len(keys) != 0 {
		t.Errorf("expected no residual keys, got %v", keys)
	}
}

func TestUpdateArtifact_RequiresArtifactID(t *testing.T) {
	engine, _ := newTestEngine()
	_, err := engine.UpdateArtifact(context.Background(), "g", "", types.TypeAvro, []byte("x"))
	if !errors.HasCode(err, errors.ErrInvalidRequestFormat) {
		t.Errorf("expected invalid request, got %v", err)
	}
}

func TestUpdateArtifact_Timestamps(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	now := time.UnixMilli(1_000_000)
	engine.clock = func() time.Time { return now }
	if _, err := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1")); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	now = time.UnixMilli(2_000_000)
	meta, err := engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))
	if err != nil {
		t.Fatalf("UpdateArtifact failed: %v", err)
	}
	if meta.Version != 2 {
		t.Errorf("expected version 2, got %d", meta.Version)
	}
	// createdOn is pinned to version 1's creation; modifiedOn follows the latest
	if meta.CreatedOn != 1_000_000 {
		t.Errorf("createdOn must stay at version 1 time, got %d", meta.CreatedOn)
	}
	if meta.ModifiedOn != 2_000_000 {
		t.Errorf("modifiedOn must be the latest version time, got %d", meta.ModifiedOn)
	}
}

func TestVersionNumbersNeverReused(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))

	if err := engine.DeleteArtifactVersion(ctx, "g", "a", 2); err != nil {
		t.Fatalf("DeleteArtifactVersion failed: %v", err)
	}

	meta, err := engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v3"))
	if err != nil {
		t.Fatalf("UpdateArtifact failed: %v", err)
	}
	if meta.Version != 3 {
		t.Errorf("deleted version numbers must not be reused, got %d", meta.Version)
	}
}

func TestGlobalIDsNeverReused(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	first, _ := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.DeleteArtifact(ctx, "g", "a")
	second, _ := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))

	if second.GlobalID <= first.GlobalID {
		t.Errorf("global ids must be strictly increasing: %d then %d", first.GlobalID, second.GlobalID)
	}
}

func TestMetadataCarryForward(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	name := "Widget"
	description := "A widget"
	if _, err := engine.CreateArtifactWithMetadata(ctx, "g", "a", types.TypeAvro, []byte("v1"),
		&types.EditableArtifactMetaData{Name: &name, Description: &description}); err != nil {
		t.Fatalf("CreateArtifactWithMetadata failed: %v", err)
	}

	meta, err := engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))
	if err != nil {
		t.Fatalf("UpdateArtifact failed: %v", err)
	}
	if meta.Name != "Widget" || meta.Description != "A widget" {
		t.Errorf("name/description must carry forward, got %q %q", meta.Name, meta.Description)
	}
}

func TestExtractedMetadataWinsOverInherited(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	name := "Old Name"
	engine.CreateArtifactWithMetadata(ctx, "g", "a", types.TypeJSON, []byte(`{"type":"object"}`),
		&types.EditableArtifactMetaData{Name: &name})

	meta, err := engine.UpdateArtifact(ctx, "g", "a", types.TypeJSON, []byte(`{"title":"Extracted Name"}`))
	if err != nil {
		t.Fatalf("UpdateArtifact failed: %v", err)
	}
	if meta.Name != "Extracted Name" {
		t.Errorf("extracted name must win over inherited, got %q", meta.Name)
	}
}

func TestCallerMetadataWinsOverExtracted(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	name := "Caller Name"
	meta, err := engine.CreateArtifactWithMetadata(ctx, "g", "a", types.TypeJSON,
		[]byte(`{"title":"Extracted Name"}`), &types.EditableArtifactMetaData{Name: &name})
	if err != nil {
		t.Fatalf("CreateArtifactWithMetadata failed: %v", err)
	}
	if meta.Name != "Caller Name" {
		t.Errorf("caller metadata must win over extracted, got %q", meta.Name)
	}
}

func TestGetArtifact_LatestActive(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))

	stored, err := engine.GetArtifact(ctx, "g", "a")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if string(stored.Content) != "v2" || stored.Version != 2 {
		t.Errorf("expected latest content v2, got %q version %d", stored.Content, stored.Version)
	}

	// Disabling the latest version makes the previous one the visible latest
	if err := engine.UpdateArtifactVersionState(ctx, "g", "a", 2, types.StateDisabled); err != nil {
		t.Fatalf("UpdateArtifactVersionState failed: %v", err)
	}
	stored, err = engine.GetArtifact(ctx, "g", "a")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if string(stored.Content) != "v1" {
		t.Errorf("expected fallback to v1, got %q", stored.Content)
	}
}

func TestGetArtifact_DeprecatedStillServed(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	if err := engine.UpdateArtifactState(ctx, "g", "a", types.StateDeprecated); err != nil {
		t.Fatalf("UpdateArtifactState failed: %v", err)
	}

	stored, err := engine.GetArtifact(ctx, "g", "a")
	if err != nil {
		t.Fatalf("deprecated versions must still be served: %v", err)
	}
	if string(stored.Content) != "v1" {
		t.Errorf("unexpected content %q", stored.Content)
	}
}

func TestGetArtifact_NoActiveVersions(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifactState(ctx, "g", "a", types.StateDisabled)

	_, err := engine.GetArtifact(ctx, "g", "a")
	if !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("artifact with no active versions must be invisible, got %v", err)
	}
}

func TestDeleteArtifact(t *testing.T) {
	engine, backend := newTestEngine()
	ctx := context.Background()

	first, _ := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))
	engine.CreateArtifactRule(ctx, "g", "a", types.RuleValidity, &types.RuleConfiguration{Configuration: "FULL"})

	versions, err := engine.DeleteArtifact(ctx, "g", "a")
	if err != nil {
		t.Fatalf("DeleteArtifact failed: %v", err)
	}
	if !reflect.DeepEqual(versions, []int64{1, 2}) {
		t.Errorf("expected ascending versions [1 2], got %v", versions)
	}

	if _, err := engine.GetArtifact(ctx, "g", "a"); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("expected not-found after delete, got %v", err)
	}

	// Global index entries and rules must be gone too
	if tuple, _ := backend.Global().Get(ctx, first.GlobalID); tuple != nil {
		t.Errorf("global index entry must be removed")
	}
	if rules, _ := backend.ArtifactRules().Keys(ctx, types.NewArtifactKey("g", "a")); len(rules) != 0 {
		t.Errorf("artifact rules must be removed, got %v", rules)
	}

	if _, err := engine.DeleteArtifact(ctx, "g", "a"); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("second delete must be not-found, got %v", err)
	}
}

func TestDeleteArtifacts_GroupSweep(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g1", "a", types.TypeAvro, []byte("x"))
	engine.CreateArtifact(ctx, "g1", "b", types.TypeAvro, []byte("x"))
	engine.CreateArtifact(ctx, "g2", "c", types.TypeAvro, []byte("x"))

	if err := engine.DeleteArtifacts(ctx, "g1"); err != nil {
		t.Fatalf("DeleteArtifacts failed: %v", err)
	}

	if _, err := engine.GetArtifact(ctx, "g1", "a"); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("g1/a must be gone")
	}
	if _, err := engine.GetArtifact(ctx, "g1", "b"); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("g1/b must be gone")
	}
	if _, err := engine.GetArtifact(ctx, "g2", "c"); err != nil {
		t.Errorf("other groups must survive: %v", err)
	}
}

func TestGetArtifactMetaDataByGlobalID(t *testing.T) {
	engine, backend := newTestEngine()
	ctx := context.Background()

	created, _ := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))

	meta, err := engine.GetArtifactMetaDataByGlobalID(ctx, created.GlobalID)
	if err != nil {
		t.Fatalf("GetArtifactMetaDataByGlobalID failed: %v", err)
	}
	if meta.GroupID != "g" || meta.ID != "a" || meta.Version != 1 {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	if _, err := engine.GetArtifactMetaDataByGlobalID(ctx, 99999); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("expected not-found for unknown global id, got %v", err)
	}

	// A dangling index entry is not-found, never a fault
	backend.Global().Put(ctx, 77, storage.TupleID{GroupID: "gone", ArtifactID: "gone", Version: 1})
	if _, err := engine.GetArtifactMetaDataByGlobalID(ctx, 77); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("expected not-found for dangling entry, got %v", err)
	}
}

func TestGetArtifactVersionByGlobalID_InactiveHidden(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	created, _ := engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))

	stored, err := engine.GetArtifactVersionByGlobalID(ctx, created.GlobalID)
	if err != nil {
		t.Fatalf("GetArtifactVersionByGlobalID failed: %v", err)
	}
	if string(stored.Content) != "v1" {
		t.Errorf("unexpected content %q", stored.Content)
	}

	engine.UpdateArtifactVersionState(ctx, "g", "a", 1, types.StateDisabled)
	if _, err := engine.GetArtifactVersionByGlobalID(ctx, created.GlobalID); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("disabled versions must be hidden from global id reads, got %v", err)
	}
}

func TestGetArtifactVersionMetaDataByContent(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeJSON, []byte(`{"a":1,"b":2}`))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeJSON, []byte(`{"c":3}`))

	// Exact byte match
	meta, err := engine.GetArtifactVersionMetaDataByContent(ctx, "g", "a", []byte(`{"c":3}`), false)
	if err != nil {
		t.Fatalf("exact match failed: %v", err)
	}
	if meta.Version != 2 {
		t.Errorf("expected version 2, got %d", meta.Version)
	}

	// Canonical match tolerates key order and whitespace
	meta, err = engine.GetArtifactVersionMetaDataByContent(ctx, "g", "a", []byte(`{"b": 2, "a": 1}`), true)
	if err != nil {
		t.Fatalf("canonical match failed: %v", err)
	}
	if meta.Version != 1 {
		t.Errorf("expected version 1, got %d", meta.Version)
	}

	// Without canonicalization the same candidate must not match
	if _, err := engine.GetArtifactVersionMetaDataByContent(ctx, "g", "a", []byte(`{"b": 2, "a": 1}`), false); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("expected no exact match, got %v", err)
	}
}

func TestUpdateArtifactMetaData(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))

	err := engine.UpdateArtifactMetaData(ctx, "g", "a", &types.EditableArtifactMetaData{
		Name:       strptr("Renamed"),
		Labels:     []string{"x", "y"},
		Properties: map[string]string{"team": "core"},
	})
	if err != nil {
		t.Fatalf("UpdateArtifactMetaData failed: %v", err)
	}

	meta, err := engine.GetArtifactMetaData(ctx, "g", "a")
	if err != nil {
		t.Fatalf("GetArtifactMetaData failed: %v", err)
	}
	if meta.Name != "Renamed" {
		t.Errorf("expected renamed artifact, got %q", meta.Name)
	}
	if !reflect.DeepEqual(meta.Labels, []string{"x", "y"}) {
		t.Errorf("unexpected labels: %v", meta.Labels)
	}
	if !reflect.DeepEqual(meta.Properties, map[string]string{"team": "core"}) {
		t.Errorf("unexpected properties: %v", meta.Properties)
	}
}

func TestUpdateArtifactState_Idempotent(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))

	if err := engine.UpdateArtifactState(ctx, "g", "a", types.StateEnabled); err != nil {
		t.Errorf("idempotent transition must succeed: %v", err)
	}
	if err := engine.UpdateArtifactState(ctx, "g", "a", types.StateDeprecated); err != nil {
		t.Errorf("transition to DEPRECATED failed: %v", err)
	}
	meta, _ := engine.GetArtifactMetaData(ctx, "g", "a")
	if meta.State != types.StateDeprecated {
		t.Errorf("expected DEPRECATED, got %s", meta.State)
	}
}

func TestGetArtifactIDs(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g1", "a", types.TypeAvro, []byte("x"))
	engine.CreateArtifact(ctx, "g2", "a", types.TypeAvro, []byte("x"))
	engine.CreateArtifact(ctx, "g1", "b", types.TypeAvro, []byte("x"))

	ids, err := engine.GetArtifactIDs(ctx, 0)
	if err != nil {
		t.Fatalf("GetArtifactIDs failed: %v", err)
	}
	// The same id in two groups is reported once
	if len(ids) != 2 {
		t.Errorf("expected 2 distinct ids, got %v", ids)
	}

	ids, _ = engine.GetArtifactIDs(ctx, 1)
	if len(ids) != 1 {
		t.Errorf("limit must cap the listing, got %v", ids)
	}
}
