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

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/types"
)

func TestGetArtifactVersions(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v3"))

	versions, err := engine.GetArtifactVersions(ctx, "g", "a")
	if err != nil {
		t.Fatalf("GetArtifactVersions failed: %v", err)
	}
	if !reflect.DeepEqual(versions, []int64{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", versions)
	}

	if _, err := engine.GetArtifactVersions(ctx, "g", "missing"); !errors.HasCode(err, errors.ErrArtifactNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestGetArtifactVersion(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))

	stored, err := engine.GetArtifactVersion(ctx, "g", "a", 1)
	if err != nil {
		t.Fatalf("GetArtifactVersion failed: %v", err)
	}
	if string(stored.Content) != "v1" || stored.Version != 1 {
		t.Errorf("unexpected version content: %q version %d", stored.Content, stored.Version)
	}

	if _, err := engine.GetArtifactVersion(ctx, "g", "a", 9); !errors.HasCode(err, errors.ErrVersionNotFound) {
		t.Errorf("expected version not-found, got %v", err)
	}

	// Inactive versions are hidden from content reads
	engine.UpdateArtifactVersionState(ctx, "g", "a", 1, types.StateDisabled)
	if _, err := engine.GetArtifactVersion(ctx, "g", "a", 1); !errors.HasCode(err, errors.ErrVersionNotFound) {
		t.Errorf("disabled version must read as not-found, got %v", err)
	}
}

func TestGetArtifactVersionMetaData_NoStateGate(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifactVersionState(ctx, "g", "a", 1, types.StateDisabled)

	// Metadata reads see every stored version regardless of state
	meta, err := engine.GetArtifactVersionMetaData(ctx, "g", "a", 1)
	if err != nil {
		t.Fatalf("GetArtifactVersionMetaData failed: %v", err)
	}
	if meta.State != types.StateDisabled {
		t.Errorf("expected DISABLED, got %s", meta.State)
	}
}

func TestUpdateArtifactVersionMetaData(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))

	err := engine.UpdateArtifactVersionMetaData(ctx, "g", "a", 1, &types.EditableArtifactMetaData{
		Name: strptr("First"),
	})
	if err != nil {
		t.Fatalf("UpdateArtifactVersionMetaData failed: %v", err)
	}

	meta, _ := engine.GetArtifactVersionMetaData(ctx, "g", "a", 1)
	if meta.Name != "First" {
		t.Errorf("expected First, got %q", meta.Name)
	}
	// Other versions are untouched
	meta, _ = engine.GetArtifactVersionMetaData(ctx, "g", "a", 2)
	if meta.Name == "First" {
		t.Errorf("version 2 must not be touched")
	}

	err = engine.UpdateArtifactVersionMetaData(ctx, "g", "a", 9, &types.EditableArtifactMetaData{Name: strptr("x")})
	if !errors.HasCode(err, errors.ErrVersionNotFound) {
		t.Errorf("expected version not-found, got %v", err)
	}
}

func TestDeleteArtifactVersionMetaData(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	name := "Named"
	engine.CreateArtifactWithMetadata(ctx, "g", "a", types.TypeAvro, []byte("v1"), &types.EditableArtifactMetaData{
		Name:       &name,
		Labels:     []string{"x"},
		Properties: map[string]string{"k": "v"},
	})

	if err := engine.DeleteArtifactVersionMetaData(ctx, "g", "a", 1); err != nil {
		t.Fatalf("DeleteArtifactVersionMetaData failed: %v", err)
	}

	meta, err := engine.GetArtifactVersionMetaData(ctx, "g", "a", 1)
	if err != nil {
		t.Fatalf("GetArtifactVersionMetaData failed: %v", err)
	}
	if meta.Name != "" || meta.Labels != nil || meta.Properties != nil || meta.CreatedBy != "" {
		t.Errorf("editable metadata must be cleared, got %+v", meta)
	}
	// Content survives metadata deletion
	stored, err := engine.GetArtifactVersion(ctx, "g", "a", 1)
	if err != nil || string(stored.Content) != "v1" {
		t.Errorf("content must survive, got %q err=%v", stored, err)
	}
}

func TestDeleteArtifactVersion(t *testing.T) {
	engine, backend := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	second, _ := engine.UpdateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v2"))

	if err := engine.DeleteArtifactVersion(ctx, "g", "a", 2); err != nil {
		t.Fatalf("DeleteArtifactVersion failed: %v", err)
	}

	if _, err := engine.GetArtifactVersion(ctx, "g", "a", 2); !errors.HasCode(err, errors.ErrVersionNotFound) {
		t.Errorf("deleted version must be gone, got %v", err)
	}
	if tuple, _ := backend.Global().Get(ctx, second.GlobalID); tuple != nil {
		t.Errorf("global index entry must be removed")
	}
	// The artifact itself survives
	if _, err := engine.GetArtifact(ctx, "g", "a"); err != nil {
		t.Errorf("artifact must survive a version delete: %v", err)
	}

	if err := engine.DeleteArtifactVersion(ctx, "g", "a", 2); !errors.HasCode(err, errors.ErrVersionNotFound) {
		t.Errorf("second delete must be version not-found, got %v", err)
	}
}

func TestDeleteLastVersionKeepsArtifact(t *testing.T) {
	engine, backend := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))
	if err := engine.DeleteArtifactVersion(ctx, "g", "a", 1); err != nil {
		t.Fatalf("DeleteArtifactVersion failed: %v", err)
	}

	// The key stays live with an empty index; only DeleteArtifact destroys it
	index, err := backend.Storage().Get(ctx, types.NewArtifactKey("g", "a"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if index == nil {
		t.Errorf("artifact key must survive its last version")
	}
	if len(index) != 0 {
		t.Errorf("expected empty index, got %d versions", len(index))
	}
}

func TestUpdateArtifactVersionState(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.CreateArtifact(ctx, "g", "a", types.TypeAvro, []byte("v1"))

	if err := engine.UpdateArtifactVersionState(ctx, "g", "a", 1, types.StateDeprecated); err != nil {
		t.Fatalf("UpdateArtifactVersionState failed: %v", err)
	}
	meta, _ := engine.GetArtifactVersionMetaData(ctx, "g", "a", 1)
	if meta.State != types.StateDeprecated {
		t.Errorf("expected DEPRECATED, got %s", meta.State)
	}

	err := engine.UpdateArtifactVersionState(ctx, "g", "a", 9, types.StateDisabled)
	if !errors.HasCode(err, errors.ErrVersionNotFound) {
		t.Errorf("expected version not-found, got %v", err)
	}
}
