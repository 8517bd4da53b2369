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

import "testing"

func TestParseArtifactState(t *testing.T) {
	state, err := ParseArtifactState("deprecated")
	if err != nil {
		t.Fatalf("ParseArtifactState failed: %v", err)
	}
	if state != StateDeprecated {
		t.Errorf("expected DEPRECATED, got %s", state)
	}

	if _, err := ParseArtifactState("bogus"); err == nil {
		t.Errorf("expected error for unknown state")
	}
}

func TestArtifactState_IsActive(t *testing.T) {
	if !StateEnabled.IsActive() || !StateDeprecated.IsActive() {
		t.Errorf("ENABLED and DEPRECATED must be active")
	}
	if StateDisabled.IsActive() || StateDeleted.IsActive() {
		t.Errorf("DISABLED and DELETED must not be active")
	}
}

func TestStateIn(t *testing.T) {
	if !StateIn(StateDisabled, nil) {
		t.Errorf("nil set must match everything")
	}
	if !StateIn(StateEnabled, ActiveStates) {
		t.Errorf("ENABLED must be in the active set")
	}
	if StateIn(StateDisabled, ActiveStates) {
		t.Errorf("DISABLED must not be in the active set")
	}
}

func TestRecordState_Defaults(t *testing.T) {
	if got := RecordState(VersionRecord{}); got != StateEnabled {
		t.Errorf("absent state must default to ENABLED, got %s", got)
	}
	if got := RecordState(VersionRecord{KeyState: "garbage"}); got != StateEnabled {
		t.Errorf("unparseable state must default to ENABLED, got %s", got)
	}
	if got := RecordState(VersionRecord{KeyState: "DISABLED"}); got != StateDisabled {
		t.Errorf("expected DISABLED, got %s", got)
	}
}

func TestApplyState(t *testing.T) {
	var written []ArtifactState
	write := func(s ArtifactState) { written = append(written, s) }

	record := VersionRecord{KeyState: string(StateEnabled)}

	// Transition to a different state performs exactly one write
	ApplyState(write, record, StateDisabled)
	if len(written) != 1 || written[0] != StateDisabled {
		t.Errorf("expected one DISABLED write, got %v", written)
	}

	// Idempotent transition performs no write
	written = nil
	ApplyState(write, record, StateEnabled)
	if len(written) != 0 {
		t.Errorf("expected no write for idempotent transition, got %v", written)
	}
}

func TestNewArtifactKey_DefaultGroup(t *testing.T) {
	key := NewArtifactKey("", "a")
	if key.GroupID != DefaultGroupID {
		t.Errorf("expected default group, got %q", key.GroupID)
	}
	if key.String() != "default/a" {
		t.Errorf("unexpected String: %s", key.String())
	}
}

func TestParseArtifactType(t *testing.T) {
	at, err := ParseArtifactType("openapi")
	if err != nil {
		t.Fatalf("ParseArtifactType failed: %v", err)
	}
	if at != TypeOpenAPI {
		t.Errorf("expected OPENAPI, got %s", at)
	}
	if _, err := ParseArtifactType("nope"); err == nil {
		t.Errorf("expected error for unknown type")
	}
}

func TestParseRuleType(t *testing.T) {
	rt, err := ParseRuleType("validity")
	if err != nil {
		t.Fatalf("ParseRuleType failed: %v", err)
	}
	if rt != RuleValidity {
		t.Errorf("expected VALIDITY, got %s", rt)
	}
	if _, err := ParseRuleType("nope"); err == nil {
		t.Errorf("expected error for unknown rule type")
	}
}

func TestParseOrderBy(t *testing.T) {
	if ob, err := ParseOrderBy(""); err != nil || ob != OrderByName {
		t.Errorf("empty order key must default to name, got %s err=%v", ob, err)
	}
	if ob, err := ParseOrderBy("createdOn"); err != nil || ob != OrderByCreatedOn {
		t.Errorf("expected createdOn, got %s err=%v", ob, err)
	}
	if _, err := ParseOrderBy("bogus"); err == nil {
		t.Errorf("expected error for unknown order key")
	}
}

func TestParseOrderDirection(t *testing.T) {
	if od, err := ParseOrderDirection(""); err != nil || od != OrderAsc {
		t.Errorf("empty direction must default to asc, got %s err=%v", od, err)
	}
	if od, err := ParseOrderDirection("DESC"); err != nil || od != OrderDesc {
		t.Errorf("expected desc, got %s err=%v", od, err)
	}
	if _, err := ParseOrderDirection("sideways"); err == nil {
		t.Errorf("expected error for unknown direction")
	}
}
