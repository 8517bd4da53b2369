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
	"fmt"
	"strings"
)

// ArtifactState is the lifecycle state of one artifact version
type ArtifactState string

const (
	StateEnabled    ArtifactState = "ENABLED"
	StateDeprecated ArtifactState = "DEPRECATED"
	StateDisabled   ArtifactState = "DISABLED"
	StateDeleted    ArtifactState = "DELETED"
)

// ActiveStates are the states visible to default reads. DISABLED and
// DELETED versions are skipped when resolving "latest".
var ActiveStates = []ArtifactState{StateEnabled, StateDeprecated}

// ParseArtifactState normalizes a string to an ArtifactState
func ParseArtifactState(value string) (ArtifactState, error) {
	switch ArtifactState(strings.ToUpper(value)) {
	case StateEnabled, StateDeprecated, StateDisabled, StateDeleted:
		return ArtifactState(strings.ToUpper(value)), nil
	default:
		return "", fmt.Errorf("unknown artifact state: %s", value)
	}
}

// IsActive reports whether the state belongs to the ACTIVE set
func (s ArtifactState) IsActive() bool {
	for _, a := range ActiveStates {
		if s == a {
			return true
		}
	}
	return false
}

// StateIn reports whether the state is in the given set. A nil set means
// "no filter" and matches everything.
func StateIn(state ArtifactState, states []ArtifactState) bool {
	if states == nil {
		return true
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// RecordState reads the lifecycle state out of a version record, defaulting
// to ENABLED for records written before states existed.
func RecordState(record VersionRecord) ArtifactState {
	value, ok := record[KeyState]
	if !ok || value == "" {
		return StateEnabled
	}
	state, err := ParseArtifactState(value)
	if err != nil {
		return StateEnabled
	}
	return state
}

// ApplyState performs a state transition through the supplied write
// function. The caller resolves the target coordinates first and passes a
// single parameterized write; the record itself is not mutated here.
func ApplyState(write func(ArtifactState), current VersionRecord, target ArtifactState) {
	if RecordState(current) != target {
		write(target)
	}
}
