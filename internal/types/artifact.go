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

// DefaultGroupID is the reserved group used when a request carries no group.
const DefaultGroupID = "default"

// ArtifactKey is the composite identity of an artifact. Two keys are equal
// iff both components match exactly (case-sensitive).
type ArtifactKey struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
}

// NewArtifactKey creates an ArtifactKey, substituting the default group
// sentinel when groupId is empty.
func NewArtifactKey(groupID, artifactID string) ArtifactKey {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	return ArtifactKey{GroupID: groupID, ArtifactID: artifactID}
}

// String returns a human-readable form of the key
func (k ArtifactKey) String() string {
	return k.GroupID + "/" + k.ArtifactID
}

// ArtifactType identifies the content type of an artifact
type ArtifactType string

const (
	TypeJSON     ArtifactType = "JSON"
	TypeAvro     ArtifactType = "AVRO"
	TypeProtobuf ArtifactType = "PROTOBUF"
	TypeOpenAPI  ArtifactType = "OPENAPI"
	TypeAsyncAPI ArtifactType = "ASYNCAPI"
	TypeGraphQL  ArtifactType = "GRAPHQL"
	TypeWSDL     ArtifactType = "WSDL"
	TypeXSD      ArtifactType = "XSD"
	TypeXML      ArtifactType = "XML"
	TypeKConnect ArtifactType = "KCONNECT"
)

// ParseArtifactType normalizes a string to an ArtifactType
func ParseArtifactType(value string) (ArtifactType, error) {
	switch ArtifactType(strings.ToUpper(value)) {
	case TypeJSON, TypeAvro, TypeProtobuf, TypeOpenAPI, TypeAsyncAPI,
		TypeGraphQL, TypeWSDL, TypeXSD, TypeXML, TypeKConnect:
		return ArtifactType(strings.ToUpper(value)), nil
	default:
		return "", fmt.Errorf("unknown artifact type: %s", value)
	}
}

// RuleType identifies a validation or compatibility rule
type RuleType string

const (
	RuleValidity      RuleType = "VALIDITY"
	RuleCompatibility RuleType = "COMPATIBILITY"
)

// ParseRuleType normalizes a string to a RuleType
func ParseRuleType(value string) (RuleType, error) {
	switch RuleType(strings.ToUpper(value)) {
	case RuleValidity, RuleCompatibility:
		return RuleType(strings.ToUpper(value)), nil
	default:
		return "", fmt.Errorf("unknown rule type: %s", value)
	}
}
