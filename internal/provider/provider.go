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

// Package provider supplies per-artifact-type capabilities: structural
// metadata extraction from content and content canonicalization for
// semantic comparison.
package provider

import (
	"encoding/json"

	"github.com/artifact-registry/registryd/internal/types"
)

// ExtractedMetaData is structural metadata pulled out of artifact content
type ExtractedMetaData struct {
	Name        string
	Description string
}

// ContentExtractor extracts structural metadata from content. A nil result
// means nothing was extracted.
type ContentExtractor interface {
	Extract(content []byte) *ExtractedMetaData
}

// ContentCanonicalizer normalizes content so two payloads can be compared
// for semantic equality.
type ContentCanonicalizer interface {
	Canonicalize(content []byte) ([]byte, error)
}

// Provider bundles the capabilities for one artifact type
type Provider interface {
	Extractor() ContentExtractor
	Canonicalizer() ContentCanonicalizer
}

// Factory resolves the provider for an artifact type
type Factory interface {
	ProviderFor(artifactType types.ArtifactType) Provider
}

// NewDefaultFactory returns the built-in provider set: a JSON-aware
// provider for the JSON document family, a pass-through provider for
// everything else.
func NewDefaultFactory() Factory {
	jsonProvider := &jsonFamilyProvider{}
	return &defaultFactory{
		providers: map[types.ArtifactType]Provider{
			types.TypeJSON:     jsonProvider,
			types.TypeOpenAPI:  jsonProvider,
			types.TypeAsyncAPI: jsonProvider,
			types.TypeKConnect: jsonProvider,
		},
		fallback: &noopProvider{},
	}
}

type defaultFactory struct {
	providers map[types.ArtifactType]Provider
	fallback  Provider
}

func (f *defaultFactory) ProviderFor(artifactType types.ArtifactType) Provider {
	if provider, exists := f.providers[artifactType]; exists {
		return provider
	}
	return f.fallback
}

// jsonFamilyProvider handles JSON Schema, OpenAPI and AsyncAPI documents
type jsonFamilyProvider struct{}

func (p *jsonFamilyProvider) Extractor() ContentExtractor         { return jsonExtractor{} }
func (p *jsonFamilyProvider) Canonicalizer() ContentCanonicalizer { return jsonCanonicalizer{} }

type jsonExtractor struct{}

// Extract reads title/description either from the document root (JSON
// Schema) or from the info object (OpenAPI, AsyncAPI).
func (jsonExtractor) Extract(content []byte) *ExtractedMetaData {
	var document map[string]interface{}
	if err := json.Unmarshal(content, &document); err != nil {
		return nil
	}

	name := stringField(document, "title")
	description := stringField(document, "description")

	if info, ok := document["info"].(map[string]interface{}); ok {
		if name == "" {
			name = stringField(info, "title")
		}
		if description == "" {
			description = stringField(info, "description")
		}
	}

	if name == "" && description == "" {
		return nil
	}
	return &ExtractedMetaData{Name: name, Description: description}
}

func stringField(document map[string]interface{}, field string) string {
	if value, ok := document[field].(string); ok {
		return value
	}
	return ""
}

type jsonCanonicalizer struct{}

// Canonicalize re-marshals the document; Go's JSON encoder writes object
// keys in sorted order, which normalizes key ordering and whitespace.
func (jsonCanonicalizer) Canonicalize(content []byte) ([]byte, error) {
	var document interface{}
	if err := json.Unmarshal(content, &document); err != nil {
		return nil, err
	}
	return json.Marshal(document)
}

// noopProvider treats content as opaque bytes
type noopProvider struct{}

func (p *noopProvider) Extractor() ContentExtractor         { return noopExtractor{} }
func (p *noopProvider) Canonicalizer() ContentCanonicalizer { return noopCanonicalizer{} }

type noopExtractor struct{}

func (noopExtractor) Extract(content []byte) *ExtractedMetaData { return nil }

type noopCanonicalizer struct{}

func (noopCanonicalizer) Canonicalize(content []byte) ([]byte, error) { return content, nil }
