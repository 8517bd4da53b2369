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

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/types"
)

// normalizeRuleConfig maps an absent configuration to the empty string.
// Absence of a rule entry means "not configured"; an empty configuration
// string is a valid configured state.
func normalizeRuleConfig(config *types.RuleConfiguration) string {
	if config == nil {
		return ""
	}
	return config.Configuration
}

// CreateArtifactRule configures a rule on an artifact. Fails when a rule of
// that type is already configured.
func (e *Engine) CreateArtifactRule(ctx context.Context, groupID, artifactID string, rule types.RuleType, config *types.RuleConfiguration) error {
	key := types.NewArtifactKey(groupID, artifactID)
	if err := e.requireArtifact(ctx, key); err != nil {
		return err
	}

	_, existed, err := e.backend.ArtifactRules().PutIfAbsent(ctx, key, rule, normalizeRuleConfig(config))
	if err != nil {
		return errors.NewStorageError("failed to store rule", err)
	}
	if existed {
		return errors.NewRuleAlreadyExists(string(rule))
	}
	return nil
}

// GetArtifactRules lists the rule types configured on an artifact
func (e *Engine) GetArtifactRules(ctx context.Context, groupID, artifactID string) ([]types.RuleType, error) {
	key := types.NewArtifactKey(groupID, artifactID)
	if err := e.requireArtifact(ctx, key); err != nil {
		return nil, err
	}

	rules, err := e.backend.ArtifactRules().Keys(ctx, key)
	if err != nil {
		return nil, errors.NewStorageError("failed to list rules", err)
	}
	return rules, nil
}

// GetArtifactRule returns the configuration of one rule on an artifact
func (e *Engine) GetArtifactRule(ctx context.Context, groupID, artifactID string, rule types.RuleType) (*types.RuleConfiguration, error) {
	key := types.NewArtifactKey(groupID, artifactID)
	if err := e.requireArtifact(ctx, key); err != nil {
		return nil, err
	}

	value, ok, err := e.backend.ArtifactRules().Get(ctx, key, rule)
	if err != nil {
		return nil, errors.NewStorageError("failed to read rule", err)
	}
	if !ok {
		return nil, errors.NewRuleNotFound(string(rule))
	}
	return &types.RuleConfiguration{Configuration: value}, nil
}

// UpdateArtifactRule reconfigures an existing rule on an artifact. Fails
// when no rule of that type is configured.
func (e *Engine) UpdateArtifactRule(ctx context.Context, groupID, artifactID string, rule types.RuleType, config *types.RuleConfiguration) error {
	key := types.NewArtifactKey(groupID, artifactID)
	if err := e.requireArtifact(ctx, key); err != nil {
		return err
	}

	_, ok, err := e.backend.ArtifactRules().PutIfPresent(ctx, key, rule, normalizeRuleConfig(config))
	if err != nil {
		return errors.NewStorageError("failed to update rule", err)
	}
	if !ok {
		return errors.NewRuleNotFound(string(rule))
	}
	return nil
}

// DeleteArtifactRule removes one rule from an artifact
func (e *Engine) DeleteArtifactRule(ctx context.Context, groupID, artifactID string, rule types.RuleType) error {
	key := types.NewArtifactKey(groupID, artifactID)
	if err := e.requireArtifact(ctx, key); err != nil {
		return err
	}

	_, ok, err := e.backend.ArtifactRules().Remove(ctx, key, rule)
	if err != nil {
		return errors.NewStorageError("failed to remove rule", err)
	}
	if !ok {
		return errors.NewRuleNotFound(string(rule))
	}
	return nil
}

// DeleteArtifactRules removes every rule configured on an artifact
func (e *Engine) DeleteArtifactRules(ctx context.Context, groupID, artifactID string) error {
	key := types.NewArtifactKey(groupID, artifactID)
	if err := e.requireArtifact(ctx, key); err != nil {
		return err
	}

	if err := e.backend.ArtifactRules().RemoveAll(ctx, key); err != nil {
		return errors.NewStorageError("failed to remove rules", err)
	}
	return nil
}

// CreateGlobalRule configures a global rule. Global rules have no
// existence prerequisite beyond the rule itself.
func (e *Engine) CreateGlobalRule(ctx context.Context, rule types.RuleType, config *types.RuleConfiguration) error {
	_, existed, err := e.backend.GlobalRules().PutIfAbsent(ctx, rule, normalizeRuleConfig(config))
	if err != nil {
		return errors.NewStorageError("failed to store global rule", err)
	}
	if existed {
		return errors.NewRuleAlreadyExists(string(rule))
	}
	return nil
}

// GetGlobalRules lists the configured global rule types
func (e *Engine) GetGlobalRules(ctx context.Context) ([]types.RuleType, error) {
	rules, err := e.backend.GlobalRules().Keys(ctx)
	if err != nil {
		return nil, errors.NewStorageError("failed to list global rules", err)
	}
	return rules, nil
}

// GetGlobalRule returns the configuration of one global rule
func (e *Engine) GetGlobalRule(ctx context.Context, rule types.RuleType) (*types.RuleConfiguration, error) {
	value, ok, err := e.backend.GlobalRules().Get(ctx, rule)
	if err != nil {
		return nil, errors.NewStorageError("failed to read global rule", err)
	}
	if !ok {
		return nil, errors.NewRuleNotFound(string(rule))
	}
	return &types.RuleConfiguration{Configuration: value}, nil
}

// UpdateGlobalRule reconfigures an existing global rule
func (e *Engine) UpdateGlobalRule(ctx context.Context, rule types.RuleType, config *types.RuleConfiguration) error {
	exists, err := e.backend.GlobalRules().ContainsKey(ctx, rule)
	if err != nil {
		return errors.NewStorageError("failed to read global rule", err)
	}
	if !exists {
		return errors.NewRuleNotFound(string(rule))
	}
	if err := e.backend.GlobalRules().Put(ctx, rule, normalizeRuleConfig(config)); err != nil {
		return errors.NewStorageError("failed to update global rule", err)
	}
	return nil
}

// DeleteGlobalRule removes one global rule
func (e *Engine) DeleteGlobalRule(ctx context.Context, rule types.RuleType) error {
	_, ok, err := e.backend.GlobalRules().Remove(ctx, rule)
	if err != nil {
		return errors.NewStorageError("failed to remove global rule", err)
	}
	if !ok {
		return errors.NewRuleNotFound(string(rule))
	}
	return nil
}

// DeleteGlobalRules removes every global rule
func (e *Engine) DeleteGlobalRules(ctx context.Context) error {
	if err := e.backend.GlobalRules().Clear(ctx); err != nil {
		return errors.NewStorageError("failed to clear global rules", err)
	}
	return nil
}

// requireArtifact fails with not-found when the artifact has no versions
func (e *Engine) requireArtifact(ctx context.Context, key types.ArtifactKey) error {
	index, err := e.backend.Storage().Get(ctx, key)
	if err != nil {
		return errors.NewStorageError("failed to read version index", err)
	}
	if len(index) == 0 {
		return errors.NewArtifactNotFound(key.GroupID, key.ArtifactID)
	}
	return nil
}
