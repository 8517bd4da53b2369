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

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/artifact-registry/registryd/internal/errors"
	"github.com/artifact-registry/registryd/internal/types"
)

// Request headers carrying artifact coordinates on create/update
const (
	headerArtifactID   = "X-Registry-ArtifactId"
	headerArtifactType = "X-Registry-ArtifactType"
	headerName         = "X-Registry-Name"
	headerDescription  = "X-Registry-Description"
	headerVersion      = "X-Registry-Version"
	headerGlobalID     = "X-Registry-GlobalId"
)

// ruleRequest is the JSON body of rule create/update calls
type ruleRequest struct {
	Type   string `json:"type"`
	Config string `json:"config"`
}

// stateRequest is the JSON body of state update calls
type stateRequest struct {
	State string `json:"state"`
}

// handleCreateArtifact stores the first version of a new artifact
func (s *Server) handleCreateArtifact(c *gin.Context) {
	content, ok := s.readContent(c)
	if !ok {
		return
	}
	artifactType, ok := s.artifactTypeFromHeader(c)
	if !ok {
		return
	}

	meta, err := s.engine.CreateArtifactWithMetadata(
		c.Request.Context(),
		c.Param("groupId"),
		c.GetHeader(headerArtifactID),
		artifactType,
		content,
		editableFromHeaders(c),
	)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleUpdateArtifact stores a new version of an existing artifact
func (s *Server) handleUpdateArtifact(c *gin.Context) {
	content, ok := s.readContent(c)
	if !ok {
		return
	}
	artifactType, ok := s.artifactTypeFromHeader(c)
	if !ok {
		return
	}

	meta, err := s.engine.UpdateArtifactWithMetadata(
		c.Request.Context(),
		c.Param("groupId"),
		c.Param("artifactId"),
		artifactType,
		content,
		editableFromHeaders(c),
	)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleDeleteArtifact removes an artifact and reports the removed versions
func (s *Server) handleDeleteArtifact(c *gin.Context) {
	versions, err := s.engine.DeleteArtifact(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// handleDeleteGroupArtifacts removes every artifact of a group
func (s *Server) handleDeleteGroupArtifacts(c *gin.Context) {
	if err := s.engine.DeleteArtifacts(c.Request.Context(), c.Param("groupId")); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetArtifact serves the latest content of an artifact
func (s *Server) handleGetArtifact(c *gin.Context) {
	stored, err := s.engine.GetArtifact(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	s.respondWithContent(c, stored)
}

// handleGetArtifactMetaData serves the metadata of the latest version
func (s *Server) handleGetArtifactMetaData(c *gin.Context) {
	meta, err := s.engine.GetArtifactMetaData(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleUpdateArtifactMetaData applies editable metadata to the latest version
func (s *Server) handleUpdateArtifactMetaData(c *gin.Context) {
	var metadata types.EditableArtifactMetaData
	if err := c.ShouldBindJSON(&metadata); err != nil {
		s.respondWithInvalidRequest(c, "invalid metadata payload", err)
		return
	}

	if err := s.engine.UpdateArtifactMetaData(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), &metadata); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetArtifactMetaDataByContent finds the version matching the posted content
func (s *Server) handleGetArtifactMetaDataByContent(c *gin.Context) {
	content, ok := s.readContent(c)
	if !ok {
		return
	}
	canonical := c.Query("canonical") == "true"

	meta, err := s.engine.GetArtifactVersionMetaDataByContent(
		c.Request.Context(),
		c.Param("groupId"),
		c.Param("artifactId"),
		content,
		canonical,
	)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleUpdateArtifactState transitions the latest version's lifecycle state
func (s *Server) handleUpdateArtifactState(c *gin.Context) {
	state, ok := s.stateFromBody(c)
	if !ok {
		return
	}

	if err := s.engine.UpdateArtifactState(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), state); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListArtifactIDs lists distinct artifact ids across groups
func (s *Server) handleListArtifactIDs(c *gin.Context) {
	limit := s.intQuery(c, "limit", 0)

	ids, err := s.engine.GetArtifactIDs(c.Request.Context(), limit)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// handleListVersions serves the paginated version listing of an artifact
func (s *Server) handleListVersions(c *gin.Context) {
	offset, limit := s.pagination(c)

	results, err := s.engine.SearchVersions(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), offset, limit)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// handleGetArtifactVersion serves the content of one specific version
func (s *Server) handleGetArtifactVersion(c *gin.Context) {
	version, ok := s.versionParam(c)
	if !ok {
		return
	}

	stored, err := s.engine.GetArtifactVersion(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), version)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	s.respondWithContent(c, stored)
}

// handleDeleteArtifactVersion removes one version of an artifact
func (s *Server) handleDeleteArtifactVersion(c *gin.Context) {
	version, ok := s.versionParam(c)
	if !ok {
		return
	}

	if err := s.engine.DeleteArtifactVersion(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), version); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetVersionMetaData serves the metadata of one specific version
func (s *Server) handleGetVersionMetaData(c *gin.Context) {
	version, ok := s.versionParam(c)
	if !ok {
		return
	}

	meta, err := s.engine.GetArtifactVersionMetaData(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), version)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleUpdateVersionMetaData applies editable metadata to one version
func (s *Server) handleUpdateVersionMetaData(c *gin.Context) {
	version, ok := s.versionParam(c)
	if !ok {
		return
	}

	var metadata types.EditableArtifactMetaData
	if err := c.ShouldBindJSON(&metadata); err != nil {
		s.respondWithInvalidRequest(c, "invalid metadata payload", err)
		return
	}

	if err := s.engine.UpdateArtifactVersionMetaData(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), version, &metadata); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleDeleteVersionMetaData removes the editable metadata of one version
func (s *Server) handleDeleteVersionMetaData(c *gin.Context) {
	version, ok := s.versionParam(c)
	if !ok {
		return
	}

	if err := s.engine.DeleteArtifactVersionMetaData(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), version); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleUpdateVersionState transitions one version's lifecycle state
func (s *Server) handleUpdateVersionState(c *gin.Context) {
	version, ok := s.versionParam(c)
	if !ok {
		return
	}
	state, ok := s.stateFromBody(c)
	if !ok {
		return
	}

	if err := s.engine.UpdateArtifactVersionState(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), version, state); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSearchArtifacts runs a filtered, ordered, paginated artifact search
func (s *Server) handleSearchArtifacts(c *gin.Context) {
	filters := make([]types.SearchFilter, 0, 4)
	filterParams := map[string]types.SearchFilterType{
		"name":        types.FilterName,
		"description": types.FilterDescription,
		"group":       types.FilterGroup,
		"labels":      types.FilterLabels,
		"properties":  types.FilterProperties,
		"everything":  types.FilterEverything,
	}
	for param, filterType := range filterParams {
		if value := c.Query(param); value != "" {
			filters = append(filters, types.SearchFilter{Type: filterType, Value: value})
		}
	}

	orderBy, err := types.ParseOrderBy(c.Query("orderby"))
	if err != nil {
		s.respondWithInvalidRequest(c, "invalid orderby", err)
		return
	}
	direction, err := types.ParseOrderDirection(c.Query("order"))
	if err != nil {
		s.respondWithInvalidRequest(c, "invalid order", err)
		return
	}
	offset, limit := s.pagination(c)

	results, err := s.engine.SearchArtifacts(c.Request.Context(), filters, orderBy, direction, offset, limit)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// handleGetByGlobalID serves version content addressed by global id
func (s *Server) handleGetByGlobalID(c *gin.Context) {
	globalID, ok := s.globalIDParam(c)
	if !ok {
		return
	}

	stored, err := s.engine.GetArtifactVersionByGlobalID(c.Request.Context(), globalID)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	s.respondWithContent(c, stored)
}

// handleGetMetaDataByGlobalID serves version metadata addressed by global id
func (s *Server) handleGetMetaDataByGlobalID(c *gin.Context) {
	globalID, ok := s.globalIDParam(c)
	if !ok {
		return
	}

	meta, err := s.engine.GetArtifactMetaDataByGlobalID(c.Request.Context(), globalID)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// Artifact rule handlers

func (s *Server) handleCreateArtifactRule(c *gin.Context) {
	rule, config, ok := s.ruleFromBody(c)
	if !ok {
		return
	}
	if err := s.engine.CreateArtifactRule(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), rule, config); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListArtifactRules(c *gin.Context) {
	rules, err := s.engine.GetArtifactRules(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) handleDeleteArtifactRules(c *gin.Context) {
	if err := s.engine.DeleteArtifactRules(c.Request.Context(), c.Param("groupId"), c.Param("artifactId")); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetArtifactRule(c *gin.Context) {
	rule, ok := s.ruleParam(c)
	if !ok {
		return
	}
	config, err := s.engine.GetArtifactRule(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), rule)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

func (s *Server) handleUpdateArtifactRule(c *gin.Context) {
	rule, ok := s.ruleParam(c)
	if !ok {
		return
	}
	config, ok := s.ruleConfigFromBody(c)
	if !ok {
		return
	}
	if err := s.engine.UpdateArtifactRule(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), rule, config); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteArtifactRule(c *gin.Context) {
	rule, ok := s.ruleParam(c)
	if !ok {
		return
	}
	if err := s.engine.DeleteArtifactRule(c.Request.Context(), c.Param("groupId"), c.Param("artifactId"), rule); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Global rule handlers

func (s *Server) handleCreateGlobalRule(c *gin.Context) {
	rule, config, ok := s.ruleFromBody(c)
	if !ok {
		return
	}
	if err := s.engine.CreateGlobalRule(c.Request.Context(), rule, config); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListGlobalRules(c *gin.Context) {
	rules, err := s.engine.GetGlobalRules(c.Request.Context())
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) handleDeleteGlobalRules(c *gin.Context) {
	if err := s.engine.DeleteGlobalRules(c.Request.Context()); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetGlobalRule(c *gin.Context) {
	rule, ok := s.ruleParam(c)
	if !ok {
		return
	}
	config, err := s.engine.GetGlobalRule(c.Request.Context(), rule)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

func (s *Server) handleUpdateGlobalRule(c *gin.Context) {
	rule, ok := s.ruleParam(c)
	if !ok {
		return
	}
	config, ok := s.ruleConfigFromBody(c)
	if !ok {
		return
	}
	if err := s.engine.UpdateGlobalRule(c.Request.Context(), rule, config); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteGlobalRule(c *gin.Context) {
	rule, ok := s.ruleParam(c)
	if !ok {
		return
	}
	if err := s.engine.DeleteGlobalRule(c.Request.Context(), rule); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Request parsing helpers

// readContent reads the raw request body; an empty body is rejected
func (s *Server) readContent(c *gin.Context) ([]byte, bool) {
	content, err := c.GetRawData()
	if err != nil {
		s.respondWithInvalidRequest(c, "failed to read request body", err)
		return nil, false
	}
	if len(content) == 0 {
		s.respondWithInvalidRequest(c, "request body is empty", nil)
		return nil, false
	}
	return content, true
}

// artifactTypeFromHeader parses the artifact type header, defaulting to JSON
func (s *Server) artifactTypeFromHeader(c *gin.Context) (types.ArtifactType, bool) {
	value := c.GetHeader(headerArtifactType)
	if value == "" {
		return types.TypeJSON, true
	}
	artifactType, err := types.ParseArtifactType(value)
	if err != nil {
		s.respondWithError(c, errors.Wrap(errors.ErrInvalidArtifactType, "invalid artifact type", err))
		return "", false
	}
	return artifactType, true
}

// editableFromHeaders builds editable metadata from the optional name and
// description headers; nil when neither is present.
func editableFromHeaders(c *gin.Context) *types.EditableArtifactMetaData {
	name := c.GetHeader(headerName)
	description := c.GetHeader(headerDescription)
	if name == "" && description == "" {
		return nil
	}

	metadata := &types.EditableArtifactMetaData{}
	if name != "" {
		metadata.Name = &name
	}
	if description != "" {
		metadata.Description = &description
	}
	return metadata
}

// stateFromBody parses the lifecycle state request body
func (s *Server) stateFromBody(c *gin.Context) (types.ArtifactState, bool) {
	var request stateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.respondWithInvalidRequest(c, "invalid state payload", err)
		return "", false
	}
	state, err := types.ParseArtifactState(request.State)
	if err != nil {
		s.respondWithError(c, errors.Wrap(errors.ErrInvalidArtifactState, "invalid artifact state", err))
		return "", false
	}
	return state, true
}

// ruleFromBody parses a rule creation body carrying type and configuration
func (s *Server) ruleFromBody(c *gin.Context) (types.RuleType, *types.RuleConfiguration, bool) {
	var request ruleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.respondWithInvalidRequest(c, "invalid rule payload", err)
		return "", nil, false
	}
	rule, err := types.ParseRuleType(request.Type)
	if err != nil {
		s.respondWithError(c, errors.Wrap(errors.ErrInvalidRuleType, "invalid rule type", err))
		return "", nil, false
	}
	return rule, &types.RuleConfiguration{Configuration: request.Config}, true
}

// ruleConfigFromBody parses a rule update body carrying only the configuration
func (s *Server) ruleConfigFromBody(c *gin.Context) (*types.RuleConfiguration, bool) {
	var request ruleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.respondWithInvalidRequest(c, "invalid rule payload", err)
		return nil, false
	}
	return &types.RuleConfiguration{Configuration: request.Config}, true
}

// ruleParam parses the rule type path parameter
func (s *Server) ruleParam(c *gin.Context) (types.RuleType, bool) {
	rule, err := types.ParseRuleType(c.Param("rule"))
	if err != nil {
		s.respondWithError(c, errors.Wrap(errors.ErrInvalidRuleType, "invalid rule type", err))
		return "", false
	}
	return rule, true
}

// versionParam parses the version path parameter
func (s *Server) versionParam(c *gin.Context) (int64, bool) {
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil || version < 1 {
		s.respondWithInvalidRequest(c, "invalid version number", err)
		return 0, false
	}
	return version, true
}

// globalIDParam parses the global id path parameter
func (s *Server) globalIDParam(c *gin.Context) (int64, bool) {
	globalID, err := strconv.ParseInt(c.Param("globalId"), 10, 64)
	if err != nil {
		s.respondWithInvalidRequest(c, "invalid global id", err)
		return 0, false
	}
	return globalID, true
}

// pagination reads offset/limit query params with configured defaults
func (s *Server) pagination(c *gin.Context) (offset, limit int) {
	offset = s.intQuery(c, "offset", 0)
	limit = s.intQuery(c, "limit", s.config.Limits.DefaultPageSize)
	return offset, limit
}

func (s *Server) intQuery(c *gin.Context, name string, defaultValue int) int {
	value := c.Query(name)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// respondWithContent writes stored version content, tagging the version and
// global id as response headers. JSON content is served as JSON; anything
// else as raw bytes.
func (s *Server) respondWithContent(c *gin.Context, stored *types.StoredArtifact) {
	c.Header(headerVersion, strconv.FormatInt(stored.Version, 10))
	c.Header(headerGlobalID, strconv.FormatInt(stored.GlobalID, 10))

	contentType := "application/octet-stream"
	if json.Valid(stored.Content) {
		contentType = "application/json"
	}
	c.Data(http.StatusOK, contentType, stored.Content)
}
