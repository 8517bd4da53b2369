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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/artifact-registry/registryd/internal/errors"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error *errors.RegistryError `json:"error"`
}

// respondWithError maps any error to its HTTP status and error envelope.
// Errors that are not RegistryErrors are reported as internal.
func (s *Server) respondWithError(c *gin.Context, err error) {
	registryErr, ok := errors.AsRegistryError(err)
	if !ok {
		registryErr = errors.Wrap(errors.ErrInternalError, "internal error", err)
	}
	registryErr.RequestID = c.GetString("request_id")

	statusCode := registryErr.GetHTTPStatus()

	logger := s.logger.WithContext(c.Request.Context()).WithFields(map[string]interface{}{
		"status_code": statusCode,
		"error_code":  registryErr.Code,
		"method":      c.Request.Method,
		"path":        c.Request.URL.Path,
		"remote_addr": c.ClientIP(),
	})

	if statusCode >= 500 {
		logger.Error(registryErr.Message, registryErr.Cause)
	} else {
		logger.Warn(registryErr.Message)
	}

	c.JSON(statusCode, ErrorResponse{Error: registryErr})
}

// respondWithInvalidRequest reports a malformed request
func (s *Server) respondWithInvalidRequest(c *gin.Context, message string, cause error) {
	s.respondWithError(c, errors.Wrap(errors.ErrInvalidRequestFormat, message, cause))
}

// withRequestLogging wraps a handler with request logging
func (s *Server) withRequestLogging(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		handler(c)

		s.logger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			c.Request.UserAgent(),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
