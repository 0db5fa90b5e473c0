package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"soundscript/internal/events"

	"github.com/sirupsen/logrus"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 64 * 1024

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondJSON writes v as JSON with the current status.
func (ms *MusicServer) respondJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Warn("Failed to write JSON response")
	}
}

// respondWithValidationError sends a structured validation error response
func (ms *MusicServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errs,
	}).Warn("Validation failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	ms.respondJSON(w, ValidationResult{
		Valid:  false,
		Errors: errs,
	})
}

// respondWithError sends a structured error response
func (ms *MusicServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	ms.respondJSON(w, map[string]any{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) *ValidationError {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{
			Field:   "body",
			Message: "Request body must be valid JSON",
			Code:    "INVALID_JSON",
		}
	}
	return nil
}

// validateSelection checks a select-track intent before it reaches the player.
func validateSelection(sel events.Selection) *ValidationError {
	if sel.Type != events.SelectSong && sel.Type != events.SelectAlbum {
		return &ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("Selection type must be %q or %q", events.SelectSong, events.SelectAlbum),
			Code:    "INVALID_SELECTION_TYPE",
		}
	}
	if sel.Index < 0 {
		return &ValidationError{
			Field:   "index",
			Message: "Index must not be negative",
			Code:    "INVALID_INDEX",
		}
	}
	if len(sel.QueueID) > 64 || strings.ContainsAny(sel.QueueID, "\x00\r\n") {
		return &ValidationError{
			Field:   "queueId",
			Message: "Queue id is invalid",
			Code:    "INVALID_QUEUE_ID",
		}
	}
	return nil
}

// validateUnit checks that a number is finite and within [0, 1].
func validateUnit(field string, v *float64) *ValidationError {
	if v == nil {
		return &ValidationError{
			Field:   field,
			Message: "Value is required",
			Code:    "MISSING_" + strings.ToUpper(field),
		}
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 || *v > 1 {
		return &ValidationError{
			Field:   field,
			Message: "Value must be between 0 and 1",
			Code:    "INVALID_" + strings.ToUpper(field),
		}
	}
	return nil
}

// validateFilePath ensures file path is within the library directory
func (ms *MusicServer) validateFilePath(filePath string) *ValidationError {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return &ValidationError{
			Field:   "file_path",
			Message: "Invalid file path",
			Code:    "INVALID_FILE_PATH",
		}
	}

	absLibrary, err := filepath.Abs(ms.config.Library.Path)
	if err != nil {
		return &ValidationError{
			Field:   "file_path",
			Message: "Server configuration error",
			Code:    "CONFIG_ERROR",
		}
	}

	relPath, err := filepath.Rel(absLibrary, absPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return &ValidationError{
			Field:   "file_path",
			Message: "File path outside allowed directory",
			Code:    "PATH_TRAVERSAL_DENIED",
		}
	}

	return nil
}
