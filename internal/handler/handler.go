package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"grocer/internal/middleware"
	"grocer/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSON reads the request body into dest and runs struct validation.
func decodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return model.WrapDomainError(model.ErrCodeValidation, "Invalid request body", err)
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return model.WrapDomainError(model.ErrCodeValidation, "Validation failed", err)
	}
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fmt.Sprintf("%s %s", fe.Namespace(), validationMessage(fe)))
	}
	sort.Strings(fields)
	return model.WrapDomainError(model.ErrCodeValidation, "Validation failed", errors.New(strings.Join(fields, "; ")))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}

// writeJSON writes a JSON response with the given status code.
// The status line is already sent when encoding fails, so the error is only logged.
func writeJSON(w http.ResponseWriter, status int, data any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}

// writeError maps err to a status code and writes the standard error body.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	status, resp := errorResponse(err)
	resp.CorrelationID = middleware.RequestIDFromContext(r.Context())

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("request_id", resp.CorrelationID).
		Str("code", resp.Error).
		Int("status", status).
		Msg("handler error")

	writeJSON(w, status, resp, logger)
}

func errorResponse(err error) (int, model.ErrorResponse) {
	de, ok := model.AsDomainError(err)
	if !ok {
		return http.StatusInternalServerError, model.ErrorResponse{
			Error:   model.ErrCodeInternalError,
			Message: "Internal server error",
		}
	}

	resp := model.ErrorResponse{Error: de.Code, Message: de.Message}
	status := statusForCode(de.Code)
	if de.Err != nil && status < http.StatusInternalServerError {
		resp.Detail = de.Err.Error()
	}
	return status, resp
}

func statusForCode(code string) int {
	switch code {
	case model.ErrCodeValidation, model.ErrCodeInvalidState:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// requireActor returns the authenticated caller.
func requireActor(r *http.Request) (model.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return model.Actor{}, model.ErrUnauthenticated
	}
	return actor, nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return uuid.Nil, model.NewValidationError("ID is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.WrapDomainError(model.ErrCodeValidation, "Invalid ID format", err)
	}
	return id, nil
}

// actorAndID resolves the caller and the {id} parameter, writing the error
// response when either is missing.
func actorAndID(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (model.Actor, uuid.UUID, bool) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, err, logger)
		return model.Actor{}, uuid.Nil, false
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, logger)
		return model.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
