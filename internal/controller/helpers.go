package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrItemNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrBlockedEntryNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrDuplicateItem, http.StatusConflict, "duplicate_item"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrInvalidMessageType, http.StatusBadRequest, "invalid_message_type"},
	{domainErrors.ErrEmptyQuery, http.StatusBadRequest, "empty_query"},
	{domainErrors.ErrMappingNotFound, http.StatusUnprocessableEntity, "mapping_not_found"},
	{domainErrors.ErrSourceUnavailable, http.StatusBadGateway, "source_unavailable"},
	{domainErrors.ErrTransportUnconfigured, http.StatusServiceUnavailable, "transport_unconfigured"},
	{domainErrors.ErrTransportUnavailable, http.StatusServiceUnavailable, "transport_unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
