package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

type requestBodyTooLargeError struct {
	Limit int64
}

func (e *requestBodyTooLargeError) Error() string {
	return fmt.Sprintf("request body too large (max %d bytes)", e.Limit)
}

// DecodeBody decodes the JSON request body into v, rejecting unknown fields.
func DecodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestBodyTooLargeError{Limit: maxErr.Limit}
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestBodyTooLargeError{Limit: maxErr.Limit}
		}
		return fmt.Errorf("invalid request body: must contain a single JSON value")
	}
	return nil
}

// ParseLimitQuery reads an optional positive "limit" query parameter.
// Zero means "use the endpoint default".
func ParseLimitQuery(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit: must be a positive integer")
	}
	return n, nil
}

func parseLimitOrWriteInvalid(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := ParseLimitQuery(r)
	if err != nil {
		writeInvalidArgument(w, err.Error())
		return 0, false
	}
	return limit, true
}

// requireIDPathParam parses the numeric {id} path parameter.
func requireIDPathParam(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	v := r.PathValue("id")
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		writeInvalidArgument(w, "id: must be a positive integer")
		return 0, false
	}
	return uint32(n), true
}
