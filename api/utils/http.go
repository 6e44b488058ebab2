// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package utils carries the small HTTP plumbing shared by the API handlers:
// error-returning handlers and JSON response helpers.
package utils

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONContentType is the content type of every API response.
const JSONContentType = "application/json; charset=utf-8"

// M is shorthand for an ad-hoc JSON object.
type M map[string]any

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

// HTTPError attaches an http status to an error. WrapHandlerFunc responds
// with that status instead of the default 500.
func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

// BadRequest marks the error as a 400 response.
func BadRequest(cause error) error {
	return HTTPError(cause, http.StatusBadRequest)
}

// Forbidden marks the error as a 403 response.
func Forbidden(cause error) error {
	return HTTPError(cause, http.StatusForbidden)
}

// NotFound marks the error as a 404 response.
func NotFound(cause error) error {
	return HTTPError(cause, http.StatusNotFound)
}

// HandlerFunc is http.HandlerFunc with an error return, so handlers report
// failures instead of writing error responses themselves.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// WrapHandlerFunc adapts a HandlerFunc for the router. Errors carrying a
// status respond with it; anything else responds 500.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		var he *httpError
		if errors.As(err, &he) {
			http.Error(w, he.cause.Error(), he.status)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteJSON encodes obj as the JSON response body.
func WriteJSON(w http.ResponseWriter, obj any) error {
	w.Header().Set("Content-Type", JSONContentType)
	return json.NewEncoder(w).Encode(obj)
}
