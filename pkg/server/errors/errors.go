/*
Copyright 2024 EscherCloud.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	// ErrRequest is raised for all handler errors.
	ErrRequest = errors.New("request error")
)

// Error is the JSON error envelope returned on every non-2xx response.
type Error struct {
	// Reason is the canonical HTTP status text, e.g. "Not Found".
	Reason string `json:"reason"`

	// Message is the handler supplied detail.
	Message string `json:"message"`

	// Traceback is only populated for errors nobody classified, they're
	// server bugs and the stack is the only clue.
	Traceback string `json:"traceback,omitempty"`
}

// HTTPError wraps ErrRequest with enough context to build a client response.
type HTTPError struct {
	// status is the HTTP status code.
	status int

	// message is the detail returned to the client.
	message string

	// err is set when the originator was an error.  It's logged, never
	// returned, server internals don't belong on the wire.
	err error

	// traceback is the formatted stack for unclassified server errors.
	traceback string

	// values are arbitrary key value pairs for logging.
	values []interface{}
}

// newHTTPError returns a new HTTP error.
func newHTTPError(status int, message string) *HTTPError {
	return &HTTPError{
		status:  status,
		message: message,
	}
}

// WithError augments the error with an error from a library.
func (e *HTTPError) WithError(err error) *HTTPError {
	e.err = err

	return e
}

// WithTraceback augments the error with a stack trace that will be returned
// to the client.
func (e *HTTPError) WithTraceback(traceback string) *HTTPError {
	e.traceback = traceback

	return e
}

// WithValues augments the error with a set of K/V pairs.
// Values should not use the "error" key as that's implicitly defined
// by WithError and could collide.
func (e *HTTPError) WithValues(values ...interface{}) *HTTPError {
	e.values = values

	return e
}

// Unwrap implements Go 1.13 errors.
func (e *HTTPError) Unwrap() error {
	return ErrRequest
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status code.
func (e *HTTPError) Status() int {
	return e.status
}

// Write returns the error code and envelope to the client.
func (e *HTTPError) Write(w http.ResponseWriter, r *http.Request) {
	// Log out any detail from the error that shouldn't be reported to
	// the client.  Do it before things can error and return.
	log := log.FromContext(r.Context())

	details := []interface{}{"status", e.status}

	if e.message != "" {
		details = append(details, "detail", e.message)
	}

	if e.err != nil {
		details = append(details, "error", e.err)
	}

	if e.values != nil {
		details = append(details, e.values...)
	}

	log.Info("error detail", details...)

	envelope := &Error{
		Reason:    http.StatusText(e.status),
		Message:   e.message,
		Traceback: e.traceback,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		log.Error(err, "failed to marshal error response")

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Add("Cache-Control", "no-cache")
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(e.status)

	if _, err := w.Write(body); err != nil {
		log.Error(err, "failed to write error response")
	}
}

// HTTPBadRequest indicates a malformed request the router or handler could
// make no sense of.
func HTTPBadRequest(message string) *HTTPError {
	return newHTTPError(http.StatusBadRequest, message)
}

// HTTPForbidden indicates the caller isn't allowed to do that.
func HTTPForbidden(message string) *HTTPError {
	return newHTTPError(http.StatusForbidden, message)
}

// HTTPNotFound indicates the resource doesn't exist.
func HTTPNotFound(message string) *HTTPError {
	return newHTTPError(http.StatusNotFound, message)
}

// HTTPMethodNotAllowed indicates the path exists but not for that verb.
func HTTPMethodNotAllowed() *HTTPError {
	return newHTTPError(http.StatusMethodNotAllowed, "the requested method was not allowed")
}

// HTTPConflict indicates the resource already exists.
func HTTPConflict(message string) *HTTPError {
	return newHTTPError(http.StatusConflict, message)
}

// HTTPUnprocessableEntity indicates a syntactically valid request whose
// content failed validation.
func HTTPUnprocessableEntity(message string) *HTTPError {
	return newHTTPError(http.StatusUnprocessableEntity, message)
}

// HTTPInternalServerError tells the client we are at fault, this should
// never be seen in production.  If so then our testing needs to improve.
func HTTPInternalServerError(message string) *HTTPError {
	return newHTTPError(http.StatusInternalServerError, message)
}

// IsHTTPNotFound tells whether the error renders as a 404.
func IsHTTPNotFound(err error) bool {
	httpError := toHTTPError(err)

	return httpError != nil && httpError.status == http.StatusNotFound
}

// toHTTPError is a handy unwrapper to get a HTTP error from a generic one.
func toHTTPError(err error) *HTTPError {
	var httpErr *HTTPError

	if !errors.As(err, &httpErr) {
		return nil
	}

	return httpErr
}

// HandleError is the top level error handler that should be called from all
// path handlers on error.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if httpError := toHTTPError(err); httpError != nil {
		httpError.Write(w, r)

		return
	}

	log.FromContext(r.Context()).Error(err, "unhandled error")

	HTTPInternalServerError("Unknown server error").WithError(err).Write(w, r)
}
