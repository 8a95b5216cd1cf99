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

package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/cors"
)

// CORS emits the configured CORS headers on every response and answers
// preflight requests.  Plain OPTIONS requests, ones without an Origin, are
// answered with an empty 200 rather than routed, every path supports the
// method that way.
func CORS(allowedOrigins []string) func(next http.Handler) http.Handler {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return func(next http.Handler) http.Handler {
		plainOptions := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)

				return
			}

			next.ServeHTTP(w, r)
		})

		return corsHandler(plainOptions)
	}
}

// cspStripper removes the Content-Security-Policy header however it got
// there.  This is a pure JSON API, there are no frontend media types for a
// policy to protect.
type cspStripper struct {
	next http.ResponseWriter

	// wroteHeader records the status having been committed, the header
	// can't be stripped after that.
	wroteHeader bool
}

// Check the correct interface is implmented.
var _ http.ResponseWriter = &cspStripper{}

func (w *cspStripper) Header() http.Header {
	return w.next.Header()
}

func (w *cspStripper) Write(body []byte) (int, error) {
	// A body write without an explicit status commits an implicit 200,
	// route it through WriteHeader so the strip still happens.
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	return w.next.Write(body)
}

// Hijack passes control of the connection through, websocket upgrades need
// this from every writer in the middleware chain.
func (w *cspStripper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.next.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer is not hijackable")
	}

	return hijacker.Hijack()
}

func (w *cspStripper) WriteHeader(statusCode int) {
	w.wroteHeader = true

	w.next.Header().Del("Content-Security-Policy")
	w.next.WriteHeader(statusCode)
}

// NoCSP clears any Content-Security-Policy before the response goes out.
func NoCSP() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&cspStripper{next: w}, r)
		})
	}
}
