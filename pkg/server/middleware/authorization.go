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
	"net/http"
	"os"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	servercontext "github.com/eschercloudai/kernelmanager/pkg/server/context"
	"github.com/eschercloudai/kernelmanager/pkg/server/errors"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// anonymousUser is the identity bound when authentication is disabled.
	anonymousUser = "anonymous"

	// defaultUserHeader is where the authenticating proxy puts the caller
	// identity unless configured otherwise.
	defaultUserHeader = "X-Forwarded-User"
)

// truthy is the set of values accepted as "on" for boolean environment
// variables.
//
//nolint:gochecknoglobals
var truthy = []string{"true", "1", "yes", "y", "t"}

// IdentityOptions configure how the caller identity is established.  There
// is no authentication here: an ingress proxy has already done that and
// passes the result in a trusted header.
type IdentityOptions struct {
	// AllowUnauthenticatedAccess binds every caller to the anonymous
	// identity rather than requiring the header.
	AllowUnauthenticatedAccess bool

	// UserHeader is the request header carrying the caller identity.
	UserHeader string
}

// NewIdentityOptionsFromEnvironment reads the identity configuration from
// the environment, once, at startup.
func NewIdentityOptionsFromEnvironment() *IdentityOptions {
	options := &IdentityOptions{
		AllowUnauthenticatedAccess: slices.Contains(truthy, strings.ToLower(os.Getenv("ALLOW_UNAUTHENTICATED_ACCESS"))),
		UserHeader:                 defaultUserHeader,
	}

	if header := os.Getenv("USER_IN_HEADER"); header != "" {
		options.UserHeader = header
	}

	return options
}

// Identity establishes the caller identity before any handler body runs.
// Requests without one are rejected outright.  The identity exists for audit
// logging, nothing downstream makes decisions with it.
func Identity(options *IdentityOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := anonymousUser

			if !options.AllowUnauthenticatedAccess {
				user = r.Header.Get(options.UserHeader)
				if user == "" {
					errors.HTTPForbidden("user identity header missing").WithValues("header", options.UserHeader).Write(w, r)

					return
				}
			}

			ctx := servercontext.NewContextWithUser(r.Context(), user)

			trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", user))

			ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("user", user))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
