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

package context

import (
	"context"
)

// contextKey defines a new context key type unique to this package.
type contextKey string

const (
	// userKey is the key used to store the caller identity.
	userKey contextKey = "user"
)

// NewContextWithUser binds the caller identity to the context.
func NewContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the caller identity from the context.  The second
// return is false when no identity middleware has run, e.g. the anonymous
// endpoints.
func UserFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(userKey)
	if value == nil {
		return "", false
	}

	user, ok := value.(string)

	return user, ok
}
