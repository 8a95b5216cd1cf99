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
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/eschercloudai/kernelmanager/pkg/server/errors"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Recovery converts handler panics into a JSON 500 carrying the stack.  A
// panic is by definition unclassified, so this is the one place a traceback
// goes over the wire.
func Recovery() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if cause := recover(); cause != nil {
					stack := string(debug.Stack())

					log.FromContext(r.Context()).Info("handler panic", "cause", cause, "stack", stack)

					errors.HTTPInternalServerError(fmt.Sprint("Unknown server error: ", cause)).WithTraceback(stack).Write(w, r)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
