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

package openapi

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// document is the OpenAPI specification served to clients.
//
//go:embed swagger.yaml
var document []byte

// docsPage is a minimal Swagger UI shell pointed at our document.
const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
</head>
<body>
    <div id="swagger-ui"></div>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/api/swagger.yaml",
                dom_id: '#swagger-ui',
                presets: [
                    SwaggerUIBundle.presets.apis
                ],
                layout: "BaseLayout"
            });
        }
    </script>
</body>
</html>
`

// OpenAPI serves the API documentation.
type OpenAPI struct{}

// New parses and validates the embedded document, so a malformed
// specification fails service startup rather than surprising a client.
// NOTE: this is surprisingly slow, make sure you cache it and reuse it.
func New(ctx context.Context) (*OpenAPI, error) {
	spec, err := openapi3.NewLoader().LoadFromData(document)
	if err != nil {
		return nil, err
	}

	if err := spec.Validate(ctx); err != nil {
		return nil, err
	}

	return &OpenAPI{}, nil
}

// Document serves the raw OpenAPI document.
func (o *OpenAPI) Document(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/x-yaml")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(document); err != nil {
		log.FromContext(r.Context()).Error(err, "failed to write openapi document")
	}
}

// Docs serves the interactive documentation page.
func (o *OpenAPI) Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(docsPage)); err != nil {
		log.FromContext(r.Context()).Error(err, "failed to write docs page")
	}
}
