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

package handler

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"
	"github.com/eschercloudai/kernelmanager/pkg/server/channels"
	"github.com/eschercloudai/kernelmanager/pkg/server/errors"
	"github.com/eschercloudai/kernelmanager/pkg/server/handler/openapi"
	"github.com/eschercloudai/kernelmanager/pkg/server/util"
)

// kernelIDPattern constrains the kernel ID path parameter to the UUID-ish
// shape kernel IDs have.  Anything else falls through to the JSON 404.
const kernelIDPattern = `\w+-\w+-\w+-\w+-\w+`

// Handler binds the REST surface to the kernel manager.
type Handler struct {
	// manager orchestrates kernel lifecycles.
	manager *kernel.Manager

	// connector establishes upstream channel connections for the
	// websocket bridge.
	connector channels.Connector

	// openapi serves the API documentation.
	openapi *openapi.OpenAPI

	// options are configurable handler tunables.
	options *Options
}

// New returns a new handler, validating the embedded API documentation as a
// side effect.
func New(ctx context.Context, manager *kernel.Manager, connector channels.Connector, options *Options) (*Handler, error) {
	doc, err := openapi.New(ctx)
	if err != nil {
		return nil, err
	}

	return &Handler{
		manager:   manager,
		connector: connector,
		openapi:   doc,
		options:   options,
	}, nil
}

// AddRoutes binds the API onto the router.  The identity middleware guards
// the kernels subtree only, health, metrics and documentation stay
// anonymous so probes and people can reach them.
func (h *Handler) AddRoutes(router chi.Router, identity func(next http.Handler) http.Handler) {
	router.Get("/health", h.Health)
	router.Get("/api/kernelspecs", h.KernelSpecs)
	router.Get("/api/swagger.yaml", h.openapi.Document)
	router.Get("/api/docs", h.openapi.Docs)

	router.Group(func(router chi.Router) {
		router.Use(identity)

		router.Get("/api/kernels", h.ListKernels)
		router.Post("/api/kernels", h.CreateKernel)
		router.Delete("/api/kernels", h.DeleteKernels)
		router.Get("/api/kernels/{kernelID:"+kernelIDPattern+"}", h.GetKernel)
		router.Delete("/api/kernels/{kernelID:"+kernelIDPattern+"}", h.DeleteKernel)
		router.Get("/api/kernels/{kernelID:"+kernelIDPattern+"}/channels", h.KernelChannels)
	})
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	//nolint:errcheck
	w.Write([]byte("OK"))
}

// KernelSpecs lists the kernel specifications this service can launch.
func (h *Handler) KernelSpecs(w http.ResponseWriter, r *http.Request) {
	util.WriteJSONResponse(w, r, http.StatusOK, kernel.SpecNames())
}

// KernelResponse is the Jupyter compatible kernel representation.
type KernelResponse struct {
	// ID is the kernel ID.
	ID string `json:"id"`

	// Name is the kernel resource name.
	Name string `json:"name"`

	// LastActivity is the last observed activity, ISO-8601 UTC.
	LastActivity string `json:"last_activity"`

	// ExecutionState is idle once the kernel is ready, starting before.
	ExecutionState string `json:"execution_state"`

	// Connections is the attached client count.  Connection tracking
	// belongs to the channel bridge, this is always zero.
	Connections int `json:"connections"`
}

// newKernelResponse converts the kernel view to the wire representation.
func newKernelResponse(k *kernel.Kernel) *KernelResponse {
	state := "starting"

	if k.Ready {
		state = "idle"
	}

	return &KernelResponse{
		ID:             k.KernelID,
		Name:           k.Name,
		LastActivity:   k.LastActivityTime,
		ExecutionState: state,
		Connections:    k.Connections,
	}
}

// CreateKernelRequest is the Jupyter kernel creation request.
type CreateKernelRequest struct {
	// Name is the kernel specification name.
	Name string `json:"name"`

	// Env are kernel environment variables.  Only KERNEL_ prefixed
	// entries are honoured, anything else the caller sends is discarded.
	Env map[string]any `json:"env"`
}

// createPayload filters and binds the request onto a kernel payload.
func (h *Handler) createPayload(request *CreateKernelRequest) (*kernel.Payload, error) {
	env := map[string]any{}

	for key, value := range request.Env {
		if strings.HasPrefix(key, "KERNEL_") {
			env[key] = value
		}
	}

	if request.Name != "" {
		env[kernel.EnvKernelSpecName] = request.Name
	}

	if h.options.Namespace != "" {
		if _, ok := env[kernel.EnvKernelNamespace]; !ok {
			env[kernel.EnvKernelNamespace] = h.options.Namespace
		}
	}

	if h.options.Image != "" {
		if _, ok := env[kernel.EnvKernelImage]; !ok {
			env[kernel.EnvKernelImage] = h.options.Image
		}
	}

	return kernel.PayloadFromEnv(env)
}

// CreateKernel creates a kernel and waits for it to become ready.
func (h *Handler) CreateKernel(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errors.HTTPInternalServerError("unable to read request body").WithError(err).Write(w, r)

		return
	}

	request := &CreateKernelRequest{}

	if err := json.Unmarshal(body, request); err != nil {
		errors.HTTPUnprocessableEntity(fmt.Sprintf("Invalid request json body: %s", err)).Write(w, r)

		return
	}

	payload, err := h.createPayload(request)
	if err != nil {
		errors.HTTPUnprocessableEntity(fmt.Sprintf("Invalid request json body: %s", err)).Write(w, r)

		return
	}

	result, err := h.manager.Start(r.Context(), payload, true, h.options.WaitTimeout)
	if err != nil {
		switch {
		case goerrors.Is(err, kernel.ErrKernelExists):
			errors.HTTPConflict(fmt.Sprintf("Kernel already exists: %s", err)).Write(w, r)
		case goerrors.Is(err, kernel.ErrKernelQuotaExceeded):
			errors.HTTPForbidden(err.Error()).Write(w, r)
		case goerrors.Is(err, kernel.ErrKernelForbidden), goerrors.Is(err, kernel.ErrKernelCreation):
			errors.HTTPInternalServerError(fmt.Sprintf("Kernel creation error: %s", err)).Write(w, r)
		case goerrors.Is(err, kernel.ErrKernelWaitReadyTimeout):
			errors.HTTPInternalServerError(fmt.Sprintf("Kernel wait ready timeout error, please list the kernel a few seconds later: %s", err)).Write(w, r)
		case goerrors.Is(err, kernel.ErrKernelRetrieve), goerrors.Is(err, kernel.ErrKernelNotFound):
			errors.HTTPInternalServerError(fmt.Sprintf("Kernel retrieve error then create success: %s", err)).Write(w, r)
		default:
			errors.HandleError(w, r, err)
		}

		return
	}

	util.WriteJSONResponse(w, r, http.StatusOK, newKernelResponse(result))
}

// ListKernels lists all running kernels.
func (h *Handler) ListKernels(w http.ResponseWriter, r *http.Request) {
	kernels, err := h.manager.List(r.Context(), "")
	if err != nil {
		errors.HTTPInternalServerError(fmt.Sprintf("Kernel list error: %s", err)).WithError(err).Write(w, r)

		return
	}

	response := make([]*KernelResponse, 0, len(kernels))

	for _, k := range kernels {
		response = append(response, newKernelResponse(k))
	}

	util.WriteJSONResponse(w, r, http.StatusOK, response)
}

// GetKernel returns a kernel by ID.  A kernel that exists but isn't ready
// yet reports as not found, clients poll until it appears.
func (h *Handler) GetKernel(w http.ResponseWriter, r *http.Request) {
	kernelID := chi.URLParam(r, "kernelID")

	result, err := h.manager.Get(r.Context(), kernelID, "")
	if err != nil {
		if goerrors.Is(err, kernel.ErrKernelNotFound) {
			errors.HTTPNotFound(fmt.Sprintf("Kernel not found: %s", err)).Write(w, r)

			return
		}

		errors.HTTPInternalServerError(fmt.Sprintf("Kernel retrieve error: %s", err)).WithError(err).Write(w, r)

		return
	}

	if result == nil {
		errors.HTTPNotFound(fmt.Sprintf("Kernel not found: %s", kernelID)).Write(w, r)

		return
	}

	util.WriteJSONResponse(w, r, http.StatusOK, newKernelResponse(result))
}

// DeleteKernel removes a kernel by ID.  Removal is idempotent, deleting a
// kernel that's already gone is a success.
func (h *Handler) DeleteKernel(w http.ResponseWriter, r *http.Request) {
	kernelID := chi.URLParam(r, "kernelID")

	if err := h.manager.Remove(r.Context(), kernelID, ""); err != nil {
		errors.HandleError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteKernelsRequest is the batch deletion request.
type DeleteKernelsRequest struct {
	// KernelIDs are the kernels to remove.
	KernelIDs []string `json:"kernel_ids"`
}

// DeleteKernels removes a batch of kernels.  Deletions run concurrently and
// individual failures don't cancel their siblings.
func (h *Handler) DeleteKernels(w http.ResponseWriter, r *http.Request) {
	request := &DeleteKernelsRequest{}

	if err := util.ReadJSONBody(r, request); err != nil {
		errors.HandleError(w, r, err)

		return
	}

	if request.KernelIDs == nil {
		errors.HTTPBadRequest("Invalid request json body: kernel_ids missing").Write(w, r)

		return
	}

	group := &errgroup.Group{}

	for _, kernelID := range request.KernelIDs {
		kernelID := kernelID

		group.Go(func() error {
			return h.manager.Remove(r.Context(), kernelID, "")
		})
	}

	if err := group.Wait(); err != nil {
		errors.HandleError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusOK)
}

// KernelChannels upgrades the request to a websocket bridged onto the
// kernel's channels.
func (h *Handler) KernelChannels(w http.ResponseWriter, r *http.Request) {
	channels.Serve(w, r, h.manager, h.connector, chi.URLParam(r, "kernelID"))
}
