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

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	jupyterv1 "github.com/eschercloudai/kernelmanager/pkg/apis/jupyter/v1"
	"github.com/eschercloudai/kernelmanager/pkg/kernel"
	"github.com/eschercloudai/kernelmanager/pkg/server"
	"github.com/eschercloudai/kernelmanager/pkg/server/middleware"
	"github.com/eschercloudai/kernelmanager/pkg/testutil/assert"
	clientutil "github.com/eschercloudai/kernelmanager/pkg/util/client"

	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

const (
	// testUser is the identity the authenticating proxy would inject.
	testUser = "eve@example.com"

	// kernelID is a fixed identity for tests that need a predictable one.
	kernelID = "8e6b1ff1-2e9c-4ba9-9a26-e1866e2a9b34"
)

var (
	// debug turns on test debugging.
	//nolint:gochecknoglobals
	debug bool
)

// TestMain is the entry point to the tests.  The server under test binds
// dynamic ports so tests could in principle parallelize, but the shared
// metrics registry says otherwise.
func TestMain(m *testing.M) {
	flag.BoolVar(&debug, "debug", false, "Turn on test debugging output")
	flag.Parse()

	os.Exit(m.Run())
}

// TestContext provides a common framework for test execution.
type TestContext struct {
	// endpoint records the TCP address of the server.
	endpoint net.Addr

	// server is the server instance under test.
	server *http.Server

	// kubernetesClient allows fake resources to be inspected or mutated
	// to trigger various testing scenarios.
	kubernetesClient client.WithWatch
}

// TestContextOptions tune the server under test.
type TestContextOptions struct {
	// identity overrides the identity middleware configuration.
	identity *middleware.IdentityOptions

	// interceptors hook the fake Kubernetes client to force error paths.
	interceptors *interceptor.Funcs

	// waitTimeout bounds the kernel readiness wait.
	waitTimeout time.Duration
}

func MustNewTestContext(t *testing.T, options *TestContextOptions) (*TestContext, func()) {
	t.Helper()

	if options == nil {
		options = &TestContextOptions{}
	}

	if options.identity == nil {
		options.identity = &middleware.IdentityOptions{
			UserHeader: "X-Forwarded-User",
		}
	}

	if options.waitTimeout == 0 {
		options.waitTimeout = 10 * time.Second
	}

	scheme, err := clientutil.NewScheme(jupyterv1.SchemeGroupVersion)
	if err != nil {
		t.Fatal(err)
	}

	builder := fake.NewClientBuilder().WithScheme(scheme)

	if options.interceptors != nil {
		builder = builder.WithInterceptorFuncs(*options.interceptors)
	}

	kubernetesClient := builder.Build()

	s := &server.Server{
		IdentityOptions: options.identity,
	}

	s.Options.ReadTimeout = time.Second
	s.Options.ReadHeaderTimeout = time.Second
	s.Options.WriteTimeout = time.Minute
	s.Options.RequestTimeout = time.Minute
	s.Options.CORSAllowOrigins = []string{"*"}
	s.KernelOptions.Group = jupyterv1.GroupName
	s.KernelOptions.Version = jupyterv1.GroupVersionString
	s.KernelOptions.RequestTimeout = 10 * time.Second
	s.HandlerOptions.WaitTimeout = options.waitTimeout

	if debug {
		s.SetupLogging()
	}

	httpServer, err := s.GetServer(context.Background(), kubernetesClient)
	if err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		if err := httpServer.Serve(listener); err != nil {
			if !goerrors.Is(err, http.ErrServerClosed) {
				fmt.Println(err)
			}
		}
	}()

	tc := &TestContext{
		endpoint:         listener.Addr(),
		server:           httpServer,
		kubernetesClient: kubernetesClient,
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	return tc, shutdown
}

// Endpoint returns the base URL of the server under test.
func (t *TestContext) Endpoint() string {
	return "http://" + t.endpoint.String()
}

// KernelClient returns a kernel client sharing the fake cluster, for seeding
// and inspecting state without going through the API.
func (t *TestContext) KernelClient() *kernel.Client {
	return kernel.NewClient(t.kubernetesClient, &kernel.Options{
		Group:          jupyterv1.GroupName,
		Version:        jupyterv1.GroupVersionString,
		RequestTimeout: 10 * time.Second,
	})
}

// RunKernelController emulates the kernel controller: any kernel resource
// that shows up is marked running after a short scheduling delay.
func (t *TestContext) RunKernelController(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				resources := &jupyterv1.KernelList{}

				if err := t.kubernetesClient.List(ctx, resources); err != nil {
					continue
				}

				for i := range resources.Items {
					resource := &resources.Items[i]

					if resource.Status.Phase == corev1.PodRunning {
						continue
					}

					resource.Status.Phase = corev1.PodRunning
					resource.Status.IP = "10.0.0.42"

					//nolint:errcheck
					t.kubernetesClient.Update(ctx, resource)
				}
			}
		}
	}()
}

// MustSeedKernel creates a running kernel directly in the fake cluster.
func (t *TestContext) MustSeedKernel(ctx context.Context, tt *testing.T, id string) {
	tt.Helper()

	payload := kernel.NewPayload()
	payload.KernelID = id
	payload.ConnectionInfo.KernelID = id

	assert.NilError(tt, t.KernelClient().Create(ctx, payload))

	resource := &jupyterv1.Kernel{}

	assert.NilError(tt, t.kubernetesClient.Get(ctx, client.ObjectKey{Namespace: payload.Namespace, Name: payload.KernelName()}, resource))

	resource.Status.Phase = corev1.PodRunning
	resource.Status.IP = "10.0.0.42"

	assert.NilError(tt, t.kubernetesClient.Update(ctx, resource))
}

// JSONReader implements io.Reader that does lazy JSON marshaling.
type JSONReader struct {
	data interface{}
	buf  *bytes.Buffer
}

func NewJSONReader(data interface{}) *JSONReader {
	return &JSONReader{
		data: data,
	}
}

func (r *JSONReader) Read(p []byte) (int, error) {
	if r.buf == nil {
		data, err := json.Marshal(r.data)
		if err != nil {
			return 0, err
		}

		r.buf = bytes.NewBuffer(data)
	}

	return r.buf.Read(p)
}

// MustDoRequest performs a request against the server with the caller
// identity header attached, returning the response.
func MustDoRequest(t *testing.T, tc *TestContext, method, path string, body io.Reader) *http.Response {
	t.Helper()

	request, err := http.NewRequestWithContext(context.Background(), method, tc.Endpoint()+path, body)
	assert.NilError(t, err)

	request.Header.Set("X-Forwarded-User", testUser)

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := http.DefaultClient.Do(request)
	assert.NilError(t, err)

	return response
}

// MustReadJSON unmarshals a response body.
func MustReadJSON(t *testing.T, response *http.Response, out interface{}) {
	t.Helper()

	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	assert.NilError(t, err)

	assert.NilError(t, json.Unmarshal(body, out))
}

// kernelResponse mirrors the API kernel representation.
type kernelResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LastActivity   string `json:"last_activity"`
	ExecutionState string `json:"execution_state"`
	Connections    int    `json:"connections"`
}

// errorResponse mirrors the API error envelope.
type errorResponse struct {
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

// hasPrefix is a local helper as the messages carry dynamic detail.
func hasPrefix(t *testing.T, s, prefix string) {
	t.Helper()

	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		t.Fatalf("assertion failure: %q does not start with %q", s, prefix)
	}
}

func TestApiCreateKernel(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc.RunKernelController(ctx)

	body := map[string]interface{}{
		"name": "python",
		"env": map[string]interface{}{
			"KERNEL_ID":       kernelID,
			"KERNEL_USERNAME": testUser,
		},
	}

	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", NewJSONReader(body))
	assert.Equal(t, http.StatusOK, response.StatusCode)

	result := &kernelResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, kernelID, result.ID)
	assert.Equal(t, "python-"+kernelID, result.Name)
	assert.Equal(t, "idle", result.ExecutionState)
	assert.Equal(t, 0, result.Connections)
	assert.NotEqual(t, "", result.LastActivity)
}

func TestApiCreateKernelConflict(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc.MustSeedKernel(ctx, t, kernelID)
	tc.RunKernelController(ctx)

	body := map[string]interface{}{
		"env": map[string]interface{}{
			"KERNEL_ID": kernelID,
		},
	}

	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", NewJSONReader(body))
	assert.Equal(t, http.StatusConflict, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, "Conflict", result.Reason)
	hasPrefix(t, result.Message, "Kernel already exists")
}

func TestApiCreateKernelConflictOpaqueID(t *testing.T) {
	gr := schema.GroupResource{Group: jupyterv1.GroupName, Resource: "kernels"}

	options := &TestContextOptions{
		interceptors: &interceptor.Funcs{
			Create: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
				return kerrors.NewAlreadyExists(gr, obj.GetName())
			},
		},
	}

	tc, cleanup := MustNewTestContext(t, options)
	defer cleanup()

	// Clients that mint their own kernel IDs don't always use UUIDs, the
	// ID is opaque and a conflict on it must still read as a conflict.
	body := map[string]interface{}{
		"name": "python",
		"env": map[string]interface{}{
			"KERNEL_ID": "XXXXX",
		},
	}

	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", NewJSONReader(body))
	assert.Equal(t, http.StatusConflict, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, "Conflict", result.Reason)
	hasPrefix(t, result.Message, "Kernel already exists")
}

func TestApiCreateKernelQuotaExceeded(t *testing.T) {
	gr := schema.GroupResource{Group: jupyterv1.GroupName, Resource: "kernels"}

	options := &TestContextOptions{
		interceptors: &interceptor.Funcs{
			Create: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
				return kerrors.NewForbidden(gr, obj.GetName(), goerrors.New("exceeded quota: kernel-quota, requested: count/kernels.jupyter.org=1"))
			},
		},
	}

	tc, cleanup := MustNewTestContext(t, options)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", NewJSONReader(map[string]interface{}{}))
	assert.Equal(t, http.StatusForbidden, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, "Forbidden", result.Reason)
}

func TestApiCreateKernelInvalidBody(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", bytes.NewBufferString("this is not json"))
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	hasPrefix(t, result.Message, "Invalid request json body")
}

func TestApiCreateKernelInvalidPayload(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	body := map[string]interface{}{
		"name": "fortran",
	}

	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", NewJSONReader(body))
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
}

func TestApiCreateKernelWaitTimeout(t *testing.T) {
	options := &TestContextOptions{
		waitTimeout: 2 * time.Second,
	}

	tc, cleanup := MustNewTestContext(t, options)
	defer cleanup()

	// No controller emulation, the kernel stays pending.
	response := MustDoRequest(t, tc, http.MethodPost, "/api/kernels", NewJSONReader(map[string]interface{}{}))
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	hasPrefix(t, result.Message, "Kernel wait ready timeout error")
}

func TestApiGetKernel(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc.MustSeedKernel(ctx, t, kernelID)

	response := MustDoRequest(t, tc, http.MethodGet, "/api/kernels/"+kernelID, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	result := &kernelResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, kernelID, result.ID)
	assert.Equal(t, "idle", result.ExecutionState)
}

func TestApiGetKernelNotFound(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodGet, "/api/kernels/"+kernelID, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, "Not Found", result.Reason)
	hasPrefix(t, result.Message, "Kernel not found")
}

func TestApiGetKernelNotReady(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	payload := kernel.NewPayload()
	payload.KernelID = kernelID
	payload.ConnectionInfo.KernelID = kernelID

	assert.NilError(t, tc.KernelClient().Create(context.Background(), payload))

	// Exists but pending reads as absent, clients poll until it shows.
	response := MustDoRequest(t, tc, http.MethodGet, "/api/kernels/"+kernelID, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestApiListKernels(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	ctx := context.Background()

	tc.MustSeedKernel(ctx, t, kernelID)
	tc.MustSeedKernel(ctx, t, "11f9db61-3bf4-4a9e-9241-6c37f4fd38cb")

	response := MustDoRequest(t, tc, http.MethodGet, "/api/kernels", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	var result []kernelResponse

	MustReadJSON(t, response, &result)

	assert.Equal(t, 2, len(result))
}

// countingDeleteInterceptor counts the delete API calls while letting them
// through.  The interceptors run on the server's goroutines, hence atomic.
func countingDeleteInterceptor(deletes *atomic.Int32) *interceptor.Funcs {
	return &interceptor.Funcs{
		Delete: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.DeleteOption) error {
			deletes.Add(1)

			return client.Delete(ctx, obj, opts...)
		},
	}
}

func TestApiDeleteKernel(t *testing.T) {
	var deletes atomic.Int32

	options := &TestContextOptions{
		interceptors: countingDeleteInterceptor(&deletes),
	}

	tc, cleanup := MustNewTestContext(t, options)
	defer cleanup()

	ctx := context.Background()

	tc.MustSeedKernel(ctx, t, kernelID)

	response := MustDoRequest(t, tc, http.MethodDelete, "/api/kernels/"+kernelID, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response = MustDoRequest(t, tc, http.MethodGet, "/api/kernels/"+kernelID, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	// Idempotent, the kernel is gone either way, and the second request
	// mustn't issue another delete API call.
	response = MustDoRequest(t, tc, http.MethodDelete, "/api/kernels/"+kernelID, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	assert.Equal(t, int32(1), deletes.Load())
}

func TestApiDeleteKernels(t *testing.T) {
	var deletes atomic.Int32

	options := &TestContextOptions{
		interceptors: countingDeleteInterceptor(&deletes),
	}

	tc, cleanup := MustNewTestContext(t, options)
	defer cleanup()

	ctx := context.Background()

	other := "11f9db61-3bf4-4a9e-9241-6c37f4fd38cb"

	tc.MustSeedKernel(ctx, t, kernelID)
	tc.MustSeedKernel(ctx, t, other)

	body := map[string]interface{}{
		"kernel_ids": []string{kernelID, other},
	}

	response := MustDoRequest(t, tc, http.MethodDelete, "/api/kernels", NewJSONReader(body))
	assert.Equal(t, http.StatusOK, response.StatusCode)

	// One delete API call per kernel, no more.
	assert.Equal(t, int32(2), deletes.Load())

	response = MustDoRequest(t, tc, http.MethodGet, "/api/kernels", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	var result []kernelResponse

	MustReadJSON(t, response, &result)

	assert.Equal(t, 0, len(result))
}

func TestApiDeleteKernelsMissingIDs(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodDelete, "/api/kernels", NewJSONReader(map[string]interface{}{}))
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestApiIdentityRequired(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	// No identity header, no kernels.
	request, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.Endpoint()+"/api/kernels", nil)
	assert.NilError(t, err)

	response, err := http.DefaultClient.Do(request)
	assert.HTTPResponse(t, response, http.StatusForbidden, err)

	// Health stays anonymous so probes work.
	request, err = http.NewRequestWithContext(context.Background(), http.MethodGet, tc.Endpoint()+"/health", nil)
	assert.NilError(t, err)

	response, err = http.DefaultClient.Do(request)
	assert.HTTPResponse(t, response, http.StatusOK, err)
}

func TestApiUnauthenticatedAccess(t *testing.T) {
	options := &TestContextOptions{
		identity: &middleware.IdentityOptions{
			AllowUnauthenticatedAccess: true,
			UserHeader:                 "X-Forwarded-User",
		},
	}

	tc, cleanup := MustNewTestContext(t, options)
	defer cleanup()

	request, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.Endpoint()+"/api/kernels", nil)
	assert.NilError(t, err)

	response, err := http.DefaultClient.Do(request)
	assert.HTTPResponse(t, response, http.StatusOK, err)
}

func TestApiKernelSpecs(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodGet, "/api/kernelspecs", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	var result []string

	MustReadJSON(t, response, &result)

	assert.Equal(t, 1, len(result))
	assert.Equal(t, "python", result[0])
}

func TestApiDocumentation(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodGet, "/api/swagger.yaml", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	response.Body.Close()

	response = MustDoRequest(t, tc, http.MethodGet, "/api/docs", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	response.Body.Close()
}

func TestApiNotFoundEnvelope(t *testing.T) {
	tc, cleanup := MustNewTestContext(t, nil)
	defer cleanup()

	response := MustDoRequest(t, tc, http.MethodGet, "/api/nonsense", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	result := &errorResponse{}
	MustReadJSON(t, response, result)

	assert.Equal(t, "Not Found", result.Reason)
}
