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

package kernel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jupyterv1 "github.com/eschercloudai/kernelmanager/pkg/apis/jupyter/v1"
	"github.com/eschercloudai/kernelmanager/pkg/kernel"
	clientutil "github.com/eschercloudai/kernelmanager/pkg/util/client"

	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

// testOptions are the kernel client options every test runs with.
func testOptions() *kernel.Options {
	return &kernel.Options{
		Group:          jupyterv1.GroupName,
		Version:        jupyterv1.GroupVersionString,
		RequestTimeout: 10 * time.Second,
	}
}

// newFakeClient builds a fake Kubernetes client that knows about kernel
// resources, optionally with call interceptors to force error paths.
func newFakeClient(t *testing.T, funcs *interceptor.Funcs) client.WithWatch {
	t.Helper()

	scheme, err := clientutil.NewScheme(jupyterv1.SchemeGroupVersion)
	require.NoError(t, err)

	builder := fake.NewClientBuilder().WithScheme(scheme)

	if funcs != nil {
		builder = builder.WithInterceptorFuncs(*funcs)
	}

	return builder.Build()
}

func TestClientCreateGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	c := kernel.NewClient(newFakeClient(t, nil), testOptions())

	payload := kernel.NewPayload()

	require.NoError(t, c.Create(ctx, payload))

	out, err := c.GetByID(ctx, payload.KernelID, "")
	require.NoError(t, err)
	assert.Equal(t, payload.KernelName(), out.Name)
	assert.False(t, out.Ready)

	// Namespace scoping finds it in its own namespace, not elsewhere.
	_, err = c.GetByID(ctx, payload.KernelID, "default")
	require.NoError(t, err)

	_, err = c.GetByID(ctx, payload.KernelID, "elsewhere")
	require.ErrorIs(t, err, kernel.ErrKernelNotFound)

	require.NoError(t, c.DeleteByID(ctx, payload.KernelID, ""))

	_, err = c.GetByID(ctx, payload.KernelID, "")
	require.ErrorIs(t, err, kernel.ErrKernelNotFound)

	// Deleting an absent kernel is a success, the desired state holds.
	require.NoError(t, c.DeleteByID(ctx, payload.KernelID, ""))
}

func TestClientDeleteCallCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var deletes int

	funcs := &interceptor.Funcs{
		Delete: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.DeleteOption) error {
			deletes++

			return client.Delete(ctx, obj, opts...)
		},
	}

	c := kernel.NewClient(newFakeClient(t, funcs), testOptions())

	payload := kernel.NewPayload()

	require.NoError(t, c.Create(ctx, payload))

	require.NoError(t, c.DeleteByID(ctx, payload.KernelID, ""))
	assert.Equal(t, 1, deletes)

	// The second delete resolves to not found and never reaches the API.
	require.NoError(t, c.DeleteByID(ctx, payload.KernelID, ""))
	assert.Equal(t, 1, deletes)
}

func TestClientCreateAlreadyExists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	c := kernel.NewClient(newFakeClient(t, nil), testOptions())

	payload := kernel.NewPayload()

	require.NoError(t, c.Create(ctx, payload))
	require.ErrorIs(t, c.Create(ctx, payload), kernel.ErrKernelExists)
}

func TestClientCreateQuotaExceeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	gr := schema.GroupResource{Group: jupyterv1.GroupName, Resource: "kernels"}

	funcs := &interceptor.Funcs{
		Create: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			return kerrors.NewForbidden(gr, obj.GetName(), errors.New("exceeded quota: kernel-quota, requested: requests.memory=2Gi"))
		},
	}

	c := kernel.NewClient(newFakeClient(t, funcs), testOptions())

	err := c.Create(ctx, kernel.NewPayload())

	require.ErrorIs(t, err, kernel.ErrKernelQuotaExceeded)
	assert.Contains(t, err.Error(), "exceeded quota")
}

func TestClientCreateForbidden(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	gr := schema.GroupResource{Group: jupyterv1.GroupName, Resource: "kernels"}

	funcs := &interceptor.Funcs{
		Create: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			return kerrors.NewForbidden(gr, obj.GetName(), errors.New("RBAC says no"))
		},
	}

	c := kernel.NewClient(newFakeClient(t, funcs), testOptions())

	require.ErrorIs(t, c.Create(ctx, kernel.NewPayload()), kernel.ErrKernelForbidden)
}

func TestClientCreateInternalError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	funcs := &interceptor.Funcs{
		Create: func(ctx context.Context, client client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			return kerrors.NewInternalError(errors.New("etcd is on fire"))
		},
	}

	c := kernel.NewClient(newFakeClient(t, funcs), testOptions())

	require.ErrorIs(t, c.Create(ctx, kernel.NewPayload()), kernel.ErrKernelCreation)
}

func TestClientListError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	funcs := &interceptor.Funcs{
		List: func(ctx context.Context, client client.WithWatch, list client.ObjectList, opts ...client.ListOption) error {
			return kerrors.NewInternalError(errors.New("etcd is on fire"))
		},
	}

	c := kernel.NewClient(newFakeClient(t, funcs), testOptions())

	_, err := c.List(ctx, "")
	require.ErrorIs(t, err, kernel.ErrKernelRetrieve)

	_, err = c.GetByID(ctx, "8e6b1ff1-2e9c-4ba9-9a26-e1866e2a9b34", "")
	require.ErrorIs(t, err, kernel.ErrKernelRetrieve)
}

func TestClientWaitForReady(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	fakeClient := newFakeClient(t, nil)
	c := kernel.NewClient(fakeClient, testOptions())

	payload := kernel.NewPayload()

	require.NoError(t, c.Create(ctx, payload))

	// Mark the kernel running the way its controller eventually would.
	go func() {
		time.Sleep(100 * time.Millisecond)

		resource := &jupyterv1.Kernel{}

		if err := fakeClient.Get(ctx, client.ObjectKey{Namespace: payload.Namespace, Name: payload.KernelName()}, resource); err != nil {
			return
		}

		resource.Status.Phase = corev1.PodRunning

		//nolint:errcheck
		fakeClient.Update(ctx, resource)
	}()

	ready, err := c.WaitForReady(ctx, payload.KernelID, payload.Namespace, 10*time.Second)

	require.NoError(t, err)
	assert.True(t, ready)
}

func TestClientWaitForReadyTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	c := kernel.NewClient(newFakeClient(t, nil), testOptions())

	payload := kernel.NewPayload()

	require.NoError(t, c.Create(ctx, payload))

	// Nothing transitions the kernel, the wait expires quietly.
	ready, err := c.WaitForReady(ctx, payload.KernelID, payload.Namespace, 2*time.Second)

	require.NoError(t, err)
	assert.False(t, ready)
}

func TestClientWaitForReadyRetrieveError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	c := kernel.NewClient(newFakeClient(t, nil), testOptions())

	// The kernel never existed, the wait aborts rather than spinning.
	_, err := c.WaitForReady(ctx, "8e6b1ff1-2e9c-4ba9-9a26-e1866e2a9b34", "", 10*time.Second)

	require.ErrorIs(t, err, kernel.ErrKernelRetrieve)
}
