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

package readiness_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	jupyterv1 "github.com/eschercloudai/kernelmanager/pkg/apis/jupyter/v1"
	"github.com/eschercloudai/kernelmanager/pkg/kernel"
	"github.com/eschercloudai/kernelmanager/pkg/readiness"
	clientutil "github.com/eschercloudai/kernelmanager/pkg/util/client"

	corev1 "k8s.io/api/core/v1"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func TestKernelCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	scheme, err := clientutil.NewScheme(jupyterv1.SchemeGroupVersion)
	require.NoError(t, err)

	fakeClient := fake.NewClientBuilder().WithScheme(scheme).Build()

	options := &kernel.Options{
		Group:          jupyterv1.GroupName,
		Version:        jupyterv1.GroupVersionString,
		RequestTimeout: 10 * time.Second,
	}

	kernelClient := kernel.NewClient(fakeClient, options)

	payload := kernel.NewPayload()

	require.NoError(t, kernelClient.Create(ctx, payload))

	check := readiness.NewKernel(kernelClient, payload.KernelID, payload.Namespace)

	require.ErrorIs(t, check.Check(ctx), readiness.ErrKernelUnready)

	resource := &jupyterv1.Kernel{}

	require.NoError(t, fakeClient.Get(ctx, client.ObjectKey{Namespace: payload.Namespace, Name: payload.KernelName()}, resource))

	resource.Status.Phase = corev1.PodRunning

	require.NoError(t, fakeClient.Update(ctx, resource))

	require.NoError(t, check.Check(ctx))

	// Absent kernels aren't unready, they're a retrieval error.
	require.ErrorIs(t, readiness.NewKernel(kernelClient, "00000000-0000-4000-8000-000000000000", "").Check(ctx), kernel.ErrKernelNotFound)
}
