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

package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	jupyterv1 "github.com/eschercloudai/kernelmanager/pkg/apis/jupyter/v1"
	"github.com/eschercloudai/kernelmanager/pkg/util/retry"

	kerrors "k8s.io/apimachinery/pkg/api/errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// quotaExceededMarker is the substring the API server includes in a 403
// status message when admission was refused by a resource quota.  There is
// no structured cause for this, string matching is as good as it gets.
const quotaExceededMarker = "exceeded quota"

// errNotReady is internal to the readiness wait loop.
var errNotReady = errors.New("kernel not ready")

// Options configure where the kernel resources live and how patient we are
// with the API server.
type Options struct {
	// Group is the API group the kernel CRD is served under.
	Group string

	// Version is the API version of the kernel CRD.
	Version string

	// RequestTimeout bounds every individual Kubernetes API call.
	RequestTimeout time.Duration
}

// AddFlags registers the options with the given flag set.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&o.Group, "kernel-group", jupyterv1.GroupName, "API group the kernel custom resources are served under.")
	f.StringVar(&o.Version, "kernel-version", jupyterv1.GroupVersionString, "API version of the kernel custom resources.")
	f.DurationVar(&o.RequestTimeout, "kernel-request-timeout", time.Minute, "How long to wait for any single Kubernetes API call.")
}

// Client provides typed access to kernel resources.  It owns error
// classification: Kubernetes API failures are mapped into the kernel error
// taxonomy exactly once, here, and nothing upstream reclassifies them.
type Client struct {
	// client allows Kubernetes API access.
	client client.Client

	// converter maps payloads to resources and back.
	converter *Converter

	// timeout bounds every individual API call.
	timeout time.Duration
}

// NewClient returns a kernel client.  The Kubernetes client is injected so
// tests can substitute a fake, see pkg/util/client for the real thing.
func NewClient(c client.Client, options *Options) *Client {
	return &Client{
		client:    c,
		converter: NewConverter(options.Group),
		timeout:   options.RequestTimeout,
	}
}

// Converter exposes the schema mapper, primarily so the server can derive
// label and annotation names consistently.
func (c *Client) Converter() *Converter {
	return c.converter
}

// callContext bounds an API call with the per-call timeout.  The parent's
// values survive but its cancellation doesn't: a client hanging up mustn't
// abort a mutation that's already in flight, the call runs to completion and
// the result is discarded.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
}

// Create submits a new kernel resource built from the payload.
func (c *Client) Create(ctx context.Context, payload *Payload) error {
	resource, err := c.converter.ToResource(payload)
	if err != nil {
		return err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.client.Create(callCtx, resource); err != nil {
		switch {
		case kerrors.IsAlreadyExists(err), kerrors.IsConflict(err):
			return fmt.Errorf("%w: kernel-id: %s, namespace: %s", ErrKernelExists, payload.KernelID, payload.Namespace)
		case kerrors.IsForbidden(err) && strings.Contains(err.Error(), quotaExceededMarker):
			return fmt.Errorf("%w: %s", ErrKernelQuotaExceeded, err)
		case kerrors.IsForbidden(err):
			return fmt.Errorf("%w: %s", ErrKernelForbidden, err)
		default:
			return fmt.Errorf("%w: %s", ErrKernelCreation, err)
		}
	}

	return nil
}

// List returns all kernels in the namespace, or across the cluster when the
// namespace is empty.
func (c *Client) List(ctx context.Context, namespace string) ([]*Kernel, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resources := &jupyterv1.KernelList{}

	var opts []client.ListOption

	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}

	if err := c.client.List(callCtx, resources, opts...); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKernelRetrieve, err)
	}

	kernels := make([]*Kernel, 0, len(resources.Items))

	for i := range resources.Items {
		kernel, err := c.converter.FromResource(&resources.Items[i])
		if err != nil {
			return nil, err
		}

		kernels = append(kernels, kernel)
	}

	return kernels, nil
}

// GetByID resolves a kernel by its ID label.  The resource name is an
// implementation detail, the ID label is the stable handle.
func (c *Client) GetByID(ctx context.Context, kernelID, namespace string) (*Kernel, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resources := &jupyterv1.KernelList{}

	opts := []client.ListOption{
		client.MatchingLabels{c.converter.KernelIDLabel(): kernelID},
		client.Limit(1),
	}

	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}

	if err := c.client.List(callCtx, resources, opts...); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKernelRetrieve, err)
	}

	if len(resources.Items) == 0 {
		return nil, fmt.Errorf("%w: could not find kernel with id %s", ErrKernelNotFound, kernelID)
	}

	return c.converter.FromResource(&resources.Items[0])
}

// DeleteByID deletes a kernel by its ID label.  Deleting something that
// doesn't exist is a success, the desired state already holds.
func (c *Client) DeleteByID(ctx context.Context, kernelID, namespace string) error {
	kernel, err := c.GetByID(ctx, kernelID, namespace)
	if err != nil {
		if errors.Is(err, ErrKernelNotFound) {
			return nil
		}

		return err
	}

	resource := &jupyterv1.Kernel{}
	resource.Name = kernel.Name
	resource.Namespace = kernel.Namespace

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.client.Delete(callCtx, resource); err != nil {
		if kerrors.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("%w: %s", ErrKernelDelete, err)
	}

	return nil
}

// WaitForReady polls the kernel at a second cadence until it reports ready.
// Expiry of the timeout isn't an error, the kernel is just slow, and the
// caller decides what that means.  Retrieval failures on the other hand
// abort the wait.
func (c *Client) WaitForReady(ctx context.Context, kernelID, namespace string, timeout time.Duration) (bool, error) {
	var retrieveErr error

	poll := func() error {
		kernel, err := c.GetByID(ctx, kernelID, namespace)
		if err != nil {
			retrieveErr = err

			// Escape the loop, the error is picked up below.
			return nil
		}

		if !kernel.Ready {
			return errNotReady
		}

		return nil
	}

	if err := retry.WithContext(ctx).WithTimeout(timeout).DoWithContext(ctx, poll); err != nil {
		log.FromContext(ctx).Info("timed out waiting for kernel to become ready", "kernelID", kernelID, "namespace", namespace)

		return false, nil
	}

	if retrieveErr != nil {
		return false, fmt.Errorf("%w: %s", ErrKernelRetrieve, retrieveErr)
	}

	return true, nil
}
