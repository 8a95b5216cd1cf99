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
	"time"

	"golang.org/x/sync/errgroup"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Manager orchestrates kernel lifecycle operations over the client.  There
// is deliberately no cache or registry in here: the cluster is the source of
// truth, every read hits the API, and that's what makes running more than
// one replica of this service safe.
type Manager struct {
	// client provides typed kernel resource access.
	client *Client

	// metrics counts lifecycle operations.
	metrics *Metrics
}

// NewManager returns a manager wrapping the given client.
func NewManager(client *Client) *Manager {
	return &Manager{
		client:  client,
		metrics: NewMetrics(),
	}
}

// Client returns the underlying kernel client.
func (m *Manager) Client() *Client {
	return m.client
}

// Start creates a kernel and optionally waits for it to become ready.  The
// view returned is always re-read from the cluster so the caller sees the
// canonical state, not what it asked for.
func (m *Manager) Start(ctx context.Context, payload *Payload, waitReady bool, timeout time.Duration) (*Kernel, error) {
	if err := m.client.Create(ctx, payload); err != nil {
		m.metrics.FailedCreation.WithLabelValues(payload.Namespace).Inc()

		return nil, err
	}

	m.metrics.Creation.WithLabelValues(payload.Namespace).Inc()

	if waitReady {
		ready, err := m.client.WaitForReady(ctx, payload.KernelID, payload.Namespace, timeout)
		if err != nil {
			return nil, err
		}

		if !ready {
			m.metrics.WaitTimeout.WithLabelValues(payload.Namespace).Inc()

			return nil, fmt.Errorf("%w: kernel %s in namespace %s is not ready", ErrKernelWaitReadyTimeout, payload.KernelID, payload.Namespace)
		}
	}

	return m.client.GetByID(ctx, payload.KernelID, payload.Namespace)
}

// List returns all kernels, optionally scoped to a namespace.
func (m *Manager) List(ctx context.Context, namespace string) ([]*Kernel, error) {
	return m.client.List(ctx, namespace)
}

// Get returns the kernel view when the kernel is ready, nil when it exists
// but isn't ready yet.  Callers render the nil however suits them.
func (m *Manager) Get(ctx context.Context, kernelID, namespace string) (*Kernel, error) {
	kernel, err := m.client.GetByID(ctx, kernelID, namespace)
	if err != nil {
		return nil, err
	}

	if !kernel.Ready {
		return nil, nil
	}

	return kernel, nil
}

// Remove deletes a kernel.  Deletion failures are logged and swallowed so
// removal is idempotent from the caller's perspective, retries are an
// operator concern.
func (m *Manager) Remove(ctx context.Context, kernelID, namespace string) error {
	m.metrics.Deletion.WithLabelValues(namespace).Inc()

	if err := m.client.DeleteByID(ctx, kernelID, namespace); err != nil {
		if errors.Is(err, ErrKernelDelete) {
			log.FromContext(ctx).Info("kernel deletion failed", "kernelID", kernelID, "error", err)

			return nil
		}

		return err
	}

	return nil
}

// ShutdownAll removes every kernel, optionally scoped to a namespace.
// Deletions run concurrently and a failure doesn't cancel its siblings.
func (m *Manager) ShutdownAll(ctx context.Context, namespace string) error {
	kernels, err := m.client.List(ctx, namespace)
	if err != nil {
		return err
	}

	group := &errgroup.Group{}

	for _, kernel := range kernels {
		kernel := kernel

		group.Go(func() error {
			return m.Remove(ctx, kernel.KernelID, kernel.Namespace)
		})
	}

	return group.Wait()
}
