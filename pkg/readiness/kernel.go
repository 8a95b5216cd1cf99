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

package readiness

import (
	"context"
	"errors"
	"fmt"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"
)

var (
	// ErrKernelUnready means the kernel exists but its pod isn't running yet.
	ErrKernelUnready = errors.New("kernel not yet ready")
)

// Kernel checks a kernel has reached the running phase.
type Kernel struct {
	// client provides typed kernel resource access.
	client *kernel.Client

	// namespace is the namespace the kernel resides in.
	namespace string

	// kernelID identifies the kernel.
	kernelID string
}

// Ensure the Check interface is implemented.
var _ Check = &Kernel{}

// NewKernel creates a new kernel readiness check.
func NewKernel(client *kernel.Client, kernelID, namespace string) *Kernel {
	return &Kernel{
		client:    client,
		namespace: namespace,
		kernelID:  kernelID,
	}
}

// Check implements the Check interface.
func (r *Kernel) Check(ctx context.Context) error {
	result, err := r.client.GetByID(ctx, r.kernelID, r.namespace)
	if err != nil {
		return err
	}

	if !result.Ready {
		return fmt.Errorf("%w: %s", ErrKernelUnready, r.kernelID)
	}

	return nil
}
