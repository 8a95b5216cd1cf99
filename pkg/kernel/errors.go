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
	"errors"
)

var (
	// ErrConfiguration is raised when a Kubernetes client cannot be
	// derived from either the in-cluster service account or a kubeconfig.
	ErrConfiguration = errors.New("unable to derive kubernetes configuration")

	// ErrInvalidPayload is raised when a kernel payload fails validation
	// or a payload field cannot be coerced from its wire representation.
	ErrInvalidPayload = errors.New("invalid kernel payload")

	// ErrSchemaMapping is raised when a kernel resource read from the
	// cluster cannot be mapped back into a kernel, e.g. the kernel ID
	// label has gone missing.
	ErrSchemaMapping = errors.New("kernel schema mapping error")

	// ErrKernelExists is raised on creation when a kernel with the same
	// name already exists in the namespace.
	ErrKernelExists = errors.New("kernel already exists")

	// ErrKernelQuotaExceeded is raised on creation when the namespace
	// resource quota has been exhausted.
	ErrKernelQuotaExceeded = errors.New("kernel resource quota exceeded")

	// ErrKernelForbidden is raised on creation when the API server says
	// no for a reason other than quota.
	ErrKernelForbidden = errors.New("kernel creation forbidden")

	// ErrKernelCreation is raised when creation fails for any other reason.
	ErrKernelCreation = errors.New("kernel creation error")

	// ErrKernelRetrieve is raised when kernels cannot be read back from
	// the cluster.
	ErrKernelRetrieve = errors.New("kernel retrieve error")

	// ErrKernelNotFound is raised when a kernel ID doesn't match anything.
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrKernelDelete is raised when the deletion call itself fails.
	ErrKernelDelete = errors.New("kernel delete error")

	// ErrKernelWaitReadyTimeout is raised when a kernel fails to become
	// ready within the wait window.
	ErrKernelWaitReadyTimeout = errors.New("kernel wait ready timeout")
)
