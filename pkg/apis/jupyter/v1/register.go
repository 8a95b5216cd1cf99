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

package v1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"

	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

const (
	// GroupName is the Kubernetes API group our resources belong to.
	GroupName = "jupyter.org"
	// GroupVersionString is the version of our custom resources.
	GroupVersionString = "v1"
	// Group is group/version of our resources.
	Group = GroupName + "/" + GroupVersionString

	// KernelKind is the API kind for a kernel.
	KernelKind = "Kernel"
	// KernelResource is the API endpoint for kernel resources.
	KernelResource = "kernels"
)

var (
	// SchemeGroupVersion defines the GV of our resources.
	//nolint:gochecknoglobals
	SchemeGroupVersion = schema.GroupVersion{Group: GroupName, Version: GroupVersionString}

	// SchemeBuilder creates a mapping between GVK and type.
	//nolint:gochecknoglobals
	SchemeBuilder = &scheme.Builder{GroupVersion: SchemeGroupVersion}

	// AddToScheme adds our GVK to resource mappings to an existing scheme.
	//nolint:gochecknoglobals
	AddToScheme = SchemeBuilder.AddToScheme
)

//nolint:gochecknoinits
func init() {
	SchemeBuilder.Register(&Kernel{}, &KernelList{})
}

// NewSchemeBuilder returns a scheme builder that maps the kernel types under
// an alternative group and version.  Kernel storage is deployment specific,
// so the client has to be told which flavour of the CRD it is talking to.
func NewSchemeBuilder(gv schema.GroupVersion) *scheme.Builder {
	builder := &scheme.Builder{GroupVersion: gv}
	builder.Register(&Kernel{}, &KernelList{})

	return builder
}
