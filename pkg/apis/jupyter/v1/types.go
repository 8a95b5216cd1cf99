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
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// KernelConnectionConfig describes the Jupyter connection file contents that
// the kernel container is started with.  Keys are camel cased as that's what
// the CRD schema expects, the REST layer maps these to and from the snake
// cased forms Jupyter clients understand.
type KernelConnectionConfig struct {
	// IP is the address the kernel binds its sockets to.  The observed
	// pod IP from the kernel status takes precedence on reads.
	IP string `json:"ip"`
	// ShellPort is the ZMQ shell channel port.
	ShellPort int `json:"shellPort"`
	// IOPubPort is the ZMQ iopub channel port.
	IOPubPort int `json:"iopubPort"`
	// StdinPort is the ZMQ stdin channel port.
	StdinPort int `json:"stdinPort"`
	// ControlPort is the ZMQ control channel port.
	ControlPort int `json:"controlPort"`
	// HBPort is the ZMQ heartbeat channel port.
	HBPort int `json:"hbPort"`
	// KernelID uniquely identifies the kernel to Jupyter clients.
	KernelID string `json:"kernelId"`
	// Key is the HMAC key used to sign kernel messages.
	Key string `json:"key"`
	// Transport is the ZMQ transport, only "tcp" is seen in the wild.
	Transport string `json:"transport"`
	// SignatureScheme is the message signing scheme, e.g. "hmac-sha256".
	SignatureScheme string `json:"signatureScheme"`
	// KernelName is a free form kernel name.
	KernelName string `json:"kernelName"`
}

// KernelSpec defines the desired state of a kernel.
type KernelSpec struct {
	// Template describes the pod that will host the kernel process.
	Template corev1.PodTemplateSpec `json:"template"`
	// IdleTimeoutSeconds is the number of seconds of inactivity before
	// the kernel controller culls the kernel.
	// +optional
	IdleTimeoutSeconds int32 `json:"idleTimeoutSeconds,omitempty"`
	// CullingIntervalSeconds is the number of seconds between idleness
	// checks performed by the kernel controller.
	// +optional
	CullingIntervalSeconds int32 `json:"cullingIntervalSeconds,omitempty"`
	// KernelConnectionConfig is the connection file content the kernel
	// is provisioned with.
	// +optional
	KernelConnectionConfig KernelConnectionConfig `json:"kernelConnectionConfig,omitempty"`
}

// KernelCondition describes an observed condition of the kernel container.
type KernelCondition struct {
	// Type is the type of the condition, one of Running, Waiting or
	// Terminated.
	Type string `json:"type"`
	// Status is the status of the condition, one of True, False or
	// Unknown.
	Status string `json:"status"`
	// LastProbeTime is the last time we probed the condition.
	// +optional
	LastProbeTime metav1.Time `json:"lastProbeTime,omitempty"`
	// LastTransitionTime is the last time the condition transitioned
	// from one status to another.
	// +optional
	LastTransitionTime metav1.Time `json:"lastTransitionTime,omitempty"`
	// Reason is a brief reason the container is in the current state.
	// +optional
	Reason string `json:"reason,omitempty"`
	// Message details why the container is in the current state.
	// +optional
	Message string `json:"message,omitempty"`
}

// KernelStatus defines the observed state of a kernel.  This is only ever
// written by the kernel controller, we treat it as read only.
type KernelStatus struct {
	// Conditions is an array of current conditions.
	// +optional
	Conditions []KernelCondition `json:"conditions,omitempty"`
	// ContainerState is the state of the underlying kernel container.
	// +optional
	ContainerState corev1.ContainerState `json:"containerState,omitempty"`
	// Phase is the pod phase of the kernel pod.  A kernel is ready to
	// accept connections when this is Running.
	// +optional
	Phase corev1.PodPhase `json:"phase,omitempty"`
	// IP is the IP address the kernel's channel ports are reachable on.
	// +optional
	IP string `json:"ip,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="ADDRESS",type="string",JSONPath=".status.ip",description="The IP address of the kernel"
// +kubebuilder:printcolumn:name="PHASE",type="string",JSONPath=".status.phase",description="The phase of the kernel"
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"

// Kernel is the schema for the kernels API.
type Kernel struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Spec              KernelSpec   `json:"spec,omitempty"`
	Status            KernelStatus `json:"status,omitempty"`
}

// Ready indicates whether the kernel is able to accept connections.
func (k *Kernel) Ready() bool {
	return k.Status.Phase == corev1.PodRunning
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true

// KernelList contains a list of kernels.
type KernelList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Kernel `json:"items"`
}
