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
	"fmt"
	"time"

	jupyterv1 "github.com/eschercloudai/kernelmanager/pkg/apis/jupyter/v1"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// kernelIDLabelSuffix identifies the kernel a resource belongs to.
	// This is the stable handle, resource names are derived and clients
	// should never need to know them.
	kernelIDLabelSuffix = "kernel-id"

	// kernelManagerNameLabelSuffix records the derived resource name.
	kernelManagerNameLabelSuffix = "kernelmanager-name"

	// kernelSpecNameLabelSuffix records the kernel specification.
	kernelSpecNameLabelSuffix = "kernel-spec-name"

	// lastActivityAnnotationSuffix is maintained by the culling controller
	// and records when the kernel last did anything.
	lastActivityAnnotationSuffix = "kernel-last-activity-time"

	// lastActivityTimeFormat is the layout the culling controller writes
	// activity timestamps in.  It's naive, by convention UTC.
	lastActivityTimeFormat = "2006-01-02 15:04:05.999999"

	// containerName is the name of the kernel container in the pod template.
	containerName = "ipykernel"

	// cullingIntervalSeconds is how often the culling controller checks
	// for idleness.  The controller owns the policy, we just provision it.
	cullingIntervalSeconds = 60
)

// Converter maps kernel payloads to kernel resources and back.  It's pure,
// all I/O stays in the client.  The API group is configurable because the CRD
// is deployment specific, and it prefixes all our labels and annotations.
type Converter struct {
	// group is the Kubernetes API group the kernel CRD is served under.
	group string
}

// NewConverter returns a converter for the given API group.
func NewConverter(group string) *Converter {
	return &Converter{
		group: group,
	}
}

// KernelIDLabel returns the label key the kernel ID is recorded under.
func (c *Converter) KernelIDLabel() string {
	return c.group + "/" + kernelIDLabelSuffix
}

// KernelManagerNameLabel returns the label key the resource name is recorded under.
func (c *Converter) KernelManagerNameLabel() string {
	return c.group + "/" + kernelManagerNameLabelSuffix
}

// KernelSpecNameLabel returns the label key the spec name is recorded under.
func (c *Converter) KernelSpecNameLabel() string {
	return c.group + "/" + kernelSpecNameLabelSuffix
}

// LastActivityAnnotation returns the annotation key the culling controller
// records activity under.
func (c *Converter) LastActivityAnnotation() string {
	return c.group + "/" + lastActivityAnnotationSuffix
}

// connectionConfig maps the payload connection info into the camel cased CRD
// representation.
func connectionConfig(info *ConnectionInfo) jupyterv1.KernelConnectionConfig {
	return jupyterv1.KernelConnectionConfig{
		IP:              info.IP,
		ShellPort:       info.ShellPort,
		IOPubPort:       info.IOPubPort,
		StdinPort:       info.StdinPort,
		ControlPort:     info.ControlPort,
		HBPort:          info.HBPort,
		KernelID:        info.KernelID,
		Key:             info.Key,
		Transport:       info.Transport,
		SignatureScheme: info.SignatureScheme,
		KernelName:      info.KernelName,
	}
}

// connectionInfo maps the CRD connection config back into the payload
// representation.
func connectionInfo(config *jupyterv1.KernelConnectionConfig) *ConnectionInfo {
	return &ConnectionInfo{
		IP:              config.IP,
		ShellPort:       config.ShellPort,
		IOPubPort:       config.IOPubPort,
		StdinPort:       config.StdinPort,
		ControlPort:     config.ControlPort,
		HBPort:          config.HBPort,
		KernelID:        config.KernelID,
		Key:             config.Key,
		Transport:       config.Transport,
		SignatureScheme: config.SignatureScheme,
		KernelName:      config.KernelName,
	}
}

// ToResource builds a kernel resource from a payload.  The resource name is
// derived from the spec name and kernel ID, and the kernel ID label is the
// handle every read and delete resolves through.
func (c *Converter) ToResource(payload *Payload) (*jupyterv1.Kernel, error) {
	env, err := payload.Environ()
	if err != nil {
		return nil, err
	}

	name := payload.KernelName()

	kernel := &jupyterv1.Kernel{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: payload.Namespace,
			Labels: map[string]string{
				c.KernelIDLabel():          payload.KernelID,
				c.KernelManagerNameLabel(): name,
				c.KernelSpecNameLabel():    string(payload.SpecName),
			},
		},
		Spec: jupyterv1.KernelSpec{
			IdleTimeoutSeconds:     int32(payload.IdleTimeout),
			CullingIntervalSeconds: cullingIntervalSeconds,
			KernelConnectionConfig: connectionConfig(payload.ConnectionInfo),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:         containerName,
							Image:        payload.Image,
							Command:      []string{"python", "-m", "ipykernel", "-f", "$(KERNEL_CONNECTION_FILE_PATH)"},
							WorkingDir:   payload.WorkingDir,
							Env:          env,
							VolumeMounts: payload.VolumeMounts,
						},
					},
					RestartPolicy: corev1.RestartPolicyNever,
					Volumes:       payload.Volumes,
				},
			},
		},
	}

	return kernel, nil
}

// envLookup returns the value of the named variable in the kernel container
// environment.
func envLookup(env []corev1.EnvVar, name string) (string, bool) {
	for i := range env {
		if env[i].Name == name {
			return env[i].Value, true
		}
	}

	return "", false
}

// lastActivityTime derives the activity timestamp.  The culling controller's
// annotation wins when present and well formed, otherwise the resource
// creation time stands in for it.  Either way the output is ISO-8601 UTC.
func (c *Converter) lastActivityTime(kernel *jupyterv1.Kernel) string {
	if value, ok := kernel.Annotations[c.LastActivityAnnotation()]; ok {
		if t, err := time.ParseInLocation(lastActivityTimeFormat, value, time.UTC); err == nil {
			return t.Format(time.RFC3339Nano)
		}
	}

	return kernel.CreationTimestamp.UTC().Format(time.RFC3339)
}

// FromResource builds the kernel view from a kernel resource.  The resource
// is expected to be one of ours, anything structurally unsound means someone
// has been poking the cluster behind our back and raises ErrSchemaMapping.
func (c *Converter) FromResource(in *jupyterv1.Kernel) (*Kernel, error) {
	kernelID, ok := in.Labels[c.KernelIDLabel()]
	if !ok {
		return nil, fmt.Errorf("%w: resource %s/%s has no %s label", ErrSchemaMapping, in.Namespace, in.Name, c.KernelIDLabel())
	}

	if len(in.Spec.Template.Spec.Containers) == 0 {
		return nil, fmt.Errorf("%w: resource %s/%s has no kernel container", ErrSchemaMapping, in.Namespace, in.Name)
	}

	container := &in.Spec.Template.Spec.Containers[0]

	info := connectionInfo(&in.Spec.KernelConnectionConfig)

	// The connection config is written with the wildcard address, the pod
	// IP only exists once scheduled, so it's patched in from the status.
	if in.Status.IP != "" {
		info.IP = in.Status.IP
	}

	kernel := &Kernel{
		Payload: Payload{
			KernelID:       kernelID,
			SpecName:       SpecName(in.Labels[c.KernelSpecNameLabel()]),
			WorkingDir:     container.WorkingDir,
			Namespace:      in.Namespace,
			Volumes:        in.Spec.Template.Spec.Volumes,
			VolumeMounts:   container.VolumeMounts,
			IdleTimeout:    int(in.Spec.IdleTimeoutSeconds),
			Image:          container.Image,
			ConnectionInfo: info,
		},
		Name:             in.Name,
		LastActivityTime: c.lastActivityTime(in),
		Ready:            in.Ready(),
	}

	if language, ok := envLookup(container.Env, EnvKernelLanguage); ok {
		kernel.Language = language
	}

	if username, ok := envLookup(container.Env, EnvKernelUsername); ok {
		kernel.Username = username
	}

	return kernel, nil
}
