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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	corev1 "k8s.io/api/core/v1"
)

// SpecName identifies a supported kernel specification.
type SpecName string

const (
	// SpecNamePython is the IPython kernel, currently the only show in town.
	SpecNamePython SpecName = "python"
)

// SpecNames returns the kernel specifications this service can launch.
func SpecNames() []SpecName {
	return []SpecName{SpecNamePython}
}

// Kernel payload fields are aliased to environment variable style keys on the
// wire, and any field so aliased ends up in the kernel container's
// environment.  Jupyter clients conventionally pass these through the create
// request's env map.
const (
	EnvKernelID           = "KERNEL_ID"
	EnvKernelSpecName     = "KERNEL_SPEC_NAME"
	EnvKernelWorkingDir   = "KERNEL_WORKING_DIR"
	EnvKernelNamespace    = "KERNEL_NAMESPACE"
	EnvKernelVolumes      = "KERNEL_VOLUMES"
	EnvKernelVolumeMounts = "KERNEL_VOLUME_MOUNTS"
	EnvKernelIdleTimeout  = "KERNEL_IDLE_TIMEOUT"
	EnvKernelImage        = "KERNEL_IMAGE"
	EnvKernelLanguage     = "KERNEL_LANGUAGE"
	EnvKernelUsername     = "KERNEL_USERNAME"
)

const (
	// defaultWorkingDir is where kernels execute, aligned with the data
	// volume the kernel images mount.
	defaultWorkingDir = "/mnt/data"

	// defaultNamespace is where kernels live unless told otherwise.
	defaultNamespace = "default"

	// defaultIdleTimeout is how many seconds of inactivity the kernel
	// controller tolerates before culling a kernel.
	defaultIdleTimeout = 3600

	// defaultImage is the kernel image to boot when the client doesn't
	// have an opinion.
	defaultImage = "zjuici/tablegpt-kernel:0.1.1"

	// defaultLanguage is the kernel language advertised to clients.
	defaultLanguage = "python"

	// defaultUsername attributes kernel activity when no user is given.
	defaultUsername = "default"
)

// ConnectionInfo is the Jupyter connection file content a kernel is started
// with.  JSON tags are the snake cased keys Jupyter clients expect; the CRD
// representation is camel cased and lives in the API types.
type ConnectionInfo struct {
	IP              string `json:"ip"`
	ShellPort       int    `json:"shell_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	ControlPort     int    `json:"control_port"`
	HBPort          int    `json:"hb_port"`
	KernelID        string `json:"kernel_id" validate:"required"`
	Key             string `json:"key" validate:"required"`
	Transport       string `json:"transport"`
	SignatureScheme string `json:"signature_scheme"`
	KernelName      string `json:"kernel_name"`
}

// NewConnectionInfo returns connection defaults with fresh identity and
// signing key.  The port numbers are fixed, every kernel gets its own pod
// and therefore its own network namespace, so there is nothing to collide
// with.
func NewConnectionInfo() *ConnectionInfo {
	return &ConnectionInfo{
		IP:              "0.0.0.0",
		ShellPort:       52318,
		IOPubPort:       52317,
		StdinPort:       52319,
		ControlPort:     52321,
		HBPort:          52320,
		KernelID:        uuid.New().String(),
		Key:             uuid.New().String(),
		Transport:       "tcp",
		SignatureScheme: "hmac-sha256",
	}
}

// Payload captures everything needed to launch a kernel.
type Payload struct {
	// KernelID uniquely identifies the kernel.  We mint UUIDs, but the ID
	// is an opaque string and clients that bring their own don't always
	// use one.
	KernelID string `json:"kernel_id" validate:"required"`

	// SpecName selects the kernel specification to launch.
	SpecName SpecName `json:"kernel_spec_name" validate:"required,oneof=python"`

	// WorkingDir is the kernel process working directory.
	WorkingDir string `json:"kernel_working_dir" validate:"required"`

	// Namespace the kernel resource is created in.
	Namespace string `json:"kernel_namespace" validate:"required"`

	// Volumes are added verbatim to the kernel pod.
	Volumes []corev1.Volume `json:"kernel_volumes"`

	// VolumeMounts are added verbatim to the kernel container.
	VolumeMounts []corev1.VolumeMount `json:"kernel_volume_mounts"`

	// IdleTimeout is the number of seconds of inactivity before the
	// kernel controller culls the kernel.
	IdleTimeout int `json:"kernel_idle_timeout" validate:"gte=0"`

	// Image is the kernel container image.
	Image string `json:"kernel_image" validate:"required"`

	// Language is advertised to clients via the container environment.
	Language string `json:"kernel_language"`

	// Username attributes kernel activity via the container environment.
	Username string `json:"kernel_username"`

	// ConnectionInfo the kernel is provisioned with.
	ConnectionInfo *ConnectionInfo `json:"kernel_connection_info" validate:"required"`
}

// NewPayload returns a payload with a fresh kernel identity and the
// documented defaults.
func NewPayload() *Payload {
	return &Payload{
		KernelID:       uuid.New().String(),
		SpecName:       SpecNamePython,
		WorkingDir:     defaultWorkingDir,
		Namespace:      defaultNamespace,
		IdleTimeout:    defaultIdleTimeout,
		Image:          defaultImage,
		Language:       defaultLanguage,
		Username:       defaultUsername,
		ConnectionInfo: NewConnectionInfo(),
	}
}

//nolint:gochecknoglobals
var validate = validator.New()

// Validate checks payload fields against their constraints.
func (p *Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	return nil
}

// KernelName derives the canonical kernel resource name.
func (p *Payload) KernelName() string {
	return fmt.Sprintf("%s-%s", p.SpecName, p.KernelID)
}

// Environ serialises the payload into the kernel container's environment.
// Only aliased fields are emitted, and compound values are JSON encoded.
func (p *Payload) Environ() ([]corev1.EnvVar, error) {
	volumes, err := json.Marshal(p.Volumes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaMapping, err)
	}

	volumeMounts, err := json.Marshal(p.VolumeMounts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaMapping, err)
	}

	env := []corev1.EnvVar{
		{Name: EnvKernelID, Value: p.KernelID},
		{Name: EnvKernelSpecName, Value: string(p.SpecName)},
		{Name: EnvKernelWorkingDir, Value: p.WorkingDir},
		{Name: EnvKernelNamespace, Value: p.Namespace},
		{Name: EnvKernelVolumes, Value: string(volumes)},
		{Name: EnvKernelVolumeMounts, Value: string(volumeMounts)},
		{Name: EnvKernelIdleTimeout, Value: strconv.Itoa(p.IdleTimeout)},
		{Name: EnvKernelImage, Value: p.Image},
		{Name: EnvKernelLanguage, Value: p.Language},
		{Name: EnvKernelUsername, Value: p.Username},
	}

	return env, nil
}

// PayloadFromEnv binds an environment style map onto a fresh payload.  Keys
// that aren't aliases of a payload field are ignored, values are coerced from
// the representations seen in the wild: numbers as strings, lists as JSON
// encoded strings.  The resulting payload is validated.
func PayloadFromEnv(env map[string]any) (*Payload, error) {
	payload := NewPayload()

	if value, ok := env[EnvKernelID]; ok {
		s, err := stringField(EnvKernelID, value)
		if err != nil {
			return nil, err
		}

		payload.KernelID = s
		payload.ConnectionInfo.KernelID = s
	}

	if value, ok := env[EnvKernelSpecName]; ok {
		s, err := stringField(EnvKernelSpecName, value)
		if err != nil {
			return nil, err
		}

		payload.SpecName = SpecName(s)
	}

	if value, ok := env[EnvKernelWorkingDir]; ok {
		s, err := stringField(EnvKernelWorkingDir, value)
		if err != nil {
			return nil, err
		}

		payload.WorkingDir = s
	}

	if value, ok := env[EnvKernelNamespace]; ok {
		s, err := stringField(EnvKernelNamespace, value)
		if err != nil {
			return nil, err
		}

		payload.Namespace = s
	}

	if value, ok := env[EnvKernelVolumes]; ok {
		volumes, err := listField[corev1.Volume](EnvKernelVolumes, value)
		if err != nil {
			return nil, err
		}

		payload.Volumes = volumes
	}

	if value, ok := env[EnvKernelVolumeMounts]; ok {
		mounts, err := listField[corev1.VolumeMount](EnvKernelVolumeMounts, value)
		if err != nil {
			return nil, err
		}

		payload.VolumeMounts = mounts
	}

	if value, ok := env[EnvKernelIdleTimeout]; ok {
		n, err := intField(EnvKernelIdleTimeout, value)
		if err != nil {
			return nil, err
		}

		payload.IdleTimeout = n
	}

	if value, ok := env[EnvKernelImage]; ok {
		s, err := stringField(EnvKernelImage, value)
		if err != nil {
			return nil, err
		}

		payload.Image = s
	}

	if value, ok := env[EnvKernelLanguage]; ok {
		s, err := stringField(EnvKernelLanguage, value)
		if err != nil {
			return nil, err
		}

		payload.Language = s
	}

	if value, ok := env[EnvKernelUsername]; ok {
		s, err := stringField(EnvKernelUsername, value)
		if err != nil {
			return nil, err
		}

		payload.Username = s
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}

// stringField coerces a payload field that must be textual.
func stringField(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidPayload, key, value)
	}

	return s, nil
}

// intField coerces a payload field that may arrive as a JSON number or as a
// numeric string.
func intField(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not numeric: %s", ErrInvalidPayload, key, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidPayload, key, value)
	}
}

// listField coerces a payload field that may arrive structured or as a JSON
// encoded string of a list.  Anything that doesn't decode into a list is
// rejected.
func listField[T any](key string, value any) ([]T, error) {
	var raw []byte

	switch v := value.(type) {
	case string:
		raw = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not encodable: %s", ErrInvalidPayload, key, err)
		}

		raw = encoded
	}

	var out []T

	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s must be a list: %s", ErrInvalidPayload, key, err)
	}

	return out, nil
}

// Kernel is the payload as observed from the cluster, augmented with the
// derived name, readiness and activity bookkeeping.
type Kernel struct {
	Payload

	// Name is the kernel resource name, derived from the spec name and
	// kernel ID at creation.
	Name string `json:"kernel_name"`

	// LastActivityTime is ISO-8601 UTC, sourced from the activity
	// annotation maintained by the kernel controller, falling back to
	// the resource creation timestamp.
	LastActivityTime string `json:"kernel_last_activity_time"`

	// Ready indicates the kernel pod is running and connectable.
	Ready bool `json:"ready"`

	// Connections is the number of attached clients.  Connection
	// tracking lives with the channel bridge, not the control plane, so
	// this is always zero here.
	Connections int `json:"kernel_connections"`
}
