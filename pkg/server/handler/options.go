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

package handler

import (
	"time"

	"github.com/spf13/pflag"
)

// Options defines configurable handler options.
type Options struct {
	// Namespace, when set, is stamped onto create requests that don't
	// name one themselves.
	Namespace string

	// Image, when set, is stamped onto create requests that don't name
	// one themselves.
	Image string

	// WaitTimeout is how long a create waits for its kernel to become
	// ready.  Keep it below the server write timeout or clients see the
	// connection die rather than the timeout error.
	WaitTimeout time.Duration
}

// AddFlags adds the options flags to the given flag set.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&o.Namespace, "kernel-namespace", "", "Namespace to create kernels in when the request doesn't specify one.")
	f.StringVar(&o.Image, "kernel-image", "", "Kernel image to use when the request doesn't specify one.")
	f.DurationVar(&o.WaitTimeout, "kernel-wait-timeout", time.Minute, "How long to wait for a created kernel to become ready.")
}
