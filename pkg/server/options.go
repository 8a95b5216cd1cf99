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

package server

import (
	"time"

	"github.com/spf13/pflag"
)

// Options allows server options to be overridden.
type Options struct {
	// Port is the port the API listens on.
	Port int

	// ReadTimeout defines how long before we give up on the client,
	// this should be fairly short.
	ReadTimeout time.Duration

	// ReadHeaderTimeout defines how long before we give up on the client,
	// this should be fairly short.
	ReadHeaderTimeout time.Duration

	// WriteTimeout defines how long we take to respond before we give up.
	// Kernel creation waits for the kernel to come up, so this has to
	// comfortably exceed the readiness wait.
	WriteTimeout time.Duration

	// RequestTimeout places a hard limit on all request lengths.  The
	// same creation wait applies.
	RequestTimeout time.Duration

	// OTLPEndpoint defines whether to ship spans to an OTLP consumer or
	// not, and where to send them to.
	OTLPEndpoint string

	// CORSAllowOrigins are the origins CORS headers admit.
	CORSAllowOrigins []string

	// ChannelsPort is the port the kernel side websocket terminator
	// listens on, for the channels proxy.
	ChannelsPort int
}

// AddFlags allows server options to be modified.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.IntVar(&o.Port, "port", 8888, "API listener port.")
	f.DurationVar(&o.ReadTimeout, "server-read-timeout", time.Second, "How long to wait for the client to send the request body.")
	f.DurationVar(&o.ReadHeaderTimeout, "server-read-header-timeout", time.Second, "How long to wait for the client to send headers.")
	f.DurationVar(&o.WriteTimeout, "server-write-timeout", 90*time.Second, "How long to wait for the API to respond to the client.")
	f.DurationVar(&o.RequestTimeout, "server-request-timeout", 80*time.Second, "How long to wait for a request to be serviced.")
	f.StringVar(&o.OTLPEndpoint, "otlp-endpoint", "", "An optional OTLP endpoint to ship spans to.")
	f.StringSliceVar(&o.CORSAllowOrigins, "cors-allow-origin", []string{"*"}, "An origin to allow cross origin requests from.  May be specified more than once.")
	f.IntVar(&o.ChannelsPort, "channels-upstream-port", 8888, "Port the kernel side websocket endpoint listens on.")
}
