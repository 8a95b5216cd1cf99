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
	"context"
	"flag"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"
	"github.com/eschercloudai/kernelmanager/pkg/server/channels"
	"github.com/eschercloudai/kernelmanager/pkg/server/handler"
	"github.com/eschercloudai/kernelmanager/pkg/server/middleware"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

type Server struct {
	// Options are server specific options e.g. listener port etc.
	Options Options

	// ZapOptions configure logging.
	ZapOptions zap.Options

	// HandlerOptions sets options for the HTTP handler.
	HandlerOptions handler.Options

	// KernelOptions sets options for the kernel client.
	KernelOptions kernel.Options

	// IdentityOptions sets options for the identity middleware, read
	// from the environment.
	IdentityOptions *middleware.IdentityOptions
}

func (s *Server) AddFlags(goflags *flag.FlagSet, flags *pflag.FlagSet) {
	s.ZapOptions.BindFlags(goflags)

	s.Options.AddFlags(flags)
	s.HandlerOptions.AddFlags(flags)
	s.KernelOptions.AddFlags(flags)
}

func (s *Server) SetupLogging() {
	log.SetLogger(zap.New(zap.UseFlagOptions(&s.ZapOptions)))
}

// SetupOpenTelemetry adds a span processor that will print root spans to the
// logs by default, and optionally ship the spans to an OTLP listener.
func (s *Server) SetupOpenTelemetry(ctx context.Context) error {
	otel.SetLogger(log.Log)

	opts := []trace.TracerProviderOption{
		trace.WithSpanProcessor(&middleware.LoggingSpanProcessor{}),
	}

	if s.Options.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(s.Options.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)

		if err != nil {
			return err
		}

		opts = append(opts, trace.WithBatcher(exporter))
	}

	otel.SetTracerProvider(trace.NewTracerProvider(opts...))

	return nil
}

// GetServer assembles the HTTP server around an initialized Kubernetes
// client.  The client is injected so tests can substitute a fake.
func (s *Server) GetServer(ctx context.Context, client client.Client) (*http.Server, error) {
	if s.IdentityOptions == nil {
		s.IdentityOptions = middleware.NewIdentityOptionsFromEnvironment()
	}

	kernelClient := kernel.NewClient(client, &s.KernelOptions)
	manager := kernel.NewManager(kernelClient)
	connector := channels.NewProxyConnector(s.Options.ChannelsPort)

	handlerInterface, err := handler.New(ctx, manager, connector, &s.HandlerOptions)
	if err != nil {
		return nil, err
	}

	// Middleware specified here is applied to all requests pre-routing.
	router := chi.NewRouter()
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Timeout(s.Options.RequestTimeout))
	router.Use(middleware.CORS(s.Options.CORSAllowOrigins))
	router.Use(middleware.NoCSP())
	router.Use(middleware.Metrics())
	router.NotFound(http.HandlerFunc(handler.NotFound))
	router.MethodNotAllowed(http.HandlerFunc(handler.MethodNotAllowed))

	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	handlerInterface.AddRoutes(router, middleware.Identity(s.IdentityOptions))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Options.Port),
		ReadTimeout:       s.Options.ReadTimeout,
		ReadHeaderTimeout: s.Options.ReadHeaderTimeout,
		WriteTimeout:      s.Options.WriteTimeout,
		Handler:           router,
	}

	return server, nil
}
