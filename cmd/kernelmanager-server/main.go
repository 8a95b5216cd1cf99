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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/eschercloudai/kernelmanager/pkg/constants"
	"github.com/eschercloudai/kernelmanager/pkg/server"
	clientutil "github.com/eschercloudai/kernelmanager/pkg/util/client"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/klog/v2"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// shutdownGracePeriod is how long in-flight requests get to drain on
// termination before the listener is torn down under them.
const shutdownGracePeriod = 30 * time.Second

// main is the entry point to the server.
func main() {
	s := &server.Server{}

	// LOG_LEVEL is the conventional knob in the deployment environment,
	// flags can still override it.
	if level, err := zapcore.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil {
		s.ZapOptions.Level = level
	}

	s.AddFlags(flag.CommandLine, pflag.CommandLine)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	// Get logging going first, log sinks will expect JSON formatted
	// output for everything, client-go included.
	s.SetupLogging()
	klog.SetLogger(log.Log)

	logger := log.Log.WithName(constants.Application)

	logger.Info("service starting", "application", constants.Application, "version", constants.Version, "revision", constants.Revision)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.SetupOpenTelemetry(ctx); err != nil {
		logger.Error(err, "opentelemetry setup failed")
		os.Exit(1)
	}

	gv := schema.GroupVersion{Group: s.KernelOptions.Group, Version: s.KernelOptions.Version}

	client, err := clientutil.New(ctx, gv)
	if err != nil {
		logger.Error(err, "kubernetes client initialization failed")
		os.Exit(1)
	}

	httpServer, err := s.GetServer(ctx, client)
	if err != nil {
		logger.Error(err, "server initialization failed")
		os.Exit(1)
	}

	errch := make(chan error)

	go func() {
		errch <- httpServer.ListenAndServe()
	}()

	logger.Info("listening", "address", httpServer.Addr)

	select {
	case err := <-errch:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "server died unexpectedly")
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "server shutdown failed")
			os.Exit(1)
		}
	}
}
