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

// Package cmd implements the kernelctl command line tool.  It talks
// directly to the Kubernetes API with the same client the server uses, so
// it works even when the HTTP API is down or unreachable.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/eschercloudai/kernelmanager/pkg/constants"
	"github.com/eschercloudai/kernelmanager/pkg/kernel"
	clientutil "github.com/eschercloudai/kernelmanager/pkg/util/client"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// options are flags shared by every subcommand.
type options struct {
	// kernelOptions say where the kernel resources live.
	kernelOptions kernel.Options

	// namespace scopes operations to a single namespace, empty means all.
	namespace string
}

// manager builds a kernel manager from the shared flags.
func (o *options) manager(ctx context.Context) (*kernel.Manager, error) {
	gv := schema.GroupVersion{Group: o.kernelOptions.Group, Version: o.kernelOptions.Version}

	client, err := clientutil.New(ctx, gv)
	if err != nil {
		return nil, err
	}

	return kernel.NewManager(kernel.NewClient(client, &o.kernelOptions)), nil
}

// newRootCommand returns the root command and all its subordinates.
func newRootCommand() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           constants.Application,
		Short:         "Jupyter kernel management.",
		Long:          "Inspect and manage Jupyter kernels running as Kubernetes custom resources.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	o.kernelOptions.AddFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVarP(&o.namespace, "namespace", "n", "", "Namespace to operate in, all namespaces when unset.")

	commands := []*cobra.Command{
		newVersionCommand(),
		newGetCommand(o),
		newCreateCommand(o),
		newDeleteCommand(o),
		newWaitCommand(o),
	}

	cmd.AddCommand(commands...)

	return cmd
}

// Generate creates a hierarchy of cobra commands for the application.
func Generate() *cobra.Command {
	return newRootCommand()
}
