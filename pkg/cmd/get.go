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

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"

	"sigs.k8s.io/yaml"
)

// getOptions hold command specific flags.
type getOptions struct {
	// output selects the output format, table or yaml.
	output string
}

// printKernels renders kernels in the selected format.
func (o *getOptions) printKernels(kernels []*kernel.Kernel) error {
	if o.output == "yaml" {
		out, err := yaml.Marshal(kernels)
		if err != nil {
			return err
		}

		fmt.Print(string(out))

		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tNAME\tNAMESPACE\tREADY\tLAST ACTIVITY")

	for _, k := range kernels {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", k.KernelID, k.Name, k.Namespace, k.Ready, k.LastActivityTime)
	}

	return w.Flush()
}

// newGetCommand lists kernels, or gets specific ones by ID.
func newGetCommand(o *options) *cobra.Command {
	getOpts := &getOptions{}

	cmd := &cobra.Command{
		Use:   "get [kernel-id...]",
		Short: "Get running kernels.",
		Long:  "Get running kernels.  With no arguments all kernels are listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			manager, err := o.manager(ctx)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				kernels, err := manager.List(ctx, o.namespace)
				if err != nil {
					return err
				}

				return getOpts.printKernels(kernels)
			}

			kernels := make([]*kernel.Kernel, 0, len(args))

			for _, kernelID := range args {
				k, err := manager.Client().GetByID(ctx, kernelID, o.namespace)
				if err != nil {
					return err
				}

				kernels = append(kernels, k)
			}

			return getOpts.printKernels(kernels)
		},
	}

	cmd.Flags().StringVarP(&getOpts.output, "output", "o", "table", "Output format, one of table or yaml.")

	return cmd
}
