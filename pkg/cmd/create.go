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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"
)

// createOptions hold command specific flags.
type createOptions struct {
	// env are raw KERNEL_* environment assignments.
	env []string

	// wait blocks until the kernel reports ready.
	wait bool

	// waitTimeout bounds the readiness wait.
	waitTimeout time.Duration
}

// newCreateCommand creates a kernel.
func newCreateCommand(o *options) *cobra.Command {
	createOpts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create [spec-name]",
		Short: "Create a kernel.",
		Long:  "Create a kernel from the named specification, defaulting to python.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env := map[string]any{}

			for _, assignment := range createOpts.env {
				key, value, ok := strings.Cut(assignment, "=")
				if !ok {
					return fmt.Errorf("%w: malformed environment assignment %q", kernel.ErrInvalidPayload, assignment)
				}

				env[key] = value
			}

			if len(args) == 1 {
				env[kernel.EnvKernelSpecName] = args[0]
			}

			if o.namespace != "" {
				if _, ok := env[kernel.EnvKernelNamespace]; !ok {
					env[kernel.EnvKernelNamespace] = o.namespace
				}
			}

			payload, err := kernel.PayloadFromEnv(env)
			if err != nil {
				return err
			}

			manager, err := o.manager(ctx)
			if err != nil {
				return err
			}

			result, err := manager.Start(ctx, payload, createOpts.wait, createOpts.waitTimeout)
			if err != nil {
				return err
			}

			fmt.Println(result.KernelID)

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&createOpts.env, "env", "e", nil, "Kernel environment assignment e.g. KERNEL_ID=..., may be specified more than once.")
	cmd.Flags().BoolVar(&createOpts.wait, "wait", true, "Wait for the kernel to become ready.")
	cmd.Flags().DurationVar(&createOpts.waitTimeout, "wait-timeout", time.Minute, "How long to wait for the kernel to become ready.")

	return cmd
}
