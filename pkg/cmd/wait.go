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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eschercloudai/kernelmanager/pkg/readiness"
)

// waitOptions hold command specific flags.
type waitOptions struct {
	// timeout bounds the wait.
	timeout time.Duration
}

// newWaitCommand waits for kernels to become ready.
func newWaitCommand(o *options) *cobra.Command {
	waitOpts := &waitOptions{}

	cmd := &cobra.Command{
		Use:   "wait kernel-id...",
		Short: "Wait for kernels to become ready.",
		Long:  "Wait for the named kernels to reach the running phase.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), waitOpts.timeout)
			defer cancel()

			manager, err := o.manager(ctx)
			if err != nil {
				return err
			}

			for _, kernelID := range args {
				check := readiness.NewRetry(readiness.NewKernel(manager.Client(), kernelID, o.namespace))

				if err := check.Check(ctx); err != nil {
					return err
				}

				fmt.Println(kernelID)
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&waitOpts.timeout, "timeout", 5*time.Minute, "How long to wait before giving up.")

	return cmd
}
