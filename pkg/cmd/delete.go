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
	"github.com/spf13/cobra"
)

// deleteOptions hold command specific flags.
type deleteOptions struct {
	// all deletes every kernel in scope rather than named ones.
	all bool
}

// newDeleteCommand deletes kernels by ID.
func newDeleteCommand(o *options) *cobra.Command {
	deleteOpts := &deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete [kernel-id...]",
		Short: "Delete kernels.",
		Long:  "Delete the named kernels, or every kernel in scope with --all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			manager, err := o.manager(ctx)
			if err != nil {
				return err
			}

			if deleteOpts.all {
				return manager.ShutdownAll(ctx, o.namespace)
			}

			for _, kernelID := range args {
				if err := manager.Remove(ctx, kernelID, o.namespace); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteOpts.all, "all", false, "Delete all kernels in scope.")

	return cmd
}
