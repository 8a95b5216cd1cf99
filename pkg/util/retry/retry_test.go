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

package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eschercloudai/kernelmanager/pkg/util/retry"
)

var errNotYet = errors.New("not yet")

func TestRetrySucceeds(t *testing.T) {
	t.Parallel()

	attempts := 0

	callback := func() error {
		attempts++

		if attempts < 3 {
			return errNotYet
		}

		return nil
	}

	err := retry.WithTimeout(10 * time.Second).WithPeriod(10 * time.Millisecond).Do(callback)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryTimeout(t *testing.T) {
	t.Parallel()

	callback := func() error {
		return errNotYet
	}

	err := retry.WithTimeout(100 * time.Millisecond).WithPeriod(10 * time.Millisecond).Do(callback)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryCallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	callback := func() error {
		return errNotYet
	}

	err := retry.WithContext(context.Background()).WithPeriod(10 * time.Millisecond).DoWithContext(ctx, callback)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}
