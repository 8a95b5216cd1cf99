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

// Package channels bridges client websockets onto kernel channel endpoints.
// The bridge never interprets kernel messages, framing and protocol belong
// to whatever terminates the kernel side of the connection.
package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Connection is a live bridge between a client websocket and a kernel.  Run
// pumps frames until either side goes away.
type Connection interface {
	// Run blocks, relaying traffic, until the connection dies or the
	// context is cancelled.
	Run(ctx context.Context) error
}

// Preparer is an optional connection hook, run after connect and before the
// pump loop.
type Preparer interface {
	// Prepare performs any pre-traffic handshaking.
	Prepare(ctx context.Context) error
}

// Connector establishes the upstream side of a bridge.  The kernel view
// carries the connection info, the websocket is the client peer, and the
// session ID propagates the Jupyter session identity upstream.
type Connector interface {
	// Connect builds a connection for the given kernel and client.
	Connect(ctx context.Context, k *kernel.Kernel, client *websocket.Conn, sessionID string) (Connection, error)
}

// upgrader promotes HTTP requests to websockets.  Origin policy is enforced
// by the CORS middleware, not here.
//
//nolint:gochecknoglobals
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve resolves the kernel and hands the request over to the connector.
// Pre-upgrade failures render as plain text, not the JSON envelope: the
// client asked for a protocol upgrade, error pages are best kept dumb.
func Serve(w http.ResponseWriter, r *http.Request, manager *kernel.Manager, connector Connector, kernelID string) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	k, err := manager.Get(ctx, kernelID, "")
	if err != nil {
		if errors.Is(err, kernel.ErrKernelNotFound) {
			http.Error(w, fmt.Sprintf("Kernel not found: %s", kernelID), http.StatusNotFound)

			return
		}

		logger.Error(err, "kernel resolution failed", "kernelID", kernelID)

		http.Error(w, fmt.Sprintf("Get kernel error: %s", kernelID), http.StatusInternalServerError)

		return
	}

	if k == nil {
		http.Error(w, fmt.Sprintf("Kernel not ready: %s", kernelID), http.StatusInternalServerError)

		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		logger.Info("no session ID specified", "kernelID", kernelID)
	}

	client, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own response.
		logger.Error(err, "websocket upgrade failed", "kernelID", kernelID)

		return
	}

	defer client.Close()

	connection, err := connector.Connect(ctx, k, client, sessionID)
	if err != nil {
		logger.Error(err, "upstream connect failed", "kernelID", kernelID)

		return
	}

	if preparer, ok := connection.(Preparer); ok {
		if err := preparer.Prepare(ctx); err != nil {
			logger.Error(err, "connection prepare failed", "kernelID", kernelID)

			return
		}
	}

	if err := connection.Run(ctx); err != nil {
		logger.Info("channel connection closed", "kernelID", kernelID, "error", err)
	}
}
