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

package channels

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/eschercloudai/kernelmanager/pkg/kernel"
)

// ProxyConnector dials a websocket terminator running alongside the kernel
// and relays frames verbatim.  Deployments that bridge straight onto the
// kernel's ZMQ sockets implement Connector themselves, the contract doesn't
// care what's on the far side.
type ProxyConnector struct {
	// port the kernel side websocket listens on.
	port int
}

// Ensure the Connector interface is implemented.
var _ Connector = &ProxyConnector{}

// NewProxyConnector returns a connector that dials the given kernel pod port.
func NewProxyConnector(port int) *ProxyConnector {
	return &ProxyConnector{
		port: port,
	}
}

// Connect implements the Connector interface.  The kernel status IP is
// authoritative, the wildcard address in the connection config is what the
// kernel binds, not where it's reachable.
func (c *ProxyConnector) Connect(ctx context.Context, k *kernel.Kernel, client *websocket.Conn, sessionID string) (Connection, error) {
	endpoint := url.URL{
		Scheme: "ws",
		Host:   fmt.Sprintf("%s:%d", k.ConnectionInfo.IP, c.port),
		Path:   fmt.Sprintf("/api/kernels/%s/channels", k.KernelID),
	}

	if sessionID != "" {
		endpoint.RawQuery = url.Values{"session_id": []string{sessionID}}.Encode()
	}

	upstream, response, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream dial %s: %w", endpoint.String(), err)
	}

	if response != nil && response.Body != nil {
		response.Body.Close()
	}

	return &proxyConnection{client: client, upstream: upstream}, nil
}

// proxyConnection relays frames between a client and an upstream websocket.
type proxyConnection struct {
	// client is the caller's websocket.
	client *websocket.Conn

	// upstream is the kernel side websocket.
	upstream *websocket.Conn
}

// Ensure the Connection interface is implemented.
var _ Connection = &proxyConnection{}

// relay copies frames in one direction until the source dies.
func relay(src, dst *websocket.Conn) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			return err
		}
	}
}

// Run implements the Connection interface.  Teardown of either side tears
// down the pair.
func (c *proxyConnection) Run(ctx context.Context) error {
	defer c.upstream.Close()
	defer c.client.Close()

	group, _ := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer c.upstream.Close()

		return relay(c.client, c.upstream)
	})

	group.Go(func() error {
		defer c.client.Close()

		return relay(c.upstream, c.client)
	})

	return group.Wait()
}
