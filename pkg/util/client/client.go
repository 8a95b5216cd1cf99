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

package client

import (
	"context"
	"fmt"

	jupyterv1 "github.com/eschercloudai/kernelmanager/pkg/apis/jupyter/v1"
	"github.com/eschercloudai/kernelmanager/pkg/kernel"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// NewConfig derives a Kubernetes REST configuration.  In-cluster service
// account credentials are preferred, a kubeconfig resolved with the default
// loading rules is the fallback for running outside the cluster.  Both
// failing collapses into the one configuration error.
func NewConfig(ctx context.Context) (*rest.Config, error) {
	config, inClusterErr := rest.InClusterConfig()
	if inClusterErr == nil {
		return config, nil
	}

	log.FromContext(ctx).Info("not running in-cluster, falling back to kubeconfig")

	rules := clientcmd.NewDefaultClientConfigLoadingRules()

	config, kubeconfigErr := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if kubeconfigErr != nil {
		return nil, fmt.Errorf("%w: in-cluster: %s, kubeconfig: %s", kernel.ErrConfiguration, inClusterErr, kubeconfigErr)
	}

	return config, nil
}

// NewScheme returns a scheme that knows about Kubernetes and kernel resource
// types.  The kernel group and version are parameters because the CRD flavour
// is deployment specific.
func NewScheme(gv schema.GroupVersion) (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()

	if err := kubernetesscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}

	if err := jupyterv1.NewSchemeBuilder(gv).AddToScheme(scheme); err != nil {
		return nil, err
	}

	return scheme, nil
}

// New returns a new controller runtime client for typed kernel operation.
func New(ctx context.Context, gv schema.GroupVersion) (client.Client, error) {
	config, err := NewConfig(ctx)
	if err != nil {
		return nil, err
	}

	scheme, err := NewScheme(gv)
	if err != nil {
		return nil, err
	}

	return client.New(config, client.Options{Scheme: scheme})
}
