// Copyright 2024 The xline-operator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package process

import (
	"bytes"
	"context"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// InContainer starts and kills xline by invoking the platform's pod-exec
// API against an already-running container, for the
// "--backend=in-container,pod=…,container=…,namespace=…" CLI variant. The
// container's entrypoint is expected to block until killed, matching
// kubectl exec semantics: Start blocks on the exec stream, so it runs in a
// background goroutine and Running reflects whether that goroutine is live.
type InContainer struct {
	client    kubernetes.Interface
	config    *restclient.Config
	namespace string
	pod       string
	container string
	command   []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewInContainer returns a Handle that execs command inside container of
// pod/namespace using client and config.
func NewInContainer(client kubernetes.Interface, config *restclient.Config, namespace, pod, container string, command []string) *InContainer {
	return &InContainer{
		client:    client,
		config:    config,
		namespace: namespace,
		pod:       pod,
		container: container,
		command:   command,
	}
}

func (h *InContainer) membersCommand(members map[string]string) []string {
	return append(append([]string{}, h.command...), "--members", membersArg(members))
}

// Start implements Handle. Starting when already started stops and
// restarts, matching the Local variant's idempotence contract.
func (h *InContainer) Start(ctx context.Context, members map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		h.stopLocked()
	}

	req := h.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(h.pod).
		Namespace(h.namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: h.container,
			Command:   h.membersCommand(members),
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(h.config, "POST", req.URL())
	if err != nil {
		return processFailure(err, "building exec stream for pod %s/%s", h.namespace, h.pod)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true

	go func() {
		var stdout, stderr bytes.Buffer
		_ = exec.StreamWithContext(runCtx, remotecommand.StreamOptions{Stdout: &stdout, Stderr: &stderr})
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()
	return nil
}

// Kill implements Handle.
func (h *InContainer) Kill(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	return nil
}

func (h *InContainer) stopLocked() {
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = nil
	h.running = false
}

// Running implements Handle.
func (h *InContainer) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}
