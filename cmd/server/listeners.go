// Copyright 2024 Google, LLC
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

// Package main contains the logic for starting the Pub/Sub pull listeners.
// Push delivery to the webhook is the primary trigger; pull subscriptions
// are an alternative for environments where the service cannot accept
// inbound HTTP from Pub/Sub.
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/workflow"
)

// SetupListeners attaches the detection workflow to every configured topic
// listener and starts them. A deployment with no [topics] config entries
// runs webhook-only.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients, detection *workflow.MomentDetectionWorkflow) {
	for name, listener := range cloudClients.PubSubListeners {
		listener.SetCommand(detection)
		listener.Listen(ctx)
		slog.Info("started pub/sub listener", "topic", name)
	}
}
