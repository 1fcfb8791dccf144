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

// Package cloud provides components for interacting with Google Cloud
// services. This file implements a generic Pub/Sub listener that feeds each
// received message into an attached workflow command. Messages are only
// acknowledged when the command chain completes without errors, so failed
// detections are redelivered under the subscription's retry policy.
package cloud

import (
	"context"
	"log"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener connects a Pub/Sub subscription to a processing command.
// Listeners have a life-cycle independent of individual HTTP requests, so
// they live in the cloud package rather than the server.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command // Executed once per received message.
}

// NewPubSubListener creates a listener for the given subscription ID. The
// command may be nil at construction time and attached later via SetCommand.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches the processing command. A command that is already set
// is never overwritten.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving messages in a background goroutine. Canceling ctx
// stops the receive loop.
func (m *PubSubListener) Listen(ctx context.Context) {
	log.Printf("listening: %s", m.subscription)

	go func() {
		tracer := otel.Tracer("message-listener")

		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(ctx, "receive-message")
			span.SetAttributes(attribute.String("msg", string(msg.Data)))

			chainCtx := cor.NewBaseContext()
			chainCtx.SetContext(spanCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))
			defer chainCtx.Close()

			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
			} else {
				span.SetStatus(codes.Error, "failed")
				for _, e := range chainCtx.GetErrors() {
					log.Printf("error executing chain: %v", e)
				}
				// No Ack or Nack: the message is redelivered after its
				// acknowledgement deadline expires.
			}

			span.End()
		})
		if err != nil {
			log.Printf("error receiving data: %v", err)
		}
	}()
}
