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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// entry command of the detection workflow: it decodes the storage event
// payload, whether delivered directly by Eventarc or wrapped in a Pub/Sub
// push envelope, into a StorageObject for the rest of the chain.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
)

// EventToStorageObject parses an object-creation event into a StorageObject.
type EventToStorageObject struct {
	cor.BaseCommand
}

// NewEventToStorageObject is the constructor for the EventToStorageObject command.
func NewEventToStorageObject(name string) *EventToStorageObject {
	return &EventToStorageObject{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute decodes the raw event payload from the input parameter. A payload
// from which no bucket and object name can be recovered is a hard error that
// stops the chain; the error wraps cloud.ErrMissingBucketOrName so the HTTP
// layer can map it to a 400.
func (c *EventToStorageObject) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	obj, err := cloud.DecodeStorageEvent([]byte(in))
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to decode storage event: %w", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)

	if outcome := getOutcome(context); outcome != nil {
		outcome.Bucket = obj.Bucket
		outcome.Object = obj.Name
	}

	context.Add(cloud.GetStorageObjectName(), obj)
	context.Add(c.GetOutputParam(), obj)
}

// getOutcome returns the run's shared DetectionOutcome, or nil when the
// workflow was started without one.
func getOutcome(context cor.Context) *model.DetectionOutcome {
	outcome, _ := context.Get(model.GetDetectionOutcomeName()).(*model.DetectionOutcome)
	return outcome
}
