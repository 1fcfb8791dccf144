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

// Package cor (Chain of Responsibility) provides the building blocks for
// creating workflows. This file defines BaseCommand, which concrete commands
// embed to inherit naming, OpenTelemetry instrumentation, and the default
// input/output parameter handling the chain's piping relies on.
package cor

import (
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MeterNamespace is the shared namespace for all command metrics.
const MeterNamespace = "github.com/jaycherian/gcp-go-moment-detect"

// BaseCommand is the default implementation of the Command interface.
type BaseCommand struct {
	Name            string              // Unique name, used for tracing and metrics.
	InputParamName  string              // Context key for the primary input; defaults to CtxIn.
	OutputParamName string              // Context key for the primary output; defaults to CtxOut.
	Tracer          trace.Tracer
	Meter           metric.Meter
	SuccessCounter  metric.Int64Counter
	ErrorCounter    metric.Int64Counter
}

// NewBaseCommand creates a command with success and error counters registered
// under the shared meter namespace.
func NewBaseCommand(name string) *BaseCommand {
	meter := otel.Meter(MeterNamespace)

	successCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.success", name))
	if err != nil {
		log.Printf("error creating success counter for command '%s': %v\n", name, err)
	}
	errorCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		log.Printf("error creating error counter for command '%s': %v\n", name, err)
	}

	return &BaseCommand{
		Name:           name,
		Tracer:         otel.Tracer(name),
		Meter:          meter,
		SuccessCounter: successCounter,
		ErrorCounter:   errorCounter,
	}
}

// GetName returns the name of the command.
func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable is the default precondition check: the context is valid and
// the command's input parameter is present.
func (c *BaseCommand) IsExecutable(context Context) bool {
	return context != nil && context.Get(c.GetInputParam()) != nil && context.GetContext() != nil
}

// GetInputParam returns the input key, defaulting to CtxIn so the chain can
// pipe the previous command's output in.
func (c *BaseCommand) GetInputParam() string {
	if len(c.InputParamName) == 0 {
		return CtxIn
	}
	return c.InputParamName
}

// GetOutputParam returns the output key, defaulting to CtxOut.
func (c *BaseCommand) GetOutputParam() string {
	if len(c.OutputParamName) == 0 {
		return CtxOut
	}
	return c.OutputParamName
}

// GetTracer returns the OpenTelemetry Tracer for this command.
func (c *BaseCommand) GetTracer() trace.Tracer {
	return c.Tracer
}

// GetMeter returns the OpenTelemetry Meter for this command.
func (c *BaseCommand) GetMeter() metric.Meter {
	return c.Meter
}

// GetSuccessCounter returns the success metric counter for this command.
func (c *BaseCommand) GetSuccessCounter() metric.Int64Counter {
	return c.SuccessCounter
}

// GetErrorCounter returns the error metric counter for this command.
func (c *BaseCommand) GetErrorCounter() metric.Int64Counter {
	return c.ErrorCounter
}
