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
// expressing a workflow as an ordered sequence of commands that share a
// single context. This file defines the interfaces the framework is built on.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys the chain uses to pipe data between commands.
const (
	// CtxIn is the default key for a command's primary input. The chain
	// populates it with the previous command's output.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the shared state for one workflow execution. It carries data
// between commands, collects errors keyed by command name, and tracks
// temporary files so Close can remove them on every exit path.
type Context interface {
	// SetContext sets the Go context carrying cancellation and trace state.
	SetContext(context context.Context)

	// GetContext retrieves the Go context.
	GetContext() context.Context

	// Add stores a key-value pair and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error under the name of the command that produced it.
	AddError(key string, err error)

	// GetErrors returns all errors collected during the workflow.
	GetErrors() map[string]error

	// Get retrieves a value by key, or nil.
	Get(key string) interface{}

	// Remove deletes a key-value pair.
	Remove(key string)

	// HasErrors reports whether any command recorded an error.
	HasErrors() bool

	// AddTempFile registers a temporary file for cleanup.
	AddTempFile(file string)

	// GetTempFiles returns all registered temporary file paths.
	GetTempFiles() []string

	// Close removes every registered temporary file. Defer it at the start
	// of a workflow so cleanup runs on every path.
	Close()
}

// Executable is anything with a core execution step.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, testable unit of work within a chain.
type Command interface {
	Executable

	// GetName returns the command name used for logging and telemetry.
	GetName() string

	// GetInputParam returns the context key for the command's primary input.
	GetInputParam() string

	// GetOutputParam returns the context key for the command's primary output.
	GetOutputParam() string

	// IsExecutable reports whether the command's preconditions hold.
	IsExecutable(context Context) bool

	// GetTracer returns the command's OpenTelemetry tracer.
	GetTracer() trace.Tracer

	// GetMeter returns the command's OpenTelemetry meter.
	GetMeter() metric.Meter

	// GetSuccessCounter returns the counter incremented on success.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns the counter incremented on failure.
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands. A Chain is itself a Command, so
// chains nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps executing after a
	// command records an error. Default is to stop.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
