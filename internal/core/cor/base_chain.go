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
// creating workflows. This file defines BaseChain, which executes its
// commands in order inside per-command trace spans, stops at the first
// recorded error unless configured otherwise, and pipes each command's CtxOut
// into the next command's CtxIn.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

// NewBaseChain creates an empty chain with the given name.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure configures whether the chain keeps running commands after
// one records an error.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends a command to the execution sequence.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable requires only that a Go context is attached.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs the chain's commands in order.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		if chCtx.HasErrors() && !c.continueOnFailure {
			commandSpan.SetStatus(codes.Error, "previous error on chain; skipping execution")
			commandSpan.End()
			break
		}

		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			// Reset to the chain's context so command spans stay siblings
			// rather than nesting under each other.
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		// Pipe CtxOut from the command that just ran into CtxIn for the next.
		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}
