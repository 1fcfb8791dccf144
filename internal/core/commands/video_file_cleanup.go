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
// final command of the detection chain, which deletes the uploaded video
// from the Files API. Local temp files are cleaned up separately when the
// chain context closes.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"google.golang.org/genai"
)

// VideoFileCleanup removes the remote video handle once the run is over.
type VideoFileCleanup struct {
	cor.BaseCommand
	files cloud.FileService
}

// NewVideoFileCleanup is the constructor for the VideoFileCleanup command.
func NewVideoFileCleanup(name string, files cloud.FileService) *VideoFileCleanup {
	return &VideoFileCleanup{
		BaseCommand: *cor.NewBaseCommand(name),
		files:       files,
	}
}

// IsExecutable requires an uploaded file to delete.
func (c *VideoFileCleanup) IsExecutable(context cor.Context) bool {
	return c.files != nil && context != nil &&
		context.Get(GetRemoteFileParameterName()) != nil
}

// Execute deletes the remote file. A failed delete is only logged; the file
// expires on the backend anyway.
func (c *VideoFileCleanup) Execute(context cor.Context) {
	file := context.Get(GetRemoteFileParameterName()).(*genai.File)

	if err := c.files.Delete(context.GetContext(), file.Name); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.Warn("failed to delete remote video file", "name", file.Name, "error", err)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("deleted remote video file", "name", file.Name)
}
