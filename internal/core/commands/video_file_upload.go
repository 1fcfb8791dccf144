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
// command that uploads the local video to the Gemini Files API and waits,
// within a bounded deadline, for the backend to finish processing it.
//
// Upload failures never fail the request: the detector contract is that any
// internal failure after the download degrades to a "not detected" result.
package commands

import (
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"google.golang.org/genai"
)

// GetRemoteFileParameterName returns the context key holding the *genai.File
// handle of the uploaded video.
func GetRemoteFileParameterName() string {
	return "__REMOTE_VIDEO_FILE__"
}

// VideoFileUpload pushes the local video to the Files API and polls until the
// file is ACTIVE, the backend reports failure, or the deadline passes.
type VideoFileUpload struct {
	cor.BaseCommand
	files        cloud.FileService
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewVideoFileUpload is the constructor for the VideoFileUpload command.
func NewVideoFileUpload(name string, files cloud.FileService, pollInterval time.Duration, pollTimeout time.Duration) *VideoFileUpload {
	return &VideoFileUpload{
		BaseCommand:  *cor.NewBaseCommand(name),
		files:        files,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

// IsExecutable additionally requires a file service; without a configured
// GenAI client the command is skipped and the run stays "not detected".
func (v *VideoFileUpload) IsExecutable(context cor.Context) bool {
	return v.files != nil && v.BaseCommand.IsExecutable(context)
}

// Execute uploads the file and polls its processing state. Every failure
// path records a reason on the outcome instead of an error on the context.
func (v *VideoFileUpload) Execute(context cor.Context) {
	localPath := context.Get(v.GetInputParam()).(string)
	obj, _ := context.Get(cloud.GetStorageObjectName()).(*cloud.StorageObject)

	mimeType := "video/mp4"
	if obj != nil && obj.MIMEType != "" {
		mimeType = obj.MIMEType
	}

	f, err := os.Open(localPath)
	if err != nil {
		v.failSoft(context, "failed to open local video: "+err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	file, err := v.files.Upload(context.GetContext(), f, mimeType)
	if err != nil {
		v.failSoft(context, "file upload failed: "+err.Error())
		return
	}

	// Once the upload happened, every failure path must still delete the
	// remote handle; nothing downstream will see it.
	remoteName := file.Name
	deadline := time.Now().Add(v.pollTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			v.failSoft(context, "remote processing timeout after "+v.pollTimeout.String())
			v.deleteQuietly(context, remoteName)
			return
		}
		time.Sleep(v.pollInterval)
		file, err = v.files.Get(context.GetContext(), remoteName)
		if err != nil {
			v.failSoft(context, "failed to poll file state: "+err.Error())
			v.deleteQuietly(context, remoteName)
			return
		}
	}

	if file.State == genai.FileStateFailed {
		v.failSoft(context, "remote file processing failed: "+remoteName)
		v.deleteQuietly(context, remoteName)
		return
	}

	v.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetRemoteFileParameterName(), file)
	context.Add(v.GetOutputParam(), file)
}

// failSoft records the failure on the outcome and logs it. The chain keeps
// running so the response and persistence steps still execute.
func (v *VideoFileUpload) failSoft(context cor.Context, reason string) {
	v.GetErrorCounter().Add(context.GetContext(), 1)
	slog.Warn("video upload degraded to not-detected", "command", v.GetName(), "reason", reason)
	if outcome := getOutcome(context); outcome != nil {
		outcome.Detected = false
		outcome.FailureReason = reason
	}
}

// deleteQuietly removes a remote handle we will never use again.
func (v *VideoFileUpload) deleteQuietly(context cor.Context, name string) {
	if err := v.files.Delete(context.GetContext(), name); err != nil {
		slog.Warn("failed to delete remote file", "name", name, "error", err)
	}
}
