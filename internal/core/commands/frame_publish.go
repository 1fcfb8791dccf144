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
// command that uploads the extracted frame to the output bucket. The frame
// upload is optional twice over: it only runs when an output bucket is
// configured, and an upload failure leaves the positive detection intact
// with frame_saved reported as false.
package commands

import (
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/services"
)

// FrameSignedURLTTL is how long a signed frame URL stays valid.
const FrameSignedURLTTL = 24 * time.Hour

// FramePublish uploads the extracted PNG to the output bucket and, when a
// signer is configured, attaches a signed URL to the outcome.
type FramePublish struct {
	cor.BaseCommand
	uploader   cloud.ObjectUploader
	bucket     string
	detections *services.DetectionService
}

// NewFramePublish is the constructor for the FramePublish command. The
// detection service may be nil, in which case no signed URL is produced.
func NewFramePublish(name string, uploader cloud.ObjectUploader, bucket string, detections *services.DetectionService) *FramePublish {
	return &FramePublish{
		BaseCommand: *cor.NewBaseCommand(name),
		uploader:    uploader,
		bucket:      bucket,
		detections:  detections,
	}
}

// IsExecutable requires a positive detection, an extracted frame, and a
// configured output bucket.
func (c *FramePublish) IsExecutable(context cor.Context) bool {
	outcome := getOutcome(context)
	return c.uploader != nil && c.bucket != "" &&
		outcome != nil && outcome.Detected &&
		context.Get(GetFramePathParameterName()) != nil
}

// Execute uploads the frame. Failures are logged and leave FrameSaved false;
// the detection result itself is unaffected.
func (c *FramePublish) Execute(context cor.Context) {
	framePath := context.Get(GetFramePathParameterName()).(string)
	outcome := getOutcome(context)

	f, err := os.Open(framePath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.Warn("failed to open extracted frame", "path", framePath, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	if err := c.uploader.Upload(context.GetContext(), c.bucket, outcome.FrameName, "image/png", f); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.Warn("failed to upload frame",
			"bucket", c.bucket,
			"object", outcome.FrameName,
			"error", err)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	outcome.FrameSaved = true
	slog.Info("uploaded frame", "bucket", c.bucket, "object", outcome.FrameName)

	// Best effort: the response is still complete without a signed URL.
	if c.detections != nil {
		url, err := c.detections.SignFrameURL(context.GetContext(), c.bucket, outcome.FrameName, FrameSignedURLTTL)
		if err != nil {
			slog.Warn("failed to sign frame url", "object", outcome.FrameName, "error", err)
		} else {
			outcome.FrameURL = url
		}
	}

	context.Add(c.GetOutputParam(), outcome.FrameName)
}
