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
// command that downloads the source video from GCS to a local temporary
// file, bridging the event-driven workflow to local tools like ffmpeg.
package commands

import (
	"fmt"
	"log"
	"os"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
)

// GetLocalVideoParameterName returns the context key holding the local path
// of the downloaded video.
func GetLocalVideoParameterName() string {
	return "__LOCAL_VIDEO_FILE__"
}

// GCSToTempFile downloads a storage object into a local temporary file.
type GCSToTempFile struct {
	cor.BaseCommand
	downloader     cloud.ObjectDownloader
	tempFilePrefix string
}

// NewGCSToTempFile is the constructor for the GCSToTempFile command.
func NewGCSToTempFile(name string, downloader cloud.ObjectDownloader, tempFilePrefix string) *GCSToTempFile {
	return &GCSToTempFile{
		BaseCommand:    *cor.NewBaseCommand(name),
		downloader:     downloader,
		tempFilePrefix: tempFilePrefix,
	}
}

// IsExecutable additionally requires a downloader; without a storage client
// the command is skipped.
func (c *GCSToTempFile) IsExecutable(context cor.Context) bool {
	return c.downloader != nil && c.BaseCommand.IsExecutable(context)
}

// Execute streams the object to a temp file. The file is registered for
// cleanup before the download starts, so a partial download is still removed
// when the context closes. A download failure is a hard error.
func (c *GCSToTempFile) Execute(context cor.Context) {
	msg := context.Get(c.GetInputParam()).(*cloud.StorageObject)

	tempFile, err := os.CreateTemp("", c.tempFilePrefix)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create temp file: %w", err))
		return
	}
	context.AddTempFile(tempFile.Name())

	written, err := c.downloader.Download(context.GetContext(), msg.Bucket, msg.Name, tempFile)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		log.Printf("failed to copy GCS object to local file, %d bytes written: %v\n", written, err)
		context.AddError(c.GetName(), err)
		_ = tempFile.Close()
		return
	}
	_ = tempFile.Close()

	// Events do not always carry a content type; sniff it from the bytes so
	// the Files API upload gets a usable MIME type.
	if msg.MIMEType == "" {
		if kind, err := filetype.MatchFile(tempFile.Name()); err == nil && kind != filetype.Unknown {
			msg.MIMEType = kind.MIME.Value
		} else {
			msg.MIMEType = "video/mp4"
		}
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	log.Printf("downloaded gs://%s/%s to local file %s (%d bytes)", msg.Bucket, msg.Name, tempFile.Name(), written)

	context.Add(GetLocalVideoParameterName(), tempFile.Name())
	context.Add(c.GetOutputParam(), tempFile.Name())
}
