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

package commands

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

// Drives the full command sequence with faked cloud services. The extraction
// step fails against the fake video, which must downgrade the run to a
// negative detection without recording a chain error, so persistence and
// cleanup still run.
func TestDetectionChainDegradesCleanly(t *testing.T) {
	files := &fakeFileService{states: []genai.FileState{genai.FileStateActive}}
	gen := &fakeContentGenerator{text: `{"second": 1.5}`}

	chain := cor.NewBaseChain("detection-chain-test")
	chain.AddCommand(NewEventToStorageObject("event-to-storage-object"))
	chain.AddCommand(NewGCSToTempFile("gcs-to-temp-file", &fakeDownloader{payload: []byte("fake video bytes")}, "chain-test-"))
	chain.AddCommand(NewVideoFileUpload("video-file-upload", files, time.Millisecond, time.Second))
	chain.AddCommand(NewMomentLocator("moment-locator", gen, "gemini-2.0-flash", momentTemplate(t)))
	chain.AddCommand(NewFrameExtract("frame-extract", "/nonexistent/ffmpeg", "/nonexistent/ffprobe"))
	chain.AddCommand(NewFramePublish("frame-publish", &fakeUploader{}, "kid-frames", nil))
	chain.AddCommand(NewVideoFileCleanup("video-file-cleanup", files))

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	outcome := model.NewDetectionOutcome()
	chainCtx.Add(model.GetDetectionOutcomeName(), outcome)
	chainCtx.Add(cor.CtxIn, `{"bucket": "kid-videos", "name": "clip.mp4", "contentType": "video/mp4"}`)

	chain.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, "kid-videos", outcome.Bucket)
	assert.Equal(t, "clip.mp4", outcome.Object)
	assert.Equal(t, "gemini-2.0-flash", outcome.ModelName)
	assert.False(t, outcome.Detected)
	assert.NotEmpty(t, outcome.FailureReason)
	assert.False(t, outcome.FrameSaved)
	// The remote video was cleaned up even though the run degraded.
	assert.Equal(t, []string{"files/test-video"}, files.deleted)

	tempFiles := append([]string{}, chainCtx.GetTempFiles()...)
	assert.NotEmpty(t, tempFiles)
	chainCtx.Close()
	for _, f := range tempFiles {
		_, err := os.Stat(f)
		assert.True(t, os.IsNotExist(err))
	}
}

// A payload with no recoverable object reference stops the chain at the first
// command; nothing downstream runs.
func TestDetectionChainStopsOnBadPayload(t *testing.T) {
	files := &fakeFileService{states: []genai.FileState{genai.FileStateActive}}

	chain := cor.NewBaseChain("detection-chain-test")
	chain.AddCommand(NewEventToStorageObject("event-to-storage-object"))
	chain.AddCommand(NewGCSToTempFile("gcs-to-temp-file", &fakeDownloader{payload: []byte("fake video bytes")}, "chain-test-"))
	chain.AddCommand(NewVideoFileUpload("video-file-upload", files, time.Millisecond, time.Second))

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(model.GetDetectionOutcomeName(), model.NewDetectionOutcome())
	chainCtx.Add(cor.CtxIn, `{"kind": "storage#object"}`)
	defer chainCtx.Close()

	chain.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(GetLocalVideoParameterName()))
	assert.Nil(t, chainCtx.Get(GetRemoteFileParameterName()))
	assert.Empty(t, files.deleted)
}
