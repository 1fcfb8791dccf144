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
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

// fakeFileService simulates the Files API. Get walks through states in order
// and sticks on the last one, or fails every call when getErr is set.
type fakeFileService struct {
	uploadErr    error
	getErr       error
	uploadedMIME string
	states       []genai.FileState
	getCalls     int
	deleted      []string
}

func (f *fakeFileService) Upload(_ context.Context, src io.Reader, mimeType string) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	_, _ = io.Copy(io.Discard, src)
	f.uploadedMIME = mimeType
	return &genai.File{Name: "files/test-video", URI: "https://files.test/test-video", MIMEType: mimeType, State: f.states[0]}, nil
}

func (f *fakeFileService) Get(_ context.Context, name string) (*genai.File, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	idx := f.getCalls
	if idx >= len(f.states) {
		idx = len(f.states) - 1
	}
	return &genai.File{Name: name, URI: "https://files.test/test-video", MIMEType: f.uploadedMIME, State: f.states[idx]}, nil
}

func (f *fakeFileService) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func newUploadContext(t *testing.T) (cor.Context, *model.DetectionOutcome) {
	t.Helper()
	local, err := os.CreateTemp(t.TempDir(), "upload-test-*.mp4")
	assert.NoError(t, err)
	_, err = local.WriteString("fake video bytes")
	assert.NoError(t, err)
	assert.NoError(t, local.Close())

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	outcome := model.NewDetectionOutcome()
	chainCtx.Add(model.GetDetectionOutcomeName(), outcome)
	chainCtx.Add(cloud.GetStorageObjectName(), &cloud.StorageObject{Bucket: "kid-videos", Name: "clip.mp4", MIMEType: "video/mp4"})
	chainCtx.Add(cor.CtxIn, local.Name())
	return chainCtx, outcome
}

func TestVideoFileUploadWaitsForActiveState(t *testing.T) {
	files := &fakeFileService{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateProcessing, genai.FileStateActive}}
	cmd := NewVideoFileUpload("upload-test", files, time.Millisecond, time.Second)
	chainCtx, outcome := newUploadContext(t)
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Empty(t, outcome.FailureReason)
	file := chainCtx.Get(GetRemoteFileParameterName()).(*genai.File)
	assert.Equal(t, genai.FileStateActive, file.State)
	assert.Equal(t, "video/mp4", files.uploadedMIME)
}

func TestVideoFileUploadFailureDegradesToNotDetected(t *testing.T) {
	files := &fakeFileService{uploadErr: errors.New("quota exhausted")}
	cmd := NewVideoFileUpload("upload-test", files, time.Millisecond, time.Second)
	chainCtx, outcome := newUploadContext(t)
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	// Soft failure: the chain keeps going, the outcome records the reason.
	assert.False(t, chainCtx.HasErrors())
	assert.False(t, outcome.Detected)
	assert.Contains(t, outcome.FailureReason, "file upload failed")
	assert.Nil(t, chainCtx.Get(GetRemoteFileParameterName()))
}

func TestVideoFileUploadProcessingTimeout(t *testing.T) {
	files := &fakeFileService{states: []genai.FileState{genai.FileStateProcessing}}
	cmd := NewVideoFileUpload("upload-test", files, time.Millisecond, 10*time.Millisecond)
	chainCtx, outcome := newUploadContext(t)
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.False(t, outcome.Detected)
	assert.Contains(t, outcome.FailureReason, "remote processing timeout")
	// The stuck remote file is deleted rather than left to expire.
	assert.Equal(t, []string{"files/test-video"}, files.deleted)
}

func TestVideoFileUploadPollErrorDeletesRemoteFile(t *testing.T) {
	files := &fakeFileService{states: []genai.FileState{genai.FileStateProcessing}, getErr: errors.New("backend unavailable")}
	cmd := NewVideoFileUpload("upload-test", files, time.Millisecond, time.Second)
	chainCtx, outcome := newUploadContext(t)
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.False(t, outcome.Detected)
	assert.Contains(t, outcome.FailureReason, "failed to poll file state")
	assert.Nil(t, chainCtx.Get(GetRemoteFileParameterName()))
	// The uploaded file is unreachable for this run; it must not be leaked.
	assert.Equal(t, []string{"files/test-video"}, files.deleted)
}

func TestVideoFileUploadRemoteFailure(t *testing.T) {
	files := &fakeFileService{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateFailed}}
	cmd := NewVideoFileUpload("upload-test", files, time.Millisecond, time.Second)
	chainCtx, outcome := newUploadContext(t)
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.False(t, outcome.Detected)
	assert.Contains(t, outcome.FailureReason, "remote file processing failed")
	assert.Equal(t, []string{"files/test-video"}, files.deleted)
}

func TestVideoFileUploadSkippedWithoutFileService(t *testing.T) {
	cmd := NewVideoFileUpload("upload-test", nil, time.Millisecond, time.Second)
	chainCtx, _ := newUploadContext(t)
	defer chainCtx.Close()

	assert.False(t, cmd.IsExecutable(chainCtx))
}
