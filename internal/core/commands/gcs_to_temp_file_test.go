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

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// fakeDownloader writes fixed bytes to the destination, or fails.
type fakeDownloader struct {
	payload []byte
	err     error
}

func (f *fakeDownloader) Download(_ context.Context, _ string, _ string, dst io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := dst.Write(f.payload)
	return int64(n), err
}

func TestGCSToTempFileDownloadsAndSniffsMIME(t *testing.T) {
	cmd := NewGCSToTempFile("download-test", &fakeDownloader{payload: []byte("not a real video")}, "download-test-")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	obj := &cloud.StorageObject{Bucket: "kid-videos", Name: "clip.mp4"}
	chainCtx.Add(cor.CtxIn, obj)

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	localPath := chainCtx.Get(GetLocalVideoParameterName()).(string)
	content, err := os.ReadFile(localPath)
	assert.NoError(t, err)
	assert.Equal(t, "not a real video", string(content))

	// The bytes match no known type, so the fallback applies.
	assert.Equal(t, "video/mp4", obj.MIMEType)

	// Closing the chain context removes the temp file.
	chainCtx.Close()
	_, err = os.Stat(localPath)
	assert.True(t, os.IsNotExist(err))
}

func TestGCSToTempFileKeepsDeclaredMIME(t *testing.T) {
	cmd := NewGCSToTempFile("download-test", &fakeDownloader{payload: []byte("bytes")}, "download-test-")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	obj := &cloud.StorageObject{Bucket: "kid-videos", Name: "clip.webm", MIMEType: "video/webm"}
	chainCtx.Add(cor.CtxIn, obj)
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, "video/webm", obj.MIMEType)
}

func TestGCSToTempFileDownloadFailureIsHardError(t *testing.T) {
	cmd := NewGCSToTempFile("download-test", &fakeDownloader{err: errors.New("object not found")}, "download-test-")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(model.GetDetectionOutcomeName(), model.NewDetectionOutcome())
	chainCtx.Add(cor.CtxIn, &cloud.StorageObject{Bucket: "kid-videos", Name: "missing.mp4"})
	defer chainCtx.Close()

	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(GetLocalVideoParameterName()))
}
