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
	"testing"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func newTestContext(payload string) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(model.GetDetectionOutcomeName(), model.NewDetectionOutcome())
	if payload != "" {
		chainCtx.Add(cor.CtxIn, payload)
	}
	return chainCtx
}

func TestEventToStorageObjectDecodesAndRecordsOutcome(t *testing.T) {
	cmd := NewEventToStorageObject("decode-test")
	chainCtx := newTestContext(`{"bucket": "kid-videos", "name": "clip.mp4", "contentType": "video/mp4"}`)

	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	obj := chainCtx.Get(cloud.GetStorageObjectName()).(*cloud.StorageObject)
	assert.Equal(t, "kid-videos", obj.Bucket)
	assert.Equal(t, "clip.mp4", obj.Name)

	outcome := chainCtx.Get(model.GetDetectionOutcomeName()).(*model.DetectionOutcome)
	assert.Equal(t, "kid-videos", outcome.Bucket)
	assert.Equal(t, "clip.mp4", outcome.Object)
}

func TestEventToStorageObjectBadPayloadIsHardError(t *testing.T) {
	cmd := NewEventToStorageObject("decode-test")
	chainCtx := newTestContext(`{"kind": "storage#object"}`)

	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	err := chainCtx.GetErrors()["decode-test"]
	assert.True(t, errors.Is(err, cloud.ErrMissingBucketOrName))
	assert.Nil(t, chainCtx.Get(cloud.GetStorageObjectName()))
}
