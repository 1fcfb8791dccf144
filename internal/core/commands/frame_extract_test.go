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
	"testing"

	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestParseFrameRate(t *testing.T) {
	cases := map[string]struct {
		rate string
		fps  float64
		ok   bool
	}{
		"ntsc rational":    {rate: "30000/1001", fps: 30000.0 / 1001.0, ok: true},
		"whole rational":   {rate: "25/1", fps: 25.0, ok: true},
		"bare number":      {rate: "24", fps: 24.0, ok: true},
		"zero denominator": {rate: "30/0", ok: false},
		"garbage":          {rate: "abc/def", ok: false},
		"too many parts":   {rate: "1/2/3", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fps, err := parseFrameRate(tc.rate)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tc.fps, fps, 1e-9)
		})
	}
}

// The frame index truncates rather than rounds: second 2.5 at 30fps is frame
// 75, second 2.99 at 30fps is frame 89.
func TestFrameIndexTruncation(t *testing.T) {
	assert.Equal(t, 75, int(2.5*30.0))
	sec := 2.99
	assert.Equal(t, 89, int(sec*30.0))
	assert.Equal(t, 0, int(0.0*30.0))
}

func TestFrameObjectName(t *testing.T) {
	assert.Equal(t, "clip-kid-67-frame-12.5s.png", FrameObjectName("clip.mp4", 12.5))
	assert.Equal(t, "nested/clip-kid-67-frame-3.0s.png", FrameObjectName("nested/clip.webm", 3.0))
	assert.Equal(t, "noext-kid-67-frame-0.0s.png", FrameObjectName("noext", 0.0))
}

func TestFrameExtractSkippedWhenNotDetected(t *testing.T) {
	cmd := NewFrameExtract("extract-test", "/usr/bin/ffmpeg", "/usr/bin/ffprobe")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(model.GetDetectionOutcomeName(), model.NewDetectionOutcome())
	chainCtx.Add(GetLocalVideoParameterName(), "/tmp/whatever.mp4")

	assert.False(t, cmd.IsExecutable(chainCtx))
}

func TestFrameExtractSkippedWithoutLocalFile(t *testing.T) {
	cmd := NewFrameExtract("extract-test", "/usr/bin/ffmpeg", "/usr/bin/ffprobe")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	outcome := model.NewDetectionOutcome()
	outcome.Detected = true
	chainCtx.Add(model.GetDetectionOutcomeName(), outcome)

	assert.False(t, cmd.IsExecutable(chainCtx))
}

// A broken ffprobe binary downgrades the detection instead of erroring out.
func TestFrameExtractToolingFailureIsSoftFailure(t *testing.T) {
	cmd := NewFrameExtract("extract-test", "/nonexistent/ffmpeg", "/nonexistent/ffprobe")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	defer chainCtx.Close()

	outcome := model.NewDetectionOutcome()
	outcome.Detected = true
	outcome.Second = 2.5
	outcome.Object = "clip.mp4"
	chainCtx.Add(model.GetDetectionOutcomeName(), outcome)
	chainCtx.Add(GetLocalVideoParameterName(), "/tmp/whatever.mp4")

	assert.True(t, cmd.IsExecutable(chainCtx))
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.False(t, outcome.Detected)
	assert.Contains(t, outcome.FailureReason, "ffprobe failed")
	assert.Nil(t, chainCtx.Get(GetFramePathParameterName()))
}
