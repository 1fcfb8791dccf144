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
// command that extracts the detected frame from the local video with ffmpeg.
//
// Logic Flow:
//  1. Probe the video with ffprobe to read the real frame rate of the first
//     video stream (r_frame_rate, a "num/den" rational).
//  2. Convert the detected timestamp into a frame index: int(second * fps).
//  3. Run ffmpeg with a select filter to decode exactly that frame to a PNG
//     temp file.
//
// Selecting by frame index rather than by -ss seek keeps the result exact:
// a seek lands on the nearest keyframe, the select filter lands on the frame.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
)

// FramePngTempPrefix is the prefix for the extracted frame temp file.
const FramePngTempPrefix = "frame-output-*.png"

// GetFramePathParameterName returns the context key holding the local path of
// the extracted PNG frame.
func GetFramePathParameterName() string {
	return "__FRAME_FILE__"
}

// ffprobeOutput mirrors the JSON emitted by
// `ffprobe -print_format json -show_format -show_streams`.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	RFrameRate string `json:"r_frame_rate"`
}

// FrameExtract probes the video's frame rate and decodes the single frame at
// the detected timestamp into a PNG.
type FrameExtract struct {
	cor.BaseCommand
	ffmpegPath  string
	ffprobePath string
}

// NewFrameExtract is the constructor for the FrameExtract command.
func NewFrameExtract(name string, ffmpegPath string, ffprobePath string) *FrameExtract {
	return &FrameExtract{
		BaseCommand: *cor.NewBaseCommand(name),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// IsExecutable skips extraction unless the locator found a moment and the
// local video file is still available.
func (c *FrameExtract) IsExecutable(context cor.Context) bool {
	outcome := getOutcome(context)
	return outcome != nil && outcome.Detected &&
		context.Get(GetLocalVideoParameterName()) != nil
}

// Execute extracts the frame. Any tooling failure downgrades the run to
// not-detected rather than failing the request.
func (c *FrameExtract) Execute(context cor.Context) {
	localPath := context.Get(GetLocalVideoParameterName()).(string)
	outcome := getOutcome(context)

	fps, err := c.probeFrameRate(context, localPath)
	if err != nil {
		c.failSoft(context, outcome, "ffprobe failed: "+err.Error())
		return
	}

	frameIndex := int(outcome.Second * fps)

	framePath, err := c.extractFrame(context, localPath, frameIndex)
	if err != nil {
		c.failSoft(context, outcome, "ffmpeg frame extraction failed: "+err.Error())
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	outcome.FrameName = FrameObjectName(outcome.Object, outcome.Second)
	slog.Info("extracted frame",
		"file", localPath,
		"fps", fps,
		"frame_index", frameIndex,
		"frame", framePath)

	context.Add(GetFramePathParameterName(), framePath)
	context.Add(c.GetOutputParam(), framePath)
}

// probeFrameRate runs ffprobe and returns the frame rate of the first video
// stream.
func (c *FrameExtract) probeFrameRate(context cor.Context, localPath string) (float64, error) {
	cmd := exec.CommandContext(context.GetContext(), c.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		localPath)
	raw, err := cmd.Output()
	if err != nil {
		return 0, err
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("invalid ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			return parseFrameRate(stream.RFrameRate)
		}
	}
	return 0, fmt.Errorf("no video stream found")
}

// extractFrame decodes the single frame at frameIndex to a PNG temp file. The
// temp file is registered for cleanup before ffmpeg runs so a failed run
// leaves nothing behind.
func (c *FrameExtract) extractFrame(context cor.Context, localPath string, frameIndex int) (string, error) {
	tempFile, err := os.CreateTemp("", FramePngTempPrefix)
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}
	_ = tempFile.Close()
	context.AddTempFile(tempFile.Name())

	cmd := exec.CommandContext(context.GetContext(), c.ffmpegPath,
		"-y",
		"-hide_banner",
		"-i", localPath,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", frameIndex),
		"-frames:v", "1",
		"-update", "1",
		tempFile.Name())
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", err
	}
	return tempFile.Name(), nil
}

// failSoft records the failure on the outcome and logs it.
func (c *FrameExtract) failSoft(context cor.Context, outcome *model.DetectionOutcome, reason string) {
	c.GetErrorCounter().Add(context.GetContext(), 1)
	slog.Warn("frame extraction degraded to not-detected", "command", c.GetName(), "reason", reason)
	if outcome != nil {
		outcome.Detected = false
		outcome.FailureReason = reason
	}
}

// parseFrameRate converts ffprobe's "num/den" rational into a float. A bare
// number is accepted as-is.
func parseFrameRate(rate string) (float64, error) {
	parts := strings.Split(rate, "/")
	switch len(parts) {
	case 1:
		return strconv.ParseFloat(parts[0], 64)
	case 2:
		num, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
		}
		den, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
		}
		if den == 0 {
			return 0, fmt.Errorf("invalid frame rate %q: zero denominator", rate)
		}
		return num / den, nil
	default:
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
}

// FrameObjectName derives the output object name for an extracted frame from
// the source object and the detected timestamp.
func FrameObjectName(object string, second float64) string {
	base := strings.TrimSuffix(object, path.Ext(object))
	return fmt.Sprintf("%s-kid-67-frame-%.1fs.png", base, second)
}
