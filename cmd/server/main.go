// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the moment detection webhook server.
//
// The server receives GCS object-creation events over HTTP, either directly
// from Eventarc or wrapped in a Pub/Sub push envelope, and runs the moment
// detection workflow against the referenced video: download it, ask Gemini
// for the first moment a kid says "67" with their hands or fingers, extract
// that frame with ffmpeg, and optionally publish the frame to an output
// bucket. The same workflow can also be attached to Pub/Sub pull
// subscriptions for environments that prefer pull over push delivery.
//
// The response contract is deliberately narrow:
//   - 200 with a detection body, positive or negative. Every internal
//     detector failure after the download maps to a negative detection.
//   - 400 when the event payload cannot be resolved to a bucket and object.
//   - 500 when the video download fails or the server is misconfigured.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/jaycherian/gcp-go-moment-detect/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()
	r.Use(otelgin.Middleware("moment-detect-server"))
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/", WebhookHandler)

	apiV1 := r.Group("/api/v1")
	{
		DetectionRouter(apiV1)
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
		// Detection runs are long: download, Files API processing, and a
		// model round trip all happen within one request.
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 15 * time.Minute,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// WebhookHandler runs one detection for the storage event in the request
// body and maps the outcome onto the response contract.
func WebhookHandler(c *gin.Context) {
	if state.cloud.GenAIClient == nil {
		c.JSON(http.StatusInternalServerError, &model.ErrorResponse{
			Status:  "error",
			Message: "configuration error: GEMINI_API_KEY is not set",
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, &model.ErrorResponse{
			Status:  "error",
			Message: "unable to read request body",
		})
		return
	}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(c.Request.Context())
	defer chainCtx.Close()

	outcome := model.NewDetectionOutcome()
	chainCtx.Add(model.GetDetectionOutcomeName(), outcome)
	chainCtx.Add(cor.CtxIn, string(body))

	state.detectionWorkflow.Execute(chainCtx)

	if chainCtx.HasErrors() {
		for _, err := range chainCtx.GetErrors() {
			if errors.Is(err, cloud.ErrMissingBucketOrName) {
				c.JSON(http.StatusBadRequest, &model.ErrorResponse{
					Status:  "error",
					Message: "missing bucket or name",
				})
				return
			}
		}
		slog.Error("detection workflow failed", "id", outcome.ID, "errors", chainCtx.GetErrors())
		c.JSON(http.StatusInternalServerError, &model.ErrorResponse{
			Status:  "error",
			Message: "failed to process video",
		})
		return
	}

	c.JSON(http.StatusOK, model.NewDetectionResponse(outcome))
}

// DetectionRouter exposes read access to the BigQuery detection log.
//
//   - GET /detections?count=<n>: the newest detection records.
//   - GET /detections/:id: one record by run ID.
func DetectionRouter(r *gin.RouterGroup) {
	detections := r.Group("/detections")
	{
		detections.GET("", func(c *gin.Context) {
			count, err := strconv.Atoi(c.DefaultQuery("count", "20"))
			if err != nil || count < 1 {
				count = 20
			}
			out, err := state.detectionService.ListRecent(c, count)
			if err != nil {
				log.Printf("Error listing detections: %v\n", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		detections.GET("/:id", func(c *gin.Context) {
			id := c.Param("id")
			out, err := state.detectionService.Get(c, id)
			if err != nil {
				c.Status(http.StatusNotFound)
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
