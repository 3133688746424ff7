package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tlxtech/textextract/internal/gcp"
	"github.com/tlxtech/textextract/internal/provider"
	"github.com/tlxtech/textextract/internal/ratelimit"
	"github.com/tlxtech/textextract/internal/server"
	"github.com/tlxtech/textextract/internal/services"
	"github.com/tlxtech/textextract/internal/store"
)

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	projectID := gcp.GetEnv("GCP_PROJECT", "")
	if projectID == "" {
		return fmt.Errorf("GCP_PROJECT environment variable must be set")
	}
	location := gcp.GetEnv("LOCATION", "us")
	processorID := gcp.GetEnv("PROCESSOR_ID", "")
	if processorID == "" {
		return fmt.Errorf("PROCESSOR_ID environment variable must be set")
	}

	converterConfig := services.NewConverterConfigFromEnv()

	// Clients are created once here and reused for every request.
	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return err
	}
	defer firestoreClient.Close()

	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return err
	}
	defer storageClient.Close()

	docAIClient, err := gcp.NewDocumentAIClient(ctx, projectID, location, processorID)
	if err != nil {
		return err
	}
	defer docAIClient.Close()

	counters, err := ratelimit.NewRedisCounters(ctx, gcp.GetEnv("REDIS_ADDR", "localhost:6379"), gcp.GetEnv("REDIS_PASSWORD", ""))
	if err != nil {
		return err
	}
	defer counters.Close()

	operationStore, err := store.NewOperationStore(firestoreClient, gcp.GetEnv("FIRESTORE_COLLECTION", "operations"))
	if err != nil {
		return err
	}

	extractor, err := provider.NewDocumentAI(docAIClient, converterConfig.OutputBucket)
	if err != nil {
		return err
	}

	blobs := gcp.NewObjectStore(storageClient)

	converter, err := services.NewConverter(operationStore, blobs, extractor, converterConfig)
	if err != nil {
		return err
	}

	srv := server.New(converter, blobs, ratelimit.New(counters), converterConfig.UploadBucket)

	httpServer := &http.Server{
		Addr:         ":" + gcp.GetEnv("PORT", "8080"),
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Extraction server listening.", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("Shutting down.", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
