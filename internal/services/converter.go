package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/tlxtech/textextract/internal/gcp"
	"github.com/tlxtech/textextract/internal/models"
)

// OperationStore persists the single in-flight operation per owner.
type OperationStore interface {
	Get(ctx context.Context, ownerID string) (*models.Operation, error)
	Put(ctx context.Context, ownerID string, op *models.Operation) error
	Delete(ctx context.Context, ownerID string) error
}

// BlobStore is the transient storage holding uploaded documents and batch
// output artifacts.
type BlobStore interface {
	Upload(ctx context.Context, bucket, objectName, contentType string, data []byte) error
	Download(ctx context.Context, bucket, objectName string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, objectName string) error
	Exists(ctx context.Context, bucket, objectName string) (bool, error)
}

// Extractor is the capability boundary to the OCR provider.
type Extractor interface {
	ExtractSync(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error)
	ExtractAsync(ctx context.Context, gcsInputURI, mimeType string) (operationName, outputPrefix string, err error)
	PollJob(ctx context.Context, operationName string) (done bool, err error)
	DecodeArtifact(data []byte) (*models.ExtractionResult, error)
}

// ConverterConfig holds configuration for the conversion service.
type ConverterConfig struct {
	UploadBucket  string
	OutputBucket  string
	SyncPageLimit int
}

// NewConverterConfigFromEnv builds the config the way the deployment sets it.
func NewConverterConfigFromEnv() ConverterConfig {
	limit, err := strconv.Atoi(gcp.GetEnv("SYNC_PAGE_LIMIT", "15"))
	if err != nil || limit <= 0 {
		limit = 15
	}
	return ConverterConfig{
		UploadBucket:  gcp.GetEnv("GCS_BUCKET_NAME", ""),
		OutputBucket:  gcp.GetEnv("GCS_OUTPUT_BUCKET_NAME", gcp.GetEnv("GCS_BUCKET_NAME", "")),
		SyncPageLimit: limit,
	}
}

// Converter orchestrates both conversion styles: the synchronous path that
// answers inline and the asynchronous path that records an operation and
// reconciles it on later polls.
type Converter struct {
	store     OperationStore
	blobs     BlobStore
	extractor Extractor
	config    ConverterConfig
}

// NewConverter wires the orchestrator. Clients are constructed once at
// process start and injected here.
func NewConverter(store OperationStore, blobs BlobStore, extractor Extractor, config ConverterConfig) (*Converter, error) {
	if store == nil || blobs == nil || extractor == nil {
		return nil, fmt.Errorf("store, blobs and extractor must all be provided")
	}
	if config.UploadBucket == "" || config.OutputBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET_NAME and GCS_OUTPUT_BUCKET_NAME must be set")
	}
	if config.SyncPageLimit <= 0 {
		config.SyncPageLimit = 15
	}
	return &Converter{store: store, blobs: blobs, extractor: extractor, config: config}, nil
}

// ConvertSync runs the whole conversion inside one request. The uploaded
// source is deleted whether extraction succeeds or fails, so a failed
// conversion never leaves an orphaned upload behind.
func (c *Converter) ConvertSync(ctx context.Context, ownerID, fileName string) (*models.ExtractionResult, error) {
	logCtx := slog.With("ownerId", ownerID, "fileName", fileName)

	data, err := c.fetchSource(ctx, fileName)
	if err != nil {
		return nil, err
	}
	defer c.deleteSource(ctx, logCtx, fileName)

	mimeType := mimeTypeFor(fileName)

	if mimeType == "application/pdf" {
		pageCount, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: could not read PDF", ErrBadInput)
		}
		if pageCount > c.config.SyncPageLimit {
			return nil, fmt.Errorf("%w: document has %d pages, synchronous conversion accepts at most %d", ErrBadInput, pageCount, c.config.SyncPageLimit)
		}
	}

	logCtx.Info("Starting synchronous conversion.", "mimeType", mimeType)
	result, err := c.extractor.ExtractSync(ctx, data, mimeType)
	if err != nil {
		logCtx.Error("Synchronous extraction failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	logCtx.Info("Synchronous conversion complete.", "pageCount", result.PageCount)
	return result, nil
}

// ConvertAsync hands the document to the provider's batch path and records
// the operation for the owner. A new submission replaces any existing record
// for the same owner. The source document stays in place; the provider job
// still needs it.
func (c *Converter) ConvertAsync(ctx context.Context, ownerID, fileName string) (string, error) {
	logCtx := slog.With("ownerId", ownerID, "fileName", fileName)

	if err := c.checkSource(ctx, fileName); err != nil {
		return "", err
	}

	gcsInputURI := fmt.Sprintf("gs://%s/%s", c.config.UploadBucket, fileName)
	mimeType := mimeTypeFor(fileName)

	operationName, outputPrefix, err := c.extractor.ExtractAsync(ctx, gcsInputURI, mimeType)
	if err != nil {
		logCtx.Error("Batch submission failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	op := &models.Operation{
		OwnerID:       ownerID,
		OperationName: operationName,
		FileName:      fileName,
		OutputPrefix:  outputPrefix,
		MimeType:      mimeType,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.store.Put(ctx, ownerID, op); err != nil {
		// The provider job is already running; without a record nobody will
		// ever finalize it, so surface the failure to the caller.
		logCtx.Error("Failed to record operation, provider job is orphaned", "operationName", operationName, "error", err)
		return "", fmt.Errorf("failed to record operation: %w", err)
	}

	logCtx.Info("Batch conversion submitted.", "operationName", operationName, "outputPrefix", outputPrefix)
	return operationName, nil
}

// Status answers one poll. While the provider is still working it returns
// (nil, false, nil) without touching anything. The first poll to observe
// completion runs finalize and returns the result; every poll after that
// finds no record and gets ErrNoSuchOperation.
func (c *Converter) Status(ctx context.Context, ownerID, operationName string) (*models.ExtractionResult, bool, error) {
	if operationName == "" {
		return nil, false, fmt.Errorf("%w: operation name is required", ErrBadInput)
	}

	op, err := c.store.Get(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	if op == nil || op.OperationName != operationName {
		return nil, false, ErrNoSuchOperation
	}

	done, err := c.extractor.PollJob(ctx, operationName)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !done {
		return nil, false, nil
	}

	result, err := c.finalize(ctx, op)
	if err != nil {
		return nil, true, err
	}
	return result, true, nil
}

// Ongoing returns the owner's in-flight operation record, or nil.
func (c *Converter) Ongoing(ctx context.Context, ownerID string) (*models.Operation, error) {
	return c.store.Get(ctx, ownerID)
}

// Clear drops the owner's operation record without contacting the provider
// or touching artifacts. It is the client-abandonment escape hatch, and a
// no-op success when no record exists.
func (c *Converter) Clear(ctx context.Context, ownerID string) error {
	return c.store.Delete(ctx, ownerID)
}

// finalize runs exactly once per completed job: aggregate every output
// artifact, then delete the artifacts, then the source, and the operation
// record strictly last. A record-deletion failure is logged but the result
// is still returned; the stuck record is an operational condition, not a
// reason to re-run aggregation.
func (c *Converter) finalize(ctx context.Context, op *models.Operation) (*models.ExtractionResult, error) {
	logCtx := slog.With("ownerId", op.OwnerID, "operationName", op.OperationName, "outputPrefix", op.OutputPrefix)
	logCtx.Info("Provider job is complete. Collecting output.")

	result, objectNames, err := c.aggregateArtifacts(ctx, op.OutputPrefix)
	if err != nil {
		return nil, err
	}
	if len(objectNames) == 0 {
		// A concurrent poll won the race and has already finalized; its
		// record deletion simply hadn't landed when we read the store.
		logCtx.Info("No output artifacts found; job was already finalized.")
		return nil, ErrNoSuchOperation
	}

	for _, objectName := range objectNames {
		if err := c.blobs.Delete(ctx, c.config.OutputBucket, objectName); err != nil {
			logCtx.Warn("Failed to delete output artifact", "object", objectName, "error", err)
		}
	}

	c.deleteSource(ctx, logCtx, op.FileName)

	if err := c.store.Delete(ctx, op.OwnerID); err != nil {
		logCtx.Error("Failed to delete operation record after finalize; record is stuck", "error", err)
	}

	logCtx.Info("Finalize complete.", "artifactCount", len(objectNames), "pageCount", result.PageCount)
	return result, nil
}

func (c *Converter) fetchSource(ctx context.Context, fileName string) ([]byte, error) {
	if err := c.checkSource(ctx, fileName); err != nil {
		return nil, err
	}
	data, err := c.blobs.Download(ctx, c.config.UploadBucket, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to download source document: %w", err)
	}
	return data, nil
}

func (c *Converter) checkSource(ctx context.Context, fileName string) error {
	if fileName == "" {
		return fmt.Errorf("%w: file name is required", ErrBadInput)
	}
	exists, err := c.blobs.Exists(ctx, c.config.UploadBucket, fileName)
	if err != nil {
		return fmt.Errorf("failed to check source document: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: file not found", ErrBadInput)
	}
	return nil
}

// deleteSource is best-effort. An orphaned blob is a lesser failure than
// reporting a false error for a conversion that succeeded.
func (c *Converter) deleteSource(ctx context.Context, logCtx *slog.Logger, fileName string) {
	if fileName == "" {
		return
	}
	if err := c.blobs.Delete(ctx, c.config.UploadBucket, fileName); err != nil {
		logCtx.Warn("Failed to delete source document", "error", err)
		return
	}
	logCtx.Info("Deleted source document.")
}

func mimeTypeFor(fileName string) string {
	if mimeType := mime.TypeByExtension(filepath.Ext(fileName)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
