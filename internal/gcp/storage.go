package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// NewStorageClient creates the shared Cloud Storage client.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return client, nil
}

// ObjectStore wraps the Storage client with the blob operations the
// conversion service needs: transient uploads and batch output artifacts.
type ObjectStore struct {
	client *storage.Client
}

// NewObjectStore wraps an existing Storage client.
func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

// Upload writes data to an object only if it doesn't already exist, so a
// retried upload can never clobber the source of an in-flight conversion.
func (s *ObjectStore) Upload(ctx context.Context, bucket, objectName, contentType string, data []byte) error {
	writer := s.client.Bucket(bucket).Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			log.Printf("SKIPPING: Object %s already exists.", objectName)
			return nil
		}
		log.Printf("ERROR: Failed to write GCS object %s: %v", objectName, err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			log.Printf("SKIPPING: Object %s already exists.", objectName)
			return nil
		}
		log.Printf("ERROR: Failed to close GCS writer for %s: %v", objectName, err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// Download reads a whole object into memory.
func (s *ObjectStore) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %s: %w", objectName, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectName, err)
	}
	return data, nil
}

// List returns the names of all objects under the given prefix, in
// lexicographic order as the API yields them.
func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objectNames []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		objectNames = append(objectNames, attrs.Name)
	}
	return objectNames, nil
}

// Delete removes an object. A missing object is treated as success so that
// cleanup stays idempotent.
func (s *ObjectStore) Delete(ctx context.Context, bucket, objectName string) error {
	err := s.client.Bucket(bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", objectName, err)
	}
	return nil
}

// Exists reports whether an object is present.
func (s *ObjectStore) Exists(ctx context.Context, bucket, objectName string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(objectName).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat GCS object %s: %w", objectName, err)
	}
	return true, nil
}
