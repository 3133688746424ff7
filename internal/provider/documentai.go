// Package provider adapts Google Document AI to the two extraction styles
// the conversion service needs: inline processing for small documents and
// batch processing with GCS output for everything else.
package provider

import (
	"context"
	"fmt"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/tlxtech/textextract/internal/gcp"
	"github.com/tlxtech/textextract/internal/models"
)

// Pages below this confidence do not contribute a detected language.
const languageConfidenceFloor = 0.8

// DocumentAI submits documents to a single configured processor.
type DocumentAI struct {
	client       *gcp.DocumentAIClient
	outputBucket string
}

// NewDocumentAI wraps the shared Document AI client. outputBucket is where
// batch jobs write their result artifacts.
func NewDocumentAI(client *gcp.DocumentAIClient, outputBucket string) (*DocumentAI, error) {
	if client == nil {
		return nil, fmt.Errorf("document AI client must be provided")
	}
	if outputBucket == "" {
		return nil, fmt.Errorf("output bucket must be provided")
	}
	return &DocumentAI{client: client, outputBucket: outputBucket}, nil
}

// ExtractSync processes a document inline and returns its text immediately.
func (d *DocumentAI) ExtractSync(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error) {
	req := &documentaipb.ProcessRequest{
		Name: d.client.ProcessorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := d.client.Processor.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("documentai.ProcessDocument: %w", err)
	}

	doc := resp.GetDocument()
	if doc.GetText() == "" {
		return nil, fmt.Errorf("no text extracted from document")
	}

	return resultFromDocument(doc), nil
}

// ExtractAsync starts a batch job reading from gcsInputURI and writing
// artifacts under a fresh prefix in the output bucket. It returns the
// provider operation name as the job handle, plus the output prefix.
func (d *DocumentAI) ExtractAsync(ctx context.Context, gcsInputURI, mimeType string) (string, string, error) {
	outputPrefix := fmt.Sprintf("output/%s/", uuid.NewString())

	req := &documentaipb.BatchProcessRequest{
		Name: d.client.ProcessorName,
		InputDocuments: &documentaipb.BatchDocumentsInputConfig{
			Source: &documentaipb.BatchDocumentsInputConfig_GcsDocuments{
				GcsDocuments: &documentaipb.GcsDocuments{
					Documents: []*documentaipb.GcsDocument{
						{GcsUri: gcsInputURI, MimeType: mimeType},
					},
				},
			},
		},
		DocumentOutputConfig: &documentaipb.DocumentOutputConfig{
			Destination: &documentaipb.DocumentOutputConfig_GcsOutputConfig_{
				GcsOutputConfig: &documentaipb.DocumentOutputConfig_GcsOutputConfig{
					GcsUri: fmt.Sprintf("gs://%s/%s", d.outputBucket, outputPrefix),
				},
			},
		},
	}

	op, err := d.client.Processor.BatchProcessDocuments(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("documentai.BatchProcessDocuments: %w", err)
	}

	return op.Name(), outputPrefix, nil
}

// PollJob checks a batch operation by name. It reports done=false with a nil
// error while the provider is still working.
func (d *DocumentAI) PollJob(ctx context.Context, operationName string) (bool, error) {
	op := d.client.Processor.BatchProcessDocumentsOperation(operationName)
	if _, err := op.Poll(ctx); err != nil {
		return false, fmt.Errorf("documentai operation %s: %w", operationName, err)
	}
	return op.Done(), nil
}

// DecodeArtifact parses one batch output artifact, which Document AI writes
// as a Document message in proto JSON form.
func (d *DocumentAI) DecodeArtifact(data []byte) (*models.ExtractionResult, error) {
	return DecodeDocumentJSON(data)
}

// DecodeDocumentJSON converts a serialized Document into the per-artifact
// slice of an ExtractionResult.
func DecodeDocumentJSON(data []byte) (*models.ExtractionResult, error) {
	var doc documentaipb.Document
	unmarshaler := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := unmarshaler.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode output artifact: %w", err)
	}
	return resultFromDocument(&doc), nil
}

func resultFromDocument(doc *documentaipb.Document) *models.ExtractionResult {
	result := &models.ExtractionResult{
		Text:      doc.GetText(),
		PageCount: len(doc.GetPages()),
	}

	seen := make(map[string]bool)
	for _, page := range doc.GetPages() {
		for _, lang := range page.GetDetectedLanguages() {
			code := lang.GetLanguageCode()
			if code == "" || lang.GetConfidence() < languageConfidenceFloor {
				continue
			}
			if !seen[code] {
				seen[code] = true
				result.DetectedLanguages = append(result.DetectedLanguages, code)
			}
		}
	}
	return result
}
