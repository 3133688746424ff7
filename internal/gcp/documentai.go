package gcp

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"google.golang.org/api/option"
)

// DocumentAIClient holds the Document AI processor client plus the fully
// qualified processor name the conversion service submits against.
type DocumentAIClient struct {
	Processor     *documentai.DocumentProcessorClient
	ProcessorName string
}

// NewDocumentAIClient creates a client pinned to the processor's regional
// endpoint. Document AI requires the endpoint to match the processor
// location, so all three identifiers are mandatory.
func NewDocumentAIClient(ctx context.Context, projectID, location, processorID string) (*DocumentAIClient, error) {
	if projectID == "" || location == "" || processorID == "" {
		return nil, fmt.Errorf("NewDocumentAIClient: projectID, location and processorID cannot be empty")
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("documentai.NewDocumentProcessorClient: %w", err)
	}

	return &DocumentAIClient{
		Processor:     client,
		ProcessorName: fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID),
	}, nil
}

func (c *DocumentAIClient) Close() error {
	if c.Processor != nil {
		return c.Processor.Close()
	}
	return nil
}
