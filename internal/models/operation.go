package models

import "time"

// Operation represents one in-flight asynchronous extraction job in
// Firestore. The document ID is the owner's user ID, so an owner can never
// hold more than one of these at a time.
type Operation struct {
	OwnerID       string    `firestore:"ownerId,omitempty" json:"ownerId"`
	OperationName string    `firestore:"operationName,omitempty" json:"operationName"`
	FileName      string    `firestore:"fileName,omitempty" json:"fileName"`
	OutputPrefix  string    `firestore:"outputPrefix,omitempty" json:"outputPrefix"`
	MimeType      string    `firestore:"mimeType,omitempty" json:"mimeType"`
	CreatedAt     time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
}

// ExtractionResult is the aggregated output of a conversion. It is returned
// to the caller exactly once and never persisted.
type ExtractionResult struct {
	Text              string   `json:"text"`
	PageCount         int      `json:"pageCount,omitempty"`
	DetectedLanguages []string `json:"detectedLanguages,omitempty"`
}
