package models

// These structs define the JSON payloads for the HTTP API.

// ConvertRequest is the input for both conversion endpoints. FileName is the
// stored object name returned by the upload endpoint.
type ConvertRequest struct {
	FileName string `json:"fileName"`
}

// ConvertResponse is the terminal output of a conversion, sync or async.
type ConvertResponse struct {
	Message string            `json:"message"`
	Data    *ExtractionResult `json:"data,omitempty"`
}

// ConvertAcceptedResponse is returned when the async path has handed the
// document to the provider and the caller should start polling.
type ConvertAcceptedResponse struct {
	Message       string `json:"message"`
	OperationName string `json:"operationName"`
}

// UploadResponse carries the generated object name back to the caller.
type UploadResponse struct {
	Message  string `json:"message"`
	FileName string `json:"fileName"`
}

// CheckFileResponse reports whether an uploaded document is still present.
type CheckFileResponse struct {
	Exists   bool   `json:"exists"`
	FileName string `json:"fileName,omitempty"`
	Message  string `json:"message,omitempty"`
}

// OngoingOperationResponse wraps the owner's current operation record.
type OngoingOperationResponse struct {
	OngoingOperation *Operation `json:"ongoingOperation"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Message string `json:"message"`
}
