package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tlxtech/textextract/internal/models"
	"github.com/tlxtech/textextract/internal/services"
)

// maxUploadBytes bounds the multipart body; documents past this belong on
// a different ingestion path entirely.
const maxUploadBytes = 50 << 20

func (s *Server) handleConvertSync(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())

	var req models.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Could not parse JSON body")
		return
	}

	result, err := s.converter.ConvertSync(r.Context(), callerID, req.FileName)
	if err != nil {
		s.writeServiceError(w, err, "convert-sync", callerID)
		return
	}

	writeJSON(w, http.StatusOK, models.ConvertResponse{Message: "Conversion successful", Data: result})
}

func (s *Server) handleConvertAsync(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())

	var req models.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Could not parse JSON body")
		return
	}

	operationName, err := s.converter.ConvertAsync(r.Context(), callerID, req.FileName)
	if err != nil {
		s.writeServiceError(w, err, "convert-async", callerID)
		return
	}

	writeJSON(w, http.StatusAccepted, models.ConvertAcceptedResponse{
		Message:       "Document processing started",
		OperationName: operationName,
	})
}

func (s *Server) handleConvertStatus(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())
	operationName := r.URL.Query().Get("operationName")

	result, done, err := s.converter.Status(r.Context(), callerID, operationName)
	if err != nil {
		s.writeServiceError(w, err, "convert-status", callerID)
		return
	}

	if !done {
		writeJSON(w, http.StatusAccepted, models.ConvertResponse{Message: "Document processing still in progress"})
		return
	}

	writeJSON(w, http.StatusOK, models.ConvertResponse{Message: "Document processing completed", Data: result})
}

func (s *Server) handleClearOperation(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())

	if err := s.converter.Clear(r.Context(), callerID); err != nil {
		slog.Error("Failed to clear ongoing operation", "ownerId", callerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear ongoing operation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Ongoing operation cleared"})
}

func (s *Server) handleOngoingOperation(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())

	op, err := s.converter.Ongoing(r.Context(), callerID)
	if err != nil {
		slog.Error("Failed to retrieve ongoing operation", "ownerId", callerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve ongoing operation")
		return
	}

	if op == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, models.OngoingOperationResponse{OngoingOperation: op})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	// Stored under a generated name; the original filename never reaches GCS.
	uniqueName := uuid.NewString() + filepath.Ext(header.Filename)
	contentType := header.Header.Get("Content-Type")

	if err := s.blobs.Upload(r.Context(), s.uploadBucket, uniqueName, contentType, data); err != nil {
		slog.Error("Upload to GCS failed", "ownerId", callerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	slog.Info("File uploaded.", "ownerId", callerID, "fileName", uniqueName, "size", len(data))
	writeJSON(w, http.StatusCreated, models.UploadResponse{Message: "File uploaded successfully", FileName: uniqueName})
}

func (s *Server) handleCheckFile(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		writeError(w, http.StatusBadRequest, "File name is required")
		return
	}

	exists, err := s.blobs.Exists(r.Context(), s.uploadBucket, fileName)
	if err != nil {
		slog.Error("Failed to check file", "fileName", fileName, "error", err)
		writeJSON(w, http.StatusOK, models.CheckFileResponse{Exists: false, Message: "Error accessing file"})
		return
	}

	if !exists {
		writeJSON(w, http.StatusOK, models.CheckFileResponse{Exists: false, Message: "File not found"})
		return
	}
	writeJSON(w, http.StatusOK, models.CheckFileResponse{Exists: true, FileName: fileName})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	callerID := CallerIDFrom(r.Context())

	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		writeError(w, http.StatusBadRequest, "File name is required")
		return
	}

	if err := s.blobs.Delete(r.Context(), s.uploadBucket, fileName); err != nil {
		slog.Error("Failed to delete file", "ownerId", callerID, "fileName", fileName, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
}

// writeServiceError maps the service error taxonomy onto HTTP. Provider and
// storage detail stays in the logs; the caller gets a safe message.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, route, callerID string) {
	switch {
	case errors.Is(err, services.ErrBadInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoSuchOperation):
		writeError(w, http.StatusNotFound, "No such operation found")
	case errors.Is(err, services.ErrProviderUnavailable):
		slog.Error("Provider call failed", "route", route, "ownerId", callerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Document processing failed")
	default:
		slog.Error("Request failed", "route", route, "ownerId", callerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
