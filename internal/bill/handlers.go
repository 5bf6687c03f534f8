package bill

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// corsJSONError writes a JSON error response with CORS headers set
func corsJSONError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleListBills returns a list of all bills
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.service.ListBills()
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bills); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleScanBill handles receipt upload and bill creation
func (s *Server) handleScanBill(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		corsJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a receipt photo to upload."
		}
		corsJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		corsJSONError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	participants := parseParticipants(r.MultipartForm.Value["participants"])
	if len(participants) == 0 {
		corsJSONError(w, "At least one participant is required.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		corsJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := normalizeContentType(header.Header.Get("Content-Type"), header.Filename)

	bill, err := s.service.ScanBill(header.Filename, data, contentType, participants)
	if err != nil {
		slog.Error("Error scanning bill", "filename", header.Filename, "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(bill); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// parseParticipants flattens form values; each value may itself be a
// comma-separated list.
func parseParticipants(values []string) []string {
	var participants []string
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				participants = append(participants, name)
			}
		}
	}
	return participants
}

// normalizeContentType fills in a missing content type from the file
// extension. HEIC/HEIF MIME types are preserved so the conversion
// logic can detect them.
func normalizeContentType(contentType, filename string) string {
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	bill, err := s.service.GetBill(id)
	if err != nil {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bill); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUpdateBill replaces a bill's editable fields
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}

	var update UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bill, err := s.service.UpdateBill(id, &update)
	if err != nil {
		slog.Error("Error updating bill", "id", id, "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bill); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteBill removes a bill and its stored image
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteBill(id); err != nil {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetBillImage returns the stored receipt image for a bill
func (s *Server) handleGetBillImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetBillImage(id)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleGetBillSummary returns the per-participant totals for a bill
func (s *Server) handleGetBillSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	summary, err := s.service.Summary(id)
	if err != nil {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
