// Package server exposes the paper pipeline over HTTP. All endpoints
// require a bearer token; upload and reprocess additionally require the
// admin token.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"paperchat/internal/engine"
	"paperchat/internal/ledger"
	"paperchat/internal/processor"
)

// maxUploadBytes caps multipart upload size.
const maxUploadBytes = 50 << 20 // 50 MB

// Core is the pipeline surface the server drives.
type Core interface {
	Process(ctx context.Context, path string) processor.Result
	Query(ctx context.Context, question string) (engine.QueryResult, error)
	Summarize(ctx context.Context, filename string) (processor.SummaryResult, error)
	ReprocessAll(ctx context.Context) processor.ReprocessResult
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	core        Core
	ledger      *ledger.Ledger
	uploadDir   string
	adminToken  string
	publicToken string
}

// New creates a server. The ledger is read directly for paper listings.
func New(core Core, led *ledger.Ledger, uploadDir, adminToken, publicToken string) *Server {
	return &Server{
		core:        core,
		ledger:      led,
		uploadDir:   uploadDir,
		adminToken:  adminToken,
		publicToken: publicToken,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.requireAdmin(s.handleUpload))
	mux.HandleFunc("GET /papers", s.requireToken(s.handlePapers))
	mux.HandleFunc("POST /chat", s.requireToken(s.handleChat))
	mux.HandleFunc("POST /reprocess", s.requireAdmin(s.handleReprocess))
	mux.HandleFunc("GET /paper/{filename}", s.requireToken(s.handlePaper))
	mux.HandleFunc("GET /paper/{filename}/summary", s.requireToken(s.handleSummary))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// token extracts the caller's credential from the Authorization header,
// falling back to the token query parameter so that PDF links work in a
// browser.
func token(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireToken admits holders of either token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := token(r)
		if !tokenEqual(t, s.adminToken) && !tokenEqual(t, s.publicToken) {
			writeError(w, http.StatusUnauthorized, "Invalid authentication token")
			return
		}
		next(w, r)
	}
}

// requireAdmin admits the admin token only. An otherwise valid public
// token gets 403, an unknown token gets 401.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := token(r)
		if tokenEqual(t, s.adminToken) {
			next(w, r)
			return
		}
		if tokenEqual(t, s.publicToken) {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid authentication token")
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "paperchat",
		"endpoints": []string{
			"/health", "/upload", "/papers", "/chat", "/reprocess",
			"/paper/{filename}", "/paper/{filename}/summary",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"time_utc": time.Now().UTC().Format(time.RFC3339),
		"papers":   s.ledger.Len(),
	})
}

type uploadResponse struct {
	Message          string           `json:"message"`
	Filename         string           `json:"filename"`
	Timestamp        string           `json:"timestamp"`
	ProcessingResult processor.Result `json:"processing_result"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are supported")
		return
	}

	path := filepath.Join(s.uploadDir, filename)
	if err := saveUpload(path, file); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Saving file: %v", err))
		return
	}

	log.Printf("[server] uploaded %s (%d bytes)", filename, header.Size)

	result := s.core.Process(r.Context(), path)

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:          "File uploaded and processed",
		Filename:         filename,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ProcessingResult: result,
	})
}

// saveUpload writes src to path. On failure the partial file is removed
// so a later reprocess cannot pick it up.
func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// paperEntry merges the on-disk file with its ledger record.
type paperEntry struct {
	Filename        string `json:"filename"`
	Size            int64  `json:"size"`
	UploadedAt      string `json:"uploaded_at"`
	Processed       bool   `json:"processed"`
	Status          string `json:"status,omitempty"`
	ChunksProcessed int    `json:"chunks_processed,omitempty"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	paths, err := filepath.Glob(filepath.Join(s.uploadDir, "*.pdf"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Listing papers: %v", err))
		return
	}
	sort.Strings(paths)

	papers := make([]paperEntry, 0, len(paths))
	for _, path := range paths {
		entry := paperEntry{Filename: filepath.Base(path)}

		if info, err := os.Stat(path); err == nil {
			entry.Size = info.Size()
			entry.UploadedAt = info.ModTime().UTC().Format(time.RFC3339)
		}

		if rec, ok := s.ledger.Get(entry.Filename); ok {
			entry.Status = rec.Status
			entry.Processed = rec.Status == ledger.StatusProcessed
			entry.ChunksProcessed = rec.ChunkCount
			if !rec.ProcessedAt.IsZero() {
				entry.ProcessedAt = rec.ProcessedAt.UTC().Format(time.RFC3339)
			}
		}

		papers = append(papers, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"papers": papers,
		"total":  len(papers),
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response  string                  `json:"response"`
	Sources   []engine.SourceCitation `json:"sources"`
	Question  string                  `json:"question"`
	Timestamp string                  `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := s.core.Query(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, processor.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "Message cannot be empty")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Answering question: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.Answer,
		Sources:   result.Sources,
		Question:  result.Question,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	log.Printf("[server] reprocessing all papers")
	writeJSON(w, http.StatusOK, s.core.ReprocessAll(r.Context()))
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename != filepath.Base(filename) || !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	path := filepath.Join(s.uploadDir, filename)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "Paper not found")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	summary, err := s.core.Summarize(r.Context(), filename)
	if err != nil {
		if errors.Is(err, processor.ErrPaperNotFound) {
			writeError(w, http.StatusNotFound, "Paper not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Summarizing: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
