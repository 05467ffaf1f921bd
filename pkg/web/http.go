package web

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/formrelay/pkg/common/logger"
	"github.com/synaptica-ai/formrelay/pkg/observability/metrics"
)

const (
	IndexPage   = "index.html"
	MessagePage = "message.html"
	ErrorPage   = "error.html"

	// MessagePath is where every form submission is redirected.
	MessagePath = "/" + MessagePage
)

var ErrStaticResourceMissing = errors.New("static resource missing")

// Sender hands a raw form body to the ingestion side.
type Sender interface {
	Send(payload []byte) error
}

type HTTPHandler struct {
	root    string
	sender  Sender
	maxBody int64
}

func NewHTTPHandler(root string, sender Sender, maxBody int64) *HTTPHandler {
	return &HTTPHandler{root: root, sender: sender, maxBody: maxBody}
}

// NewRouter registers all routes and wraps the whole router in the logging
// and recovery middleware, so unmatched requests are logged too.
func NewRouter(h *HTTPHandler) http.Handler {
	router := mux.NewRouter()
	h.Register(router)
	return Logging(Recovery(router))
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	router.HandleFunc("/", h.handlePage(IndexPage)).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc(MessagePath, h.handlePage(MessagePage)).Methods(http.MethodGet, http.MethodHead)
	router.PathPrefix("/").HandlerFunc(h.handleSubmit).Methods(http.MethodPost)
	router.PathPrefix("/").HandlerFunc(h.handleStatic).Methods(http.MethodGet, http.MethodHead)
}

func (h *HTTPHandler) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.sendHTML(w, name, http.StatusOK)
	}
}

// handleSubmit forwards the body unmodified and redirects without waiting
// for the ingestion side.
func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Log.WithError(err).Warn("failed to read submission body")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sender.Send(body); err != nil {
		metrics.RelayFailed()
		logger.Log.WithError(err).WithField("bytes", len(body)).Error("failed to relay submission")
	} else {
		metrics.SubmissionRelayed()
	}

	w.Header().Set("Location", MessagePath)
	w.WriteHeader(http.StatusFound)
}

// handleStatic serves a file under the document root. The URL path is joined
// to the root without further checks; the router's path cleaning is the only
// guard against escaping it.
func (h *HTTPHandler) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/"))
	path := filepath.Join(h.root, rel)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Log.WithError(err).WithField("path", path).Warn("failed to stat static file")
		}
		h.sendHTML(w, ErrorPage, http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Log.WithError(err).WithField("path", path).Error("failed to open static file")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(path))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logger.Log.WithError(err).WithField("path", path).Warn("failed to stream static file")
	}
}

func (h *HTTPHandler) sendHTML(w http.ResponseWriter, name string, status int) {
	content, err := h.readPage(name)
	if err != nil {
		logger.Log.WithError(err).WithField("page", name).Error("failed to read page")
		if status == http.StatusNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	w.Write(content)
}

func (h *HTTPHandler) readPage(name string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(h.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrStaticResourceMissing)
	}
	return content, err
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "text/plain"
}
