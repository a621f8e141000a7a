package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/config"
	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/query"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req models.TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := req.Strategy
	if name == "" {
		name = s.config.Training.Strategy
	}
	strategy, err := trainer.ParseStrategy(name)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.trainers(strategy)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.logger.Debug("train request", zap.Strings("sources", req.Sources), zap.String("strategy", string(strategy)))
	s.writeMu.Lock()
	res, err := t.Train(r.Context(), req.Sources)
	s.writeMu.Unlock()
	if res != nil && !req.IncludeItems {
		res.Items = nil
	}
	if err != nil {
		s.logger.Warn("train failed", zap.Error(err))
		if res == nil {
			s.respondError(w, statusFor(err), err.Error())
			return
		}
		s.respondJSON(w, statusFor(err), trainResponse{TrainResult: res, Error: err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, trainResponse{TrainResult: res})
}

type trainResponse struct {
	*models.TrainResult
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	vec, err := s.embedder.Embed(r.Context(), q.Query)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, "embed query: "+err.Error())
		return
	}
	hits, err := s.store.Search(r.Context(), vec, q.Limit)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, searchResponse(q.Query, hits, time.Since(start)))
}

// searchResponse lifts the reserved text and source keys out of each hit's metadata.
func searchResponse(q string, hits []vectorstore.Hit, took time.Duration) *models.SearchResponse {
	results := make([]*models.SearchResult, len(hits))
	for i, h := range hits {
		md := h.Metadata.Clone()
		text, _ := md[models.MetaText].(string)
		source, _ := md[models.MetaSource].(string)
		delete(md, models.MetaText)
		results[i] = &models.SearchResult{
			ID:       h.ID,
			Score:    h.Score,
			Text:     text,
			Source:   source,
			Metadata: md,
			Rank:     i + 1,
		}
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: took.Milliseconds(),
		Query:     q,
	}
}

type itemsResponse struct {
	Items []vectorstore.Record `json:"items"`
	Total int                  `json:"total"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	var (
		recs []vectorstore.Record
		err  error
	)
	if key == "" {
		recs, err = s.scanner.ScanAll(r.Context())
	} else {
		recs, err = s.scanner.ScanByFilter(r.Context(), key, query.ParseValue(r.URL.Query().Get("value")))
	}
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondItems(w, recs)
}

func (s *Server) handleRangeItems(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	key := params.Get("key")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	recs, err := s.scanner.ScanByRange(r.Context(), key,
		query.ParseValue(params.Get("min")), query.ParseValue(params.Get("max")))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondItems(w, recs)
}

func (s *Server) respondItems(w http.ResponseWriter, recs []vectorstore.Record) {
	if recs == nil {
		recs = []vectorstore.Record{}
	}
	s.respondJSON(w, http.StatusOK, itemsResponse{Items: recs, Total: len(recs)})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.scanner.GetOne(r.Context(), id)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete item request", zap.String("id", id))
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ok, err := s.store.Exists(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.SetCollectionItems(n)
	resp := models.Status{
		Items:       n,
		Collection:  s.config.Storage.Collection,
		Backend:     s.config.Storage.Backend,
		Strategy:    s.config.Training.Strategy,
		Provider:    s.config.Embedding.Provider,
		Dimensions:  s.embedder.Dimensions(),
		StoragePath: s.config.Storage.Path,
	}
	paths := s.config.StoreConfig(nil).StoragePaths()
	if len(paths) > 0 {
		if bytes, err := vectorstore.DiskUsageBytes(paths...); err == nil {
			resp.DiskUsageBytes = &bytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrConfiguration), errors.Is(err, models.ErrMixedSourceTypes):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
