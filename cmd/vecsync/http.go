package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/vecsync/internal/models"
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// doJSON sends body (when non-nil) to serverURL+path and decodes a JSON response into out.
// wantStatus is the only status treated as success.
func doJSON(ctx context.Context, method, serverURL, path string, body, out interface{}, wantStatus int) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(serverURL, "/")+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchViaHTTP(ctx context.Context, serverURL string, q *models.SearchQuery) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := doJSON(ctx, http.MethodPost, serverURL, "/api/v1/search", q, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func statusViaHTTP(ctx context.Context, serverURL string) (*models.Status, error) {
	var st models.Status
	if err := doJSON(ctx, http.MethodGet, serverURL, "/api/v1/status", nil, &st, http.StatusOK); err != nil {
		return nil, err
	}
	return &st, nil
}

func watchAddViaHTTP(ctx context.Context, serverURL, dir string, syncExisting bool) error {
	body := map[string]interface{}{"path": dir, "sync": syncExisting}
	return doJSON(ctx, http.MethodPost, serverURL, "/api/v1/watch/directories", body, nil, http.StatusCreated)
}

func watchRemoveViaHTTP(ctx context.Context, serverURL, dir string) error {
	return doJSON(ctx, http.MethodDelete, serverURL, "/api/v1/watch/directories?path="+url.QueryEscape(dir), nil, nil, http.StatusOK)
}

func watchListViaHTTP(ctx context.Context, serverURL string) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := doJSON(ctx, http.MethodGet, serverURL, "/api/v1/watch/directories", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Directories, nil
}
