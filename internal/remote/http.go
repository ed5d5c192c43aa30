// ABOUTME: HTTP client for a remote sync server and the matching request handler.
// ABOUTME: POST /sync performs an exchange; DELETE /{kind}s/{id} removes one entity.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harperreed/lift/internal/models"
)

// DeviceHeader identifies the calling device to the server.
const DeviceHeader = "X-Device-ID"

// HTTPClient talks to a sync server over HTTP.
type HTTPClient struct {
	baseURL  string
	token    string
	deviceID string
	http     *http.Client
}

// NewHTTPClient creates a client for the server at baseURL.
func NewHTTPClient(baseURL, token, deviceID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		deviceID: deviceID,
		http:     &http.Client{Timeout: timeout},
	}
}

// Exchange sends one sync request.
func (c *HTTPClient) Exchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode exchange: %w", err)
	}

	var resp ExchangeResponse
	if err := c.do(ctx, http.MethodPost, "/sync", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes one entity. A 404 means the remote no longer has it.
func (c *HTTPClient) Delete(ctx context.Context, kind models.Kind, id string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/%ss/%s", kind, id), nil, nil)
	var se *ServerError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.deviceID != "" {
		req.Header.Set(DeviceHeader, c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %w", ErrUnavailable, &ServerError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))})
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ServerError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// NewHandler serves r over HTTP using the routes HTTPClient calls.
// When token is non-empty every request must carry it as a bearer token.
func NewHandler(r Remote, token string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sync", func(w http.ResponseWriter, req *http.Request) {
		var in ExchangeRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		out, err := r.Exchange(req.Context(), &in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("DELETE /{kind}/{id}", func(w http.ResponseWriter, req *http.Request) {
		kind := models.Kind(strings.TrimSuffix(req.PathValue("kind"), "s"))
		switch kind {
		case models.KindExercise, models.KindWorkout, models.KindRoutine:
		default:
			http.NotFound(w, req)
			return
		}
		if err := r.Delete(req.Context(), kind, req.PathValue("id")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if token == "" {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, req)
	})
}
