package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dreamware/threadkit/internal/keyspace"
	"github.com/dreamware/threadkit/internal/pool"
)

// SetRequest is the body of PUT /tsv/{array}/{key}.
type SetRequest struct {
	Value string `json:"value"`
}

// IncrRequest is the body of POST .../incr. A zero Delta increments by one.
type IncrRequest struct {
	Delta int64 `json:"delta"`
}

// AppendRequest is the body of POST .../append and .../lappend.
type AppendRequest struct {
	Values []string `json:"values"`
}

// ValueResponse carries one element.
type ValueResponse struct {
	Array string `json:"array"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entry is one key/value pair of an array.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ArrayResponse lists the matching entries of an array, sorted by key.
type ArrayResponse struct {
	Array   string  `json:"array"`
	Entries []Entry `json:"entries"`
}

// NamesResponse lists array names.
type NamesResponse struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// BindRequest is the body of POST /bind/{array}.
type BindRequest struct {
	Store string `json:"store"` // "type:address", e.g. "yaml:/tmp/a.yaml"
}

// BindingsResponse lists bound arrays.
type BindingsResponse struct {
	Bindings []keyspace.Binding `json:"bindings"`
}

// Job operations.
const (
	OpSet     = "set"
	OpUnset   = "unset"
	OpIncr    = "incr"
	OpAppend  = "append"
	OpLappend = "lappend"
)

// JobRequest describes a keyspace mutation run on the job pool.
type JobRequest struct {
	Op    string `json:"op"`
	Array string `json:"array"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Delta int64  `json:"delta,omitempty"`
}

// JobResponse is returned when a job is queued.
type JobResponse struct {
	ID uint64 `json:"id"`
}

// JobResult is a collected job result.
type JobResult struct {
	ID        uint64 `json:"id"`
	Code      int    `json:"code"`
	Value     string `json:"value"`
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorInfo string `json:"errorInfo,omitempty"`
}

// Info is the body of GET /info.
type Info struct {
	Keyspace keyspace.Stats     `json:"keyspace"`
	Pool     pool.Stats         `json:"pool"`
	Threads  int                `json:"threads"`
	Bindings []keyspace.Binding `json:"bindings"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is a non-2xx reply seen by a client.
type StatusError struct {
	URL     string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %s: %d", e.URL, e.Code)
	}
	return fmt.Sprintf("http %s: %d: %s", e.URL, e.Code, e.Message)
}

// NotFound reports whether err is a 404 reply.
func NotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON posts body and decodes the reply into out, if out is non-nil.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	return do(ctx, http.MethodPost, url, body, out)
}

// PutJSON puts body and decodes the reply into out, if out is non-nil.
func PutJSON(ctx context.Context, url string, body any, out any) error {
	return do(ctx, http.MethodPut, url, body, out)
}

// GetJSON fetches url and decodes the reply into out.
func GetJSON(ctx context.Context, url string, out any) error {
	return do(ctx, http.MethodGet, url, nil, out)
}

// Delete sends a DELETE to url.
func Delete(ctx context.Context, url string) error {
	return do(ctx, http.MethodDelete, url, nil, nil)
}

func do(ctx context.Context, method, url string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var er ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return &StatusError{URL: url, Code: resp.StatusCode, Message: er.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse with the given status.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}
