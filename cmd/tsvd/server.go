package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/dreamware/threadkit/internal/api"
	"github.com/dreamware/threadkit/internal/config"
	"github.com/dreamware/threadkit/internal/keyspace"
	"github.com/dreamware/threadkit/internal/pool"
	"github.com/dreamware/threadkit/internal/storage"
	"github.com/dreamware/threadkit/internal/thread"
	"github.com/dreamware/threadkit/internal/value"
)

var errBadRequest = errors.New("bad request")

// Server holds the daemon's runtime state.
//
// Handler goroutines are not registered threads; the keyspace is safe for
// any goroutine and jobs reach the pool through Post.
type Server struct {
	ks    *keyspace.Keyspace
	reg   *thread.Registry
	pools *pool.Manager
	jobs  *pool.Pool
}

// NewServer builds the keyspace, applies the configured bindings and
// starts the job pool. Workers register with reg.
func NewServer(cfg *config.Config, reg *thread.Registry) (*Server, error) {
	s := &Server{
		ks:    keyspace.New(keyspace.WithBuckets(cfg.Buckets)),
		reg:   reg,
		pools: pool.NewManager(reg),
	}
	for _, b := range cfg.Bindings {
		if err := s.ks.Bind(b.Array, b.Store); err != nil {
			_ = s.ks.Close()
			return nil, fmt.Errorf("bind %s: %w", b.Array, err)
		}
	}
	jobs, err := s.pools.Create(cfg.PoolConfig())
	if err != nil {
		_ = s.ks.Close()
		return nil, err
	}
	s.jobs = jobs
	return s, nil
}

// Close stops the job pool, then flushes and closes every bound store.
func (s *Server) Close() error {
	s.pools.Close()
	return s.ks.Close()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /info", s.handleInfo)

	mux.HandleFunc("GET /tsv", s.handleNames)
	mux.HandleFunc("GET /tsv/{array}", s.handleArrayGet)
	mux.HandleFunc("DELETE /tsv/{array}", s.handleArrayUnset)
	mux.HandleFunc("GET /tsv/{array}/{key}", s.handleGet)
	mux.HandleFunc("PUT /tsv/{array}/{key}", s.handleSet)
	mux.HandleFunc("DELETE /tsv/{array}/{key}", s.handleUnset)
	mux.HandleFunc("POST /tsv/{array}/{key}/incr", s.handleIncr)
	mux.HandleFunc("POST /tsv/{array}/{key}/append", s.handleAppend)
	mux.HandleFunc("POST /tsv/{array}/{key}/lappend", s.handleLappend)

	mux.HandleFunc("GET /bind", s.handleBindings)
	mux.HandleFunc("POST /bind/{array}", s.handleBind)
	mux.HandleFunc("DELETE /bind/{array}", s.handleUnbind)

	mux.HandleFunc("POST /jobs", s.handlePostJob)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	return mux
}

// statusOf maps an error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, keyspace.ErrNoSuchArray),
		errors.Is(err, keyspace.ErrNoSuchKey),
		errors.Is(err, pool.ErrNoSuchJob):
		return http.StatusNotFound
	case errors.Is(err, keyspace.ErrAlreadyBound),
		errors.Is(err, keyspace.ErrNotBound):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, storage.ErrBadSpec),
		errors.Is(err, storage.ErrUnknownDriver),
		errors.Is(err, value.ErrNotInteger),
		errors.Is(err, value.ErrMalformedList):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Printf("tsvd: %v", err)
	}
	api.WriteError(w, code, err)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.Info{
		Keyspace: s.ks.Stats(),
		Pool:     s.jobs.Stats(),
		Threads:  len(s.reg.List()),
		Bindings: s.ks.Bound(),
	})
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.ks.Names(r.URL.Query().Get("pattern"))
	if err != nil {
		fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if names == nil {
		names = []string{}
	}
	api.WriteJSON(w, http.StatusOK, api.NamesResponse{Names: names, Count: len(names)})
}

func (s *Server) handleArrayGet(w http.ResponseWriter, r *http.Request) {
	array := r.PathValue("array")
	kvs, err := s.ks.ArrayGet(array, r.URL.Query().Get("pattern"))
	if err != nil {
		fail(w, err)
		return
	}
	resp := api.ArrayResponse{Array: array, Entries: make([]api.Entry, 0, len(kvs))}
	for _, kv := range kvs {
		resp.Entries = append(resp.Entries, api.Entry{Key: kv.Key, Value: kv.Value.String()})
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArrayUnset(w http.ResponseWriter, r *http.Request) {
	if err := s.ks.Unset(r.PathValue("array")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	array, key := r.PathValue("array"), r.PathValue("key")
	v, err := s.ks.Get(array, key, false)
	if err != nil {
		fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.ValueResponse{Array: array, Key: key, Value: v.String()})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req api.SetRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if err := s.ks.Set(r.PathValue("array"), r.PathValue("key"), value.String(req.Value)); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnset(w http.ResponseWriter, r *http.Request) {
	if err := s.ks.Unset(r.PathValue("array"), r.PathValue("key")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIncr(w http.ResponseWriter, r *http.Request) {
	var req api.IncrRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Delta == 0 {
		req.Delta = 1
	}
	array, key := r.PathValue("array"), r.PathValue("key")
	n, err := s.ks.Incr(array, key, req.Delta)
	if err != nil {
		fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.ValueResponse{Array: array, Key: key, Value: strconv.FormatInt(n, 10)})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req api.AppendRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	array, key := r.PathValue("array"), r.PathValue("key")
	v, err := s.ks.Append(array, key, req.Values...)
	if err != nil {
		fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.ValueResponse{Array: array, Key: key, Value: v.String()})
}

// handleLappend replies with the new list length.
func (s *Server) handleLappend(w http.ResponseWriter, r *http.Request) {
	var req api.AppendRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	elems := make([]value.Value, len(req.Values))
	for i, v := range req.Values {
		elems[i] = value.String(v)
	}
	array, key := r.PathValue("array"), r.PathValue("key")
	n, err := s.ks.Lappend(array, key, elems...)
	if err != nil {
		fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.ValueResponse{Array: array, Key: key, Value: strconv.Itoa(n)})
}

func (s *Server) handleBindings(w http.ResponseWriter, _ *http.Request) {
	bound := s.ks.Bound()
	if bound == nil {
		bound = []keyspace.Binding{}
	}
	api.WriteJSON(w, http.StatusOK, api.BindingsResponse{Bindings: bound})
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req api.BindRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	array := r.PathValue("array")
	if err := s.ks.Bind(array, req.Store); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	if err := s.ks.Unbind(r.PathValue("array")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostJob(w http.ResponseWriter, r *http.Request) {
	var req api.JobRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	script, err := jobScript(s.ks, req)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := s.jobs.Post(r.Context(), script, pool.PostOptions{NoWait: true})
	if err != nil {
		fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusAccepted, api.JobResponse{ID: uint64(id)})
}

// handleGetJob collects a job result. With ?wait=1 it blocks until the job
// completes; otherwise an unfinished job yields 202 and its id.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		fail(w, fmt.Errorf("%w: job id %q", errBadRequest, r.PathValue("id")))
		return
	}
	id := pool.JobID(n)
	if r.URL.Query().Get("wait") != "" {
		if _, _, err := s.jobs.Wait(r.Context(), []pool.JobID{id}); err != nil {
			fail(w, err)
			return
		}
	}
	res, err := s.jobs.Get(id)
	if errors.Is(err, pool.ErrJobNotCompleted) {
		api.WriteJSON(w, http.StatusAccepted, api.JobResponse{ID: n})
		return
	}
	if err != nil {
		fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.JobResult{
		ID:        n,
		Code:      res.Code,
		Value:     res.Value,
		ErrorCode: res.ErrorCode,
		ErrorInfo: res.ErrorInfo,
	})
}

// jobScript turns a job request into a pool script that applies it to ks.
func jobScript(ks *keyspace.Keyspace, req api.JobRequest) (thread.Script, error) {
	if req.Array == "" {
		return nil, fmt.Errorf("%w: job needs an array", errBadRequest)
	}
	if req.Key == "" && req.Op != api.OpUnset {
		return nil, fmt.Errorf("%w: %s needs a key", errBadRequest, req.Op)
	}
	switch req.Op {
	case api.OpSet:
		return func(*thread.Context) (string, error) {
			return req.Value, ks.Set(req.Array, req.Key, value.String(req.Value))
		}, nil
	case api.OpUnset:
		return func(*thread.Context) (string, error) {
			if req.Key == "" {
				return "", ks.Unset(req.Array)
			}
			return "", ks.Unset(req.Array, req.Key)
		}, nil
	case api.OpIncr:
		delta := req.Delta
		if delta == 0 {
			delta = 1
		}
		return func(*thread.Context) (string, error) {
			n, err := ks.Incr(req.Array, req.Key, delta)
			return strconv.FormatInt(n, 10), err
		}, nil
	case api.OpAppend:
		return func(*thread.Context) (string, error) {
			v, err := ks.Append(req.Array, req.Key, req.Value)
			if err != nil {
				return "", err
			}
			return v.String(), nil
		}, nil
	case api.OpLappend:
		return func(*thread.Context) (string, error) {
			n, err := ks.Lappend(req.Array, req.Key, value.String(req.Value))
			return strconv.Itoa(n), err
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown op %q", errBadRequest, req.Op)
}
