package server

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crypto/subtle"
	"encoding/json"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/numbleroot/lwwdict/crdt"
	"github.com/numbleroot/lwwdict/replica"
)

// Set the maximum number of bytes a value in a
// request body may occupy to 1 MiB.
const maxValueSize = 1 << 20

// Structs

// Server exposes a replica over HTTP.
type Server struct {
	logger  log.Logger
	replica replica.Service
	token   string
	router  *mux.Router
}

type keyResp struct {
	Key       string  `json:"key"`
	Value     *string `json:"value,omitempty"`
	Timestamp float64 `json:"ts,omitempty"`
}

type healthResp struct {
	Status  string `json:"status"`
	Replica string `json:"replica"`
	Keys    int    `json:"keys"`
}

type errResp struct {
	Error string `json:"error"`
}

// Functions

// NewServer returns the HTTP API of rep. If token is not
// empty, mutating requests need to present it as bearer
// token in their Authorization header.
func NewServer(logger log.Logger, rep replica.Service, token string) *Server {

	s := &Server{
		logger:  logger,
		replica: rep,
		token:   token,
		router:  mux.NewRouter(),
	}

	s.router.Use(s.logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/keys/{key}", s.handleGet).Methods(http.MethodGet)

	write := s.router.PathPrefix("/keys").Subrouter()
	write.Use(s.authorize)
	write.HandleFunc("/{key}", s.handlePut).Methods(http.MethodPut)
	write.HandleFunc("/{key}", s.handlePatch).Methods(http.MethodPatch)
	write.HandleFunc("/{key}", s.handleDelete).Methods(http.MethodDelete)

	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		defer func(begin time.Time) {
			level.Debug(s.logger).Log(
				"method", r.Method,
				"path", r.URL.Path,
				"took", time.Since(begin),
			)
		}(time.Now())

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(s.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errResp{"missing or invalid API token"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// timestamp returns the ts query parameter of r,
// or a fresh one from the replica clock if absent.
func (s *Server) timestamp(r *http.Request) (float64, error) {

	raw := r.URL.Query().Get("ts")
	if raw == "" {
		return s.replica.Now(), nil
	}

	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp '%s'", raw)
	}

	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return 0, fmt.Errorf("timestamp '%s' is not finite", raw)
	}

	return ts, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {

	writeJSON(w, http.StatusOK, healthResp{
		Status:  "ok",
		Replica: s.replica.Name(),
		Keys:    s.replica.Len(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.replica.State())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {

	key := mux.Vars(r)["key"]

	value, ok := s.replica.Value(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, errResp{fmt.Sprintf("key '%s' not found", key)})
		return
	}

	writeJSON(w, http.StatusOK, keyResp{Key: key, Value: &value})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, crdt.OpAdd)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, crdt.OpUpdate)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, crdt.OpRemove)
}

// write applies an operation of kind operation built
// from r and responds with the resulting value of the key.
func (s *Server) write(w http.ResponseWriter, r *http.Request, operation string) {

	ts, err := s.timestamp(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}

	op := &crdt.Op{
		Operation: operation,
		Key:       mux.Vars(r)["key"],
		Timestamp: ts,
	}

	if operation != crdt.OpRemove {

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueSize))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errResp{"reading value from body failed"})
			return
		}

		op.Value = string(body)
	}

	s.replica.Apply(op)

	resp := keyResp{Key: op.Key, Timestamp: ts}

	value, ok := s.replica.Value(op.Key)
	if ok {
		resp.Value = &value
	}

	// Updates never create keys.
	if operation == crdt.OpUpdate && !ok {
		writeJSON(w, http.StatusNotFound, errResp{fmt.Sprintf("key '%s' not found", op.Key)})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
