// Package leader implements the authoritative side of the distributed
// coherence layer: an HTTP(S) server that serves bearer-authenticated sync
// and mutation requests, tracks connected followers, and fans out push
// notifications on revocation and key rotation. Grounded on the teacher's
// metrics server (ServeMux + http.Server + graceful Shutdown run from a
// background goroutine) and generalized from a metrics-only endpoint to a
// full sync/status/mutate API.
package leader

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/systmms/agentcred/internal/audit"
	"github.com/systmms/agentcred/internal/config"
	"github.com/systmms/agentcred/internal/keystore"
	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/internal/metrics"
	"github.com/systmms/agentcred/internal/notifications"
	"github.com/systmms/agentcred/internal/revocation"
)

// pushQueueSize bounds each follower's push channel; a slow or disconnected
// follower never blocks the broadcaster.
const pushQueueSize = 16

// defaultNextSyncSeconds is the leader's recommended follower polling
// interval, returned in every sync response.
const defaultNextSyncSeconds = 60

// Config configures a Server.
type Config struct {
	Addr         string
	BearerToken  string
	TLSCertPath  string
	TLSKeyPath   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible server timeouts; Addr and BearerToken must
// still be set by the caller.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the leader's HTTP(S) sync and mutation endpoint.
type Server struct {
	config      Config
	keys        *keystore.Store
	revocations *revocation.Set
	configStore *config.Store
	notifier    *notifications.Manager
	audit       *audit.Sink
	logger      *logging.Logger

	httpServer *http.Server

	mu        sync.Mutex
	followers map[string]*followerRecord

	pushMu   sync.Mutex
	pushSubs map[string]chan PushMessage
}

// New constructs a Server. notifier and auditSink may both be nil, in which
// case governance events are simply not published and mutations are not
// additionally logged to a SQL audit trail; neither is required for the
// leader to serve followers.
func New(cfg Config, keys *keystore.Store, revocations *revocation.Set, configStore *config.Store, notifier *notifications.Manager, auditSink *audit.Sink, logger *logging.Logger) *Server {
	return &Server{
		config:      cfg,
		keys:        keys,
		revocations: revocations,
		configStore: configStore,
		notifier:    notifier,
		audit:       auditSink,
		logger:      logger,
		followers:   make(map[string]*followerRecord),
		pushSubs:    make(map[string]chan PushMessage),
	}
}

// Start builds the handler tree and begins listening in a background
// goroutine. It returns once the listener is configured, not once it stops
// serving; use Stop for a graceful shutdown.
func (s *Server) Start() error {
	metrics.InitMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("/sync", s.withAuth(s.handleSync))
	mux.HandleFunc("/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/rotate-key", s.withAuth(s.handleRotateKey))
	mux.HandleFunc("/revoke/", s.withAuth(s.handleRevoke))
	mux.HandleFunc("/push/", s.withAuth(s.handlePushSubscribe))

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		var err error
		if s.config.TLSCertPath != "" && s.config.TLSKeyPath != "" {
			err = s.httpServer.ListenAndServeTLS(s.config.TLSCertPath, s.config.TLSKeyPath)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("leader server stopped: %v", err)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests to
// finish or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listener address the server was configured with.
func (s *Server) Addr() string {
	return s.config.Addr
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		presented := strings.TrimPrefix(header, prefix)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.config.BearerToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sync request body")
		return
	}
	if req.FollowerID == "" {
		writeError(w, http.StatusBadRequest, "follower_id is required")
		return
	}

	resp := SyncResponse{
		RevocationListDelta: s.revocations.RevocationsSince(req.RevocationListVersion),
		NextSyncSeconds:     defaultNextSyncSeconds,
		LeaderTimestamp:     time.Now().UTC(),
	}

	_, currentKeyVersion, err := s.keys.GetCurrent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.SigningKeyVersion = currentKeyVersion
	resp.RevocationListVersion = s.revocations.Version()
	if req.SigningKeyVersion < currentKeyVersion {
		b64, err := s.keys.ExportCurrent()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.SigningKey = &b64
	}

	rec, err := s.configStore.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.ProviderConfigsVersion = rec.Version
	if req.ProviderConfigsVersion < rec.Version {
		resp.ProviderConfigs = rec.Providers
	}

	s.recordFollowerSync(req, time.Now())
	metrics.RecordFollowerSync("ok")
	s.recordAudit(r.Context(), "follower_sync", req.FollowerID, "success", "")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordFollowerSync(req SyncRequest, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followers[req.FollowerID] = &followerRecord{
		FollowerID:                  req.FollowerID,
		LastSyncAt:                  at,
		KnownSigningKeyVersion:      req.SigningKeyVersion,
		KnownProviderConfigsVersion: req.ProviderConfigsVersion,
		KnownRevocationVersion:      req.RevocationListVersion,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.followers))
	for id := range s.followers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	rec, err := s.configStore.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Mode:                   "leader",
		SigningKeyVersion:      s.keys.CurrentVersion(),
		ProviderConfigsVersion: rec.Version,
		RevocationListVersion:  s.revocations.Version(),
		RevocationCount:        s.revocations.Count(),
		KnownFollowerIDs:       ids,
	})
}

func (s *Server) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	_, newVersion, err := s.keys.Rotate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.RecordKeyRotation()
	s.broadcastPush(PushMessage{Type: PushKeyRotation, Version: newVersion, SentAt: time.Now()})
	s.publishGovernanceEvent(notifications.EventTypeKeyRotation, fmt.Sprintf("version %d", newVersion), nil)
	s.recordAudit(r.Context(), string(notifications.EventTypeKeyRotation), fmt.Sprintf("version %d", newVersion), "success", "")

	writeJSON(w, http.StatusOK, rotateKeyResponse{SigningKeyVersion: newVersion})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	tokenID := strings.TrimPrefix(r.URL.Path, "/revoke/")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "token id is required")
		return
	}

	var body revokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid revoke request body")
			return
		}
	}

	if err := s.revocations.Revoke(revocation.RevokeParams{TokenID: tokenID, Reason: body.Reason}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.RecordRevocation()
	s.broadcastPush(PushMessage{Type: PushRevocation, Subject: tokenID, Version: s.revocations.Version(), SentAt: time.Now()})
	s.publishGovernanceEvent(notifications.EventTypeRevocation, tokenID, nil)
	s.recordAudit(r.Context(), string(notifications.EventTypeRevocation), tokenID, "success", body.Reason)

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// recordAudit appends an audit record when a sink is configured. A failure
// is logged and otherwise swallowed — the mutation it describes already
// succeeded against the authoritative JSON state, and the audit trail is a
// secondary, best-effort record of it, never a transactional participant.
func (s *Server) recordAudit(ctx context.Context, eventType, subject, status, reason string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Record{
		EventType: eventType,
		Subject:   subject,
		Status:    status,
		Reason:    reason,
	}); err != nil && s.logger != nil {
		s.logger.Error("audit record failed: %v", err)
	}
}

func (s *Server) publishGovernanceEvent(eventType notifications.EventType, subject string, err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(notifications.GovernanceEvent{
		Type:      eventType,
		Subject:   subject,
		Status:    notifications.StatusSuccess,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// handlePushSubscribe serves a long-lived connection a follower holds open
// to receive push notifications between periodic syncs. Messages are
// written one JSON object per line (newline-delimited, not full SSE) and
// flushed immediately; the handler blocks until the client disconnects or
// the server shuts down.
func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	followerID := strings.TrimPrefix(r.URL.Path, "/push/")
	if followerID == "" {
		writeError(w, http.StatusBadRequest, "follower id is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := s.RegisterFollowerPush(followerID)
	defer s.UnregisterFollowerPush(followerID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			if err := enc.Encode(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// RegisterFollowerPush opens a push channel for followerID. Callers should
// range over the returned channel and forward messages to the follower's
// long-lived connection; call UnregisterFollowerPush when it disconnects.
func (s *Server) RegisterFollowerPush(followerID string) <-chan PushMessage {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	ch := make(chan PushMessage, pushQueueSize)
	s.pushSubs[followerID] = ch
	return ch
}

// UnregisterFollowerPush closes and removes followerID's push channel.
func (s *Server) UnregisterFollowerPush(followerID string) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	if ch, ok := s.pushSubs[followerID]; ok {
		close(ch)
		delete(s.pushSubs, followerID)
	}
}

// broadcastPush fans msg out to every connected follower's push channel.
// A full channel means the follower is slow or gone; the send is dropped,
// not retried, since the next periodic sync reconciles state regardless.
func (s *Server) broadcastPush(msg PushMessage) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	for _, ch := range s.pushSubs {
		select {
		case ch <- msg:
		default:
		}
	}
}
