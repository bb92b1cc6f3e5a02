package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitfsorg/libvoicemail-go/logging"
)

// MaxRequestBytes bounds a request body. The payload hint carries a raw
// transaction holding the audio field, so this is generous.
const MaxRequestBytes = 32 << 20

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailbox_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailbox_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	messagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailbox_messages_stored_total",
		Help: "Notifications accepted for delivery",
	})

	messagesAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailbox_messages_acknowledged_total",
		Help: "Notifications removed by acknowledgment",
	})
)

// Server exposes a Mailbox over HTTP.
type Server struct {
	mb  Mailbox
	log logging.Logger
	Now func() time.Time
}

// NewServer returns a server for mb.
func NewServer(mb Mailbox, log logging.Logger) *Server {
	return &Server{mb: mb, log: logging.OrNop(log), Now: time.Now}
}

// Handler returns the routed handler, including /health and /metrics.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/messages", s.SendMessageHandler).Methods(http.MethodPost)
	v1.HandleFunc("/messages", s.ListMessagesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/messages/acknowledge", s.AcknowledgeHandler).Methods(http.MethodPost)
	return r
}

// SendMessageHandler stores a notification from the caller.
func (s *Server) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/v1/messages"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	sender, ok := s.identity(w, r, endpoint)
	if !ok {
		return
	}
	var req sendRequest
	if !s.decode(w, r, endpoint, &req) {
		return
	}
	n, err := newNotification(sender, req.Recipient, req.MessageBox, req.ReferenceID, req.Body, s.Now())
	if err != nil {
		s.respondError(w, r, endpoint, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.mb.Put(n); err != nil {
		s.log.Error(r.Context(), "store notification", "error", err)
		s.respondError(w, r, endpoint, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	messagesStored.Inc()
	s.log.Debug(r.Context(), "notification stored", "id", n.ID, "recipient", n.Recipient, "box", n.MessageBox)
	s.respond(w, r, endpoint, http.StatusCreated, sendResponse{MessageID: n.ID})
}

// ListMessagesHandler lists the caller's box given by the box query parameter.
func (s *Server) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/v1/messages"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	recipient, ok := s.identity(w, r, endpoint)
	if !ok {
		return
	}
	box := r.URL.Query().Get("box")
	if box == "" {
		s.respondError(w, r, endpoint, http.StatusBadRequest, "Missing box parameter")
		return
	}
	msgs, err := s.mb.List(recipient, box)
	if err != nil {
		s.log.Error(r.Context(), "list notifications", "error", err)
		s.respondError(w, r, endpoint, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if msgs == nil {
		msgs = []*Notification{}
	}
	s.respond(w, r, endpoint, http.StatusOK, listResponse{Messages: msgs})
}

// AcknowledgeHandler removes notifications of the caller. Repeating an
// acknowledgment succeeds and removes nothing.
func (s *Server) AcknowledgeHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/v1/messages/acknowledge"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	recipient, ok := s.identity(w, r, endpoint)
	if !ok {
		return
	}
	var req ackRequest
	if !s.decode(w, r, endpoint, &req) {
		return
	}
	if len(req.MessageIDs) == 0 {
		s.respondError(w, r, endpoint, http.StatusUnprocessableEntity, "messageIds required")
		return
	}
	n, err := s.mb.Ack(recipient, req.MessageIDs)
	if err != nil {
		s.log.Error(r.Context(), "acknowledge notifications", "error", err)
		s.respondError(w, r, endpoint, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	messagesAcknowledged.Add(float64(n))
	s.respond(w, r, endpoint, http.StatusOK, ackResponse{Acknowledged: n})
}

func (s *Server) identity(w http.ResponseWriter, r *http.Request, endpoint string) (string, bool) {
	_, id, err := ParseIdentity(r.Header.Get(HeaderIdentity))
	if err != nil {
		s.respondError(w, r, endpoint, http.StatusUnauthorized, "Missing or invalid "+HeaderIdentity+" header")
		return "", false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, endpoint string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, endpoint, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		s.respondError(w, r, endpoint, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, endpoint string, code int, payload any) {
	httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, payload)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, endpoint string, code int, message string) {
	s.respond(w, r, endpoint, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
