package internal

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shareboard/internal/logging"
	"shareboard/internal/storage"
)

// ServerOptions tunes the gateway. Zero values fall back to sane defaults.
type ServerOptions struct {
	UploadDir      string
	MaxFileSize    int64
	FrontendOrigin string // CORS origin; empty allows any (LAN deployment)
	WriteRPS       float64
	WriteBurst     int
}

// Server is the gateway: it decodes HTTP and websocket input, drives the
// content store and presence registry, and publishes accepted mutations to
// the hub.
type Server struct {
	store        storage.Store
	hub          *Hub
	presence     *PresenceRegistry
	metrics      *Metrics
	writeLimiter *limiterPool
	opts         ServerOptions
}

// NewServer wires the hub, presence registry, and metrics around the given
// store and starts the hub's dispatch loop.
func NewServer(store storage.Store, opts ServerOptions) *Server {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 10 << 20
	}
	metrics := NewMetrics()
	hub := NewHub(metrics)
	go hub.Run()
	return &Server{
		store:        store,
		hub:          hub,
		presence:     NewPresenceRegistry(),
		metrics:      metrics,
		writeLimiter: newLimiterPool(opts.WriteRPS, opts.WriteBurst),
		opts:         opts,
	}
}

// Presence exposes the registry, mainly for tests and diagnostics.
func (s *Server) Presence() *PresenceRegistry { return s.presence }

// Metrics exposes the server's metric set.
func (s *Server) Metrics() *Metrics { return s.metrics }

type createTextRequest struct {
	Content string `json:"content"`
}

func (s *Server) HandleListContent(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListContent(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) HandleAddText(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	var req createTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := s.store.AddContent(r.Context(), storage.KindText, req.Content, "")
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.metrics.ContentOps.WithLabelValues("add").Inc()
	// REST-originated events include the originator so every tab on the
	// posting device updates, not just the other peers.
	s.hub.BroadcastAll(EventSyncUpdate, item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) HandleDeleteContent(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	id := pathVar(r, "id")
	deleted, err := s.store.DeleteContent(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.New("content not found"))
		return
	}
	s.metrics.ContentOps.WithLabelValues("delete").Inc()
	s.hub.BroadcastAll(EventSyncDelete, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "content deleted"})
}

func (s *Server) HandleClearContent(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	if err := s.store.ClearContent(r.Context()); err != nil {
		s.storeError(w, err)
		return
	}
	s.metrics.ContentOps.WithLabelValues("clear").Inc()
	s.hub.BroadcastAll(EventSyncClear, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "all content cleared"})
}

// HandleLocalIP reports the machine's LAN address so the frontend can
// render a QR code other devices can scan.
func (s *Server) HandleLocalIP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ip": LocalIP()})
}

func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the board serves arbitrary devices on the local network.
		return true
	},
}

// ServeWS upgrades the request and registers the connection with the hub.
// The connection only shows up in presence once it sends user-join.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Error("websocket upgrade", "err", err)
		return
	}
	client := newClient(s.hub, s.presence, conn, uuid.NewString(), s.clientIP(r))
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) allowWrite(w http.ResponseWriter, r *http.Request) bool {
	if !s.writeLimiter.Allow(s.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return false
	}
	return true
}

func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalizeIP(host)
}

// storeError translates the storage taxonomy into HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		logging.Log.Error("store failure", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("storage failure"))
	}
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// LocalIP returns the first non-loopback IPv4 address, or 0.0.0.0 when the
// machine has none.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "0.0.0.0"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "0.0.0.0"
}

// corsMiddleware mirrors the original deployment: the browser frontend is
// served from a different port on the same host.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
