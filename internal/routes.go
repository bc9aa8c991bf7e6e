package internal

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the full HTTP surface: content and upload APIs, the
// websocket endpoint, static upload serving, discovery, and metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware(s.opts.FrontendOrigin))

	r.HandleFunc("/content", s.HandleListContent).Methods(http.MethodGet)
	r.HandleFunc("/content/text", s.HandleAddText).Methods(http.MethodPost)
	r.HandleFunc("/content/image", s.HandleAddImage).Methods(http.MethodPost)
	r.HandleFunc("/content/clear", s.HandleClearContent).Methods(http.MethodPost)
	r.HandleFunc("/content/{id}", s.HandleDeleteContent).Methods(http.MethodDelete)

	r.HandleFunc("/upload/file", s.HandleUploadFile).Methods(http.MethodPost)
	r.HandleFunc("/upload/files", s.HandleListUploads).Methods(http.MethodGet)
	r.HandleFunc("/upload/file/{url:.*}", s.HandleDeleteUpload).Methods(http.MethodDelete)

	r.HandleFunc("/network/ip", s.HandleLocalIP).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HandleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.ServeWS)

	r.PathPrefix(uploadsURLPrefix).Handler(http.StripPrefix(uploadsURLPrefix,
		http.FileServer(http.Dir(s.opts.UploadDir))))
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	return r
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
