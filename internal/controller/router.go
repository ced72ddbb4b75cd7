package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Get("/room/{code}", c.resolveRoom)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", c.createRoom)
			r.Get("/", c.listActiveRooms)
			r.Get("/code/{code}", c.resolveRoom)
			r.Route("/{room-id}", func(r chi.Router) {
				r.Get("/", c.getRoom)
				r.Post("/close", c.closeRoom)
				r.Patch("/playback", c.updatePlayback)
				r.Route("/participants", func(r chi.Router) {
					r.Post("/", c.joinRoom)
					r.Get("/", c.listParticipants)
					r.Delete("/{participant-id}", c.leaveRoom)
					r.Post("/{participant-id}/heartbeat", c.heartbeat)
				})
				r.Route("/messages", func(r chi.Router) {
					r.Post("/", c.postMessage)
					r.Get("/", c.listMessages)
				})
			})
		})
		r.Route("/ws", func(r chi.Router) {
			r.Get("/rooms/{room-id}", c.subscribe)
		})
	})

	return r
}
