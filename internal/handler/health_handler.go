package handler

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness, and database reachability when db is set.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
				return
			}
		}
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
