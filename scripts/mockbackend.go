//go:build ignore

// mockbackend serves a small fake of the video API for local drills. It
// answers /health, /videos, /videos/{id}/detections,
// /detections/{id}/products and PATCH /videos/{id}.
//
// Usage:
//
//	go run mockbackend.go -port 8081
//	go run mockbackend.go -port 8082 -fail-rate 0.3 -latency 200ms
//	go run mockbackend.go -port 8081 -health degraded
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

type server struct {
	name     string
	failRate float64
	latency  time.Duration
	health   string
}

func main() {
	var (
		port     = flag.Int("port", 8081, "Port to listen on")
		name     = flag.String("name", "", "Name reported in responses (default: backend-<port>)")
		failRate = flag.Float64("fail-rate", 0, "Fraction of API calls answered with 500")
		latency  = flag.Duration("latency", 0, "Delay added to every API call")
		health   = flag.String("health", "healthy", "Status reported by /health")
	)
	flag.Parse()

	s := &server{name: *name, failRate: *failRate, latency: *latency, health: *health}
	if s.name == "" {
		s.name = fmt.Sprintf("backend-%d", *port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /videos", s.api(s.videos))
	mux.HandleFunc("PATCH /videos/{id}", s.api(s.updateVideo))
	mux.HandleFunc("GET /videos/{id}/detections", s.api(s.detections))
	mux.HandleFunc("GET /detections/{id}/products", s.api(s.products))

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("%s listening on %s", s.name, addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if s.health == "degraded" {
		database = "slow"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   s.health,
		"database": database,
		"cache":    "ok",
	})
}

func (s *server) api(fn func(r *http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s request_id=%s", r.Method, r.URL.RequestURI(), r.Header.Get("X-Request-ID"))

		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if s.failRate > 0 && rand.Float64() < s.failRate {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "injected failure"})
			return
		}
		writeJSON(w, http.StatusOK, fn(r))
	}
}

func (s *server) videos(r *http.Request) any {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "demo-user"
	}
	now := time.Now().UTC()
	return []map[string]any{
		{"id": "v1", "user_id": userID, "video_path": "uploads/v1.mp4", "status": "completed", "created_at": now, "updated_at": now},
		{"id": "v2", "user_id": userID, "video_path": "uploads/v2.mp4", "status": "processing", "created_at": now, "updated_at": now},
	}
}

func (s *server) updateVideo(r *http.Request) any {
	var body struct {
		Status string `json:"status"`
	}
	_ = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body)
	return map[string]any{"id": r.PathValue("id"), "status": body.Status, "updated_at": time.Now().UTC(), "served_by": s.name}
}

func (s *server) detections(r *http.Request) any {
	return []map[string]any{{
		"id":         uuid.NewString(),
		"video_id":   r.PathValue("id"),
		"label":      "sneaker",
		"confidence": 0.91,
		"bbox":       map[string]float64{"x1": 12, "y1": 40, "x2": 180, "y2": 220},
		"created_at": time.Now().UTC(),
	}}
}

func (s *server) products(r *http.Request) any {
	return []map[string]any{{
		"id":               uuid.NewString(),
		"detection_id":     r.PathValue("id"),
		"label":            "sneaker",
		"brand":            "Acme",
		"match_type":       "visual",
		"similarity_score": 0.87,
	}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
