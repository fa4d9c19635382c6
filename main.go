package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/nightshade3d/scene-api/scene"
)

func setCors(h http.Handler) http.Handler {
	origin := os.Getenv("ORIGIN")
	if origin == "" {
		origin = "http://localhost:8080"
		log.Printf("defaulting to origin %s", origin)
	}

	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

func newRouter(world *scene.World, hub *Hub, stateManager *StateManager) *mux.Router {
	router := mux.NewRouter()

	router.Handle("/health", healthController{world: world})

	router.HandleFunc("/ws", func(response http.ResponseWriter, request *http.Request) {
		ServeWs(hub, stateManager, response, request)
	})

	router.Handle("/events", observerController{hub: hub})

	return router
}

func main() {
	world := scene.NewWorld()

	secret := os.Getenv("STATE_SECRET")
	if secret == "" {
		secret = "nightshade-dev-secret"
		log.Printf("defaulting to development state secret")
	}
	stateManager := NewStateManager([]byte(secret))

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		log.Printf("mirroring scene events through redis at %s", addr)
	}

	hub := NewHub(world, rdb)
	go hub.Run(context.Background())

	router := newRouter(world, hub, stateManager)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9124"
		log.Printf("defaulting to port %s", port)
	}

	log.Printf("listening on port %s", port)
	if err := http.ListenAndServe(":"+port, setCors(router)); err != nil {
		log.Fatal(err)
	}
}
