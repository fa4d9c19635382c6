package main

import (
	"fmt"
	"net/http"
)

// observerController streams broadcast scene events to read-only observers
// over server-sent events. Observers never issue commands; they see the
// same entity_spawned/entity_despawned stream the websocket sessions do.
type observerController struct {
	hub *Hub
}

func (c observerController) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	flusher, ok := rw.(http.Flusher)

	if !ok {
		http.Error(rw, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")

	messageChan := make(chan []byte, 256)

	c.hub.addObserver <- messageChan

	defer func() {
		c.hub.removeObserver <- messageChan
	}()

	fmt.Fprint(rw, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	notify := req.Context().Done()

	for {
		select {
		case m, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(rw, "data: %s\n\n", m)
			flusher.Flush()

		case <-notify:
			return
		}
	}
}
