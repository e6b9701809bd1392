package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"reConnectAPI/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub *services.Hub
}

func NewWSHandler(hub *services.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
	}
}

// HandleConnection upgrades to a WebSocket and starts the pumps. The client
// is anonymous until it sends its auth frame; buffered notifications flush
// at that point.
func (h *WSHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Could not upgrade connection: %v", err)
		return
	}

	client := services.NewClient(h.hub, conn)

	go client.WritePump()
	go client.ReadPump()
}
