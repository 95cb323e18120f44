package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

const maxMessageSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins; room access is
	// gated by codes and tokens, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server upgrades HTTP requests to websocket sessions and feeds frames into
// the router.
type Server struct {
	router *Router
}

func NewServer(router *Router) *Server {
	return &Server{router: router}
}

// ServeHTTP implements http.Handler for the websocket endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		zlog.Warn().Msgf("websocket upgrade failed: remote=%s err=%v", req.RemoteAddr, err)
		return
	}

	clientID := uuid.NewString()
	c := newConn(socket)
	go c.writePump()

	s.router.HandleConnect(clientID, c)
	s.readPump(clientID, c)
}

// readPump reads frames until the peer goes away, then runs the disconnect
// path exactly once.
func (s *Server) readPump(clientID string, c *conn) {
	defer func() {
		s.router.HandleDisconnect(clientID)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zlog.Debug().Msgf("read: client=%s err=%v", clientID, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.router.HandleMessage(clientID, data)
	}
}
