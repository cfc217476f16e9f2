package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/retriever"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type      string   `json:"type"`       // "ask"
	SessionID string   `json:"session_id"` // empty starts a new session
	Content   string   `json:"content"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type      string                   `json:"type"` // "answer" or "error"
	SessionID string                   `json:"session_id"`
	Turn      *domain.ConversationTurn `json:"turn,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "", "invalid message format")
			continue
		}
		if req.Type != "ask" {
			s.sendError(conn, req.SessionID, "unknown message type: "+req.Type)
			continue
		}
		if req.Content == "" {
			s.sendError(conn, req.SessionID, "content is required")
			continue
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		policy, err := retriever.Resolve(req.TopK, req.Threshold, s.assistant.DefaultPolicy())
		if err != nil {
			s.sendError(conn, req.SessionID, err.Error())
			continue
		}
		turn, err := s.answer(r, req.Content, req.SessionID, policy)
		if err != nil {
			s.sendError(conn, req.SessionID, err.Error())
			continue
		}
		s.send(conn, chatResponse{Type: "answer", SessionID: req.SessionID, Turn: &turn})
	}
}

// answer runs a query and records the turn in history when one is configured.
func (s *Server) answer(r *http.Request, question, sessionID string, policy retriever.Policy) (domain.ConversationTurn, error) {
	turn, err := s.assistant.AnswerQuery(r.Context(), question, policy)
	if err != nil {
		return turn, err
	}
	turn.SessionID = sessionID
	if s.history == nil {
		return turn, nil
	}
	saved, err := s.history.Append(r.Context(), turn)
	if err != nil {
		log.Printf("server: recording turn: %v", err)
		return turn, nil
	}
	return saved, nil
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, sessionID, message string) {
	s.send(conn, chatResponse{Type: "error", SessionID: sessionID, Error: message})
}
