package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/history"
	"github.com/reiness/edos-jls-chatbot/internal/retriever"
)

type searchRequest struct {
	Query     string   `json:"query" validate:"required"`
	TopK      *int     `json:"top_k" validate:"omitempty,min=1"`
	Threshold *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
}

type answerRequest struct {
	Question  string   `json:"question" validate:"required"`
	TopK      *int     `json:"top_k" validate:"omitempty,min=1"`
	Threshold *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
	SessionID string   `json:"session_id" validate:"omitempty,max=128"`
}

type indexStatus struct {
	State     string `json:"state"`
	Dimension int    `json:"dimension,omitempty"`
	Count     int    `json:"count"`
	Embedder  string `json:"embedder,omitempty"`
	BuiltAt   string `json:"built_at,omitempty"`
}

type searchResponse struct {
	Policy  string                    `json:"policy"`
	Results []domain.RetrievedPassage `json:"results"`
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/index", s.handleIndexStatus)
		r.Post("/index/rebuild", s.handleRebuild)
		r.Post("/search", s.handleSearch)
		r.Post("/answer", s.handleAnswer)
		r.Get("/history", s.handleHistory)
	})
}

func (s *Server) status() indexStatus {
	m := s.assistant.Indexes()
	st := indexStatus{State: m.State().String()}
	if ix := m.Current(); ix != nil {
		info := ix.Info()
		st.Dimension = info.Dimension
		st.Count = info.Count
		st.Embedder = info.Embedder
		if !info.BuiltAt.IsZero() {
			st.BuiltAt = info.BuiltAt.Format(time.RFC3339)
		}
	}
	return st
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if _, err := s.assistant.BuildOrLoadIndex(r.Context(), true); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	policy, err := retriever.Resolve(req.TopK, req.Threshold, s.assistant.DefaultPolicy())
	if err != nil {
		writeValidation(w, map[string]string{"policy": err.Error()})
		return
	}

	hits, err := s.assistant.Search(r.Context(), req.Query, policy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Policy: policy.String(), Results: hits})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	policy, err := retriever.Resolve(req.TopK, req.Threshold, s.assistant.DefaultPolicy())
	if err != nil {
		writeValidation(w, map[string]string{"policy": err.Error()})
		return
	}

	turn, err := s.answer(r, req.Question, req.SessionID, policy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []domain.ConversationTurn{})
		return
	}
	q := r.URL.Query()
	filter := history.Filter{SessionID: q.Get("session_id")}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	turns, err := s.history.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
