package engine

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Server wires a Game to the HTTP/admin facade (spec.md §6). It is a
// thin translation layer: every handler decodes, validates, and turns
// the request into a command enqueued onto the Game, never touching
// GameState directly (spec.md §3 "Ownership").
type Server struct {
	game    *Game
	schemas *schemaSet
	mux     *http.ServeMux
}

// NewServer builds the HTTP surface around an already-constructed Game.
func NewServer(game *Game) (*Server, error) {
	schemas, err := newSchemaSet()
	if err != nil {
		return nil, err
	}
	s := &Server{game: game, schemas: schemas}
	s.mux = s.buildMux()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/submit", s.handleSubmit)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/docs/ai-contract", s.handleAIContract)
	mux.HandleFunc("/api/admin/start", s.handleAdminControl("start"))
	mux.HandleFunc("/api/admin/pause", s.handleAdminControl("pause"))
	mux.HandleFunc("/api/admin/reset", s.handleAdminControl("reset"))
	mux.HandleFunc("/api/admin/snake/", s.handleAdminRemoveSnake)
	mux.HandleFunc("/api/admin/config", s.handleAdminConfig)
	mux.HandleFunc("/api/admin/stats", s.handleAdminStats)
	mux.HandleFunc("/ws", s.game.HandleSpectatorWS)
	return mux
}

func decodeJSON(r *http.Request) (map[string]interface{}, []byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, nil, err
	}
	var v map[string]interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	return v, raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, _, err := decodeJSON(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.schemas.register.Validate(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, _ := body["name"].(string)
	aiFunction, _ := body["aiFunction"].(string)

	reply := make(chan registerResult, 1)
	s.game.enqueue(registerCmd{name: name, aiSource: aiFunction, reply: reply})
	res := <-reply
	if res.Err != nil {
		writeError(w, http.StatusBadRequest, res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snakeId": res.Snake.ID,
		"color":   res.Snake.Color,
		"message": "registered",
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, _, err := decodeJSON(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.schemas.submit.Validate(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snakeID, _ := body["snakeId"].(string)
	aiFunction, _ := body["aiFunction"].(string)
	lineCount := strings.Count(aiFunction, "\n") + 1

	reply := make(chan registerResult, 1)
	s.game.enqueue(submitCmd{id: snakeID, aiSource: aiFunction, lineCount: lineCount, reply: reply})
	res := <-reply
	if res.Err != nil {
		status := http.StatusBadRequest
		if res.Err == ErrSnakeNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snakeId": res.Snake.ID, "message": "submitted"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	reply := make(chan StateView, 1)
	s.game.enqueue(stateReqCmd{reply: reply})
	writeJSON(w, http.StatusOK, <-reply)
}

func (s *Server) handleAIContract(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entryPoint": "move(state)",
		"input": map[string]interface{}{
			"you":    map[string]string{"id": "string", "x": "number", "y": "number", "angle": "number", "speed": "number", "segments": "[{x,y}]", "length": "int"},
			"arena":  map[string]string{"radius": "number"},
			"snakes": "[{id,name,x,y,angle,segments,length,alive}]",
			"food":   "[{x,y,value}]",
			"tick":   "integer",
		},
		"output": map[string]interface{}{
			"targetAngle": "number in radians, or an {x,y} point, or null for no steering this tick",
			"error":       "string or null",
		},
		"helpers": []string{"angleTo(x1,y1,x2,y2)", "distTo(x1,y1,x2,y2)", "distFromCenter(x,y)"},
		"timeoutMs": s.game.cfg.AITimeoutMs,
	})
}

func (s *Server) handleAdminControl(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		reply := make(chan error, 1)
		s.game.enqueue(controlCmd{action: action, reply: reply})
		if err := <-reply; err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleAdminRemoveSnake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "DELETE required")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/snake/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing snake id")
		return
	}
	reply := make(chan error, 1)
	s.game.enqueue(removeCmd{id: id, reply: reply})
	if err := <-reply; err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, raw, err := decodeJSON(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.schemas.config.Validate(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch ConfigPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config patch")
		return
	}

	reply := make(chan struct{}, 1)
	s.game.enqueue(configCmd{patch: patch, reply: reply})
	<-reply
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	reply := make(chan AdminStats, 1)
	s.game.enqueue(adminStatsCmd{reply: reply})
	writeJSON(w, http.StatusOK, <-reply)
}
