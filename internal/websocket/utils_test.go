package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// echoServer reads one envelope per frame and reports what it saw.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			env, err := ReadEnvelope(conn)
			if errors.Is(err, ErrMalformedMessage) {
				_ = WriteError(conn, "INVALID_PAYLOAD", err.Error())
				continue
			}
			if err != nil {
				return
			}
			switch env.Action {
			case ActionAutosave:
				var req AutosaveRequest
				if err := env.Decode(&req); err != nil {
					_ = WriteError(conn, "INVALID_PAYLOAD", err.Error())
					continue
				}
				_ = WriteTyped(conn, SavedResponse{Event: EventSaved, QuestionID: req.QuestionID})
			case ActionSubmit:
				var req SubmitRequest
				if err := env.Decode(&req); err != nil {
					_ = WriteError(conn, "INVALID_PAYLOAD", err.Error())
					continue
				}
				_ = WriteTyped(conn, GradedResponse{Event: EventGraded, TotalQuestions: len(req.Answers)})
			default:
				_ = WriteTyped(conn, PongResponse{Event: EventPong})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestReadEnvelope(t *testing.T) {
	conn := dial(t, echoServer(t))

	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, got map[string]any)
	}{
		{"malformed frame keeps the stream open", `{not json`, func(t *testing.T, got map[string]any) {
			if got["event"] != string(EventError) || got["code"] != "INVALID_PAYLOAD" {
				t.Errorf("got %v", got)
			}
		}},
		{"autosave", `{"action":"autosave","question_id":7,"values":["B"]}`, func(t *testing.T, got map[string]any) {
			if got["event"] != string(EventSaved) || got["question_id"] != float64(7) {
				t.Errorf("got %v", got)
			}
		}},
		{"submit with mixed answer shapes", `{"action":"submit","answers":{"1":"A","2":["B","C"],"3":null}}`, func(t *testing.T, got map[string]any) {
			if got["event"] != string(EventGraded) || got["total_questions"] != float64(3) {
				t.Errorf("got %v", got)
			}
		}},
		{"ping", `{"action":"ping"}`, func(t *testing.T, got map[string]any) {
			if got["event"] != string(EventPong) {
				t.Errorf("got %v", got)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)); err != nil {
				t.Fatal(err)
			}
			var got map[string]any
			if err := conn.ReadJSON(&got); err != nil {
				t.Fatal(err)
			}
			tt.check(t, got)
		})
	}
}
