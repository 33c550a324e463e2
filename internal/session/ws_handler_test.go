package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/fluentflow/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

type wsFixture struct {
	srv     *httptest.Server
	manager *Manager
	tokens  *jwt.Manager
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	hub := ws.NewHub(zerolog.Nop())
	m := NewManager(&countingSource{}, hub, testOptions(2), zerolog.Nop())
	tokens := jwt.NewManager(jwt.TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour})
	h := NewWSHandler(m, hub, tokens, websocket.Upgrader{}, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/sessions/{id}", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &wsFixture{srv: srv, manager: m, tokens: tokens}
}

func (f *wsFixture) url(sessionID, token string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/sessions/" + sessionID + "?token=" + token
}

func (f *wsFixture) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	s, err := f.manager.Create("")
	require.NoError(t, err)
	token, _, err := f.tokens.GenerateSessionToken(s.ID())
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(s.ID(), token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, s.ID()
}

func readWS(t *testing.T, c *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, c.ReadJSON(&msg))
	return msg
}

func TestWSHandlerRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)
	s, err := f.manager.Create("")
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(f.url(s.ID(), "garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSHandlerSessionFlow(t *testing.T) {
	f := newWSFixture(t)
	conn, sessionID := f.dial(t)

	hello := readWS(t, conn)
	assert.Equal(t, ws.TypeState, hello.Type)
	var st ws.StatePayload
	require.NoError(t, json.Unmarshal(hello.Payload, &st))
	assert.Equal(t, sessionID, st.SessionID)
	assert.Equal(t, "idle", st.Status)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeStart, RequestID: "r1"}))

	ready := readWS(t, conn)
	assert.Equal(t, ws.TypeQuestionReady, ready.Type)
	var q ws.QuestionReadyPayload
	require.NoError(t, json.Unmarshal(ready.Payload, &q))
	assert.Equal(t, "Q1?", q.Question.Text)

	ack := readWS(t, conn)
	assert.Equal(t, ws.TypeState, ack.Type)
	assert.Equal(t, "r1", ack.RequestID)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeRetry, RequestID: "r2"}))
	rejected := readWS(t, conn)
	assert.Equal(t, ws.TypeError, rejected.Type)
	assert.Equal(t, "r2", rejected.RequestID)
	var errPayload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(rejected.Payload, &errPayload))
	assert.Equal(t, httperrors.ErrCodeInvalidTransition, errPayload.Code)

	answer, err := ws.NewMessage(ws.TypeSubmitAnswer, ws.AnswerPayload{Answer: "b) y"}, "r3")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(answer))
	assert.Equal(t, ws.TypeFeedback, readWS(t, conn).Type)
	assert.Equal(t, ws.TypeQuestionReady, readWS(t, conn).Type)
	assert.Equal(t, "r3", readWS(t, conn).RequestID)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeEndSession}))
	completed := readWS(t, conn)
	assert.Equal(t, ws.TypeCompleted, completed.Type)
	var done ws.CompletedPayload
	require.NoError(t, json.Unmarshal(completed.Payload, &done))
	assert.Equal(t, "ended", done.Reason)
	assert.Equal(t, 1, done.Summary.Correct)
	assert.Equal(t, ws.TypeState, readWS(t, conn).Type)

	rate, err := ws.NewMessage(ws.TypeRate, ws.RatePayload{SequenceID: 1, Rating: 5}, "r4")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(rate))
	assert.Equal(t, ws.TypeRated, readWS(t, conn).Type)
	assert.Equal(t, "r4", readWS(t, conn).RequestID)

	s, err := f.manager.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Rating(1))
}

func TestWSHandlerRejectsMalformedMessages(t *testing.T) {
	f := newWSFixture(t)
	conn, _ := f.dial(t)
	readWS(t, conn)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: "teleport", RequestID: "x"}))
	msg := readWS(t, conn)
	assert.Equal(t, ws.TypeError, msg.Type)
	var p ws.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, httperrors.ErrCodeUnknownMessageType, p.Code)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeRate, Payload: json.RawMessage(`"five"`)}))
	msg = readWS(t, conn)
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, httperrors.ErrCodeInvalidPayload, p.Code)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeRequestState, RequestID: "s"}))
	msg = readWS(t, conn)
	assert.Equal(t, ws.TypeState, msg.Type)
	assert.Equal(t, "s", msg.RequestID)
}

func TestDecodeIntent(t *testing.T) {
	in, err := decodeIntent(ws.Message{Type: ws.TypeSubmitAnswer})
	require.NoError(t, err)
	assert.Equal(t, Intent{Type: ws.TypeSubmitAnswer}, in)

	in, err = decodeIntent(ws.Message{Type: ws.TypeSetDifficulty, Payload: json.RawMessage(`{"difficulty":"TOEFL Native"}`)})
	require.NoError(t, err)
	assert.Equal(t, "TOEFL Native", in.Difficulty)

	_, err = decodeIntent(ws.Message{Type: ws.TypeRate})
	assert.Error(t, err)
}
