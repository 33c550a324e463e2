package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/fluentflow/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

type apiFixture struct {
	t       *testing.T
	mux     *http.ServeMux
	manager *Manager
	tokens  *jwt.Manager
}

func newAPIFixture(t *testing.T, total int) *apiFixture {
	t.Helper()
	m := newTestManager(newFakeHub(), testOptions(total))
	tokens := jwt.NewManager(jwt.TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour})
	mux := http.NewServeMux()
	NewHTTPHandlers(m, tokens, zerolog.Nop()).Register(mux)
	return &apiFixture{t: t, mux: mux, manager: m, tokens: tokens}
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) create(difficulty string) CreateSessionResponse {
	f.t.Helper()
	rr := f.do(http.MethodPost, "/v1/sessions", "", CreateSessionRequest{Difficulty: difficulty})
	require.Equal(f.t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp CreateSessionResponse
	require.NoError(f.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httperrors.ErrorResponse {
	t.Helper()
	var body httperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) ws.StatePayload {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var st ws.StatePayload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	return st
}

func TestCreateSession(t *testing.T) {
	f := newAPIFixture(t, 2)

	resp := f.create("toefl advanced")
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "TOEFL Advanced", resp.State.Difficulty)
	assert.Equal(t, "idle", resp.State.Status)
	assert.Equal(t, 60, resp.State.TimeRemainingSeconds)

	claims, err := f.tokens.ValidateSessionToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, claims.SessionID)

	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	assert.Equal(t, http.StatusCreated, rr.Code, "body is optional")

	rr = f.do(http.MethodPost, "/v1/sessions", "", CreateSessionRequest{Difficulty: "IELTS"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, httperrors.ErrCodeUnknownDifficulty, decodeError(t, rr).Error)

	rr = f.do(http.MethodGet, "/v1/sessions", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSessionRoutesRequireMatchingToken(t *testing.T) {
	f := newAPIFixture(t, 2)
	a := f.create("")
	b := f.create("")

	rr := f.do(http.MethodGet, "/v1/sessions/"+a.SessionID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, httperrors.ErrCodeAuthenticationRequired, decodeError(t, rr).Error)

	rr = f.do(http.MethodGet, "/v1/sessions/"+a.SessionID, b.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidToken, decodeError(t, rr).Error)

	rr = f.do(http.MethodGet, "/v1/sessions/"+a.SessionID+"?token="+a.Token, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	f.manager.Remove(a.SessionID)
	rr = f.do(http.MethodGet, "/v1/sessions/"+a.SessionID, a.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestIntentsDriveSessionToResults(t *testing.T) {
	f := newAPIFixture(t, 2)
	s := f.create("")
	base := "/v1/sessions/" + s.SessionID

	rr := f.do(http.MethodGet, base+"/results", s.Token, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	errBody := decodeError(t, rr)
	assert.Equal(t, httperrors.ErrCodeResultsNotReady, errBody.Error)
	assert.Equal(t, "idle", errBody.Status)

	st := decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeStart}))
	assert.Equal(t, "awaiting_answer", st.Status)
	require.NotNil(t, st.Question)
	assert.Equal(t, 1, st.Question.Number)
	assert.Len(t, st.Question.Options, 4)

	rr = f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeRetry})
	assert.Equal(t, http.StatusConflict, rr.Code)
	errBody = decodeError(t, rr)
	assert.Equal(t, httperrors.ErrCodeInvalidTransition, errBody.Error)
	assert.Equal(t, "awaiting_answer", errBody.Status)

	decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeSelectAnswer, Answer: "b) y"}))
	st = decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeSubmitAnswer}))
	assert.Equal(t, 1, st.AnsweredCount)
	require.NotNil(t, st.Feedback)
	assert.True(t, st.Feedback.Correct)

	st = decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeSubmitAnswer, Answer: "a) x"}))
	assert.Equal(t, "completed", st.Status)
	assert.Equal(t, "all_answered", st.CompletionReason)

	rr = f.do(http.MethodPost, base+"/ratings", s.Token, RateRequest{SequenceID: 1, Rating: 6})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "rating", decodeError(t, rr).Field)

	rr = f.do(http.MethodPost, base+"/ratings", s.Token, RateRequest{SequenceID: 2, Rating: 4})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, base+"/results", s.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res ResultsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "all_answered", res.Reason)
	assert.Equal(t, 2, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Correct)
	assert.Equal(t, 50.0, res.Summary.CorrectRate)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "b) y", res.Records[0].CorrectAnswer)
	assert.False(t, res.Records[1].IsCorrect)
	assert.Equal(t, map[int]int{2: 4}, res.Ratings)
}

func TestSubmitIntentCarriesFeedbackOnceNextQuestionIsReady(t *testing.T) {
	f := newAPIFixture(t, 3)
	s := f.create("")
	base := "/v1/sessions/" + s.SessionID

	decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeStart}))

	st := decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeSubmitAnswer, Answer: "a) x"}))
	assert.Equal(t, "awaiting_answer", st.Status)
	require.NotNil(t, st.Question)
	assert.Equal(t, 2, st.Question.Number)
	require.NotNil(t, st.Feedback)
	assert.Equal(t, 1, st.Feedback.SequenceID)
	assert.False(t, st.Feedback.Correct)
	assert.Equal(t, "Incorrect. The correct answer is b) y.", st.Feedback.Message)

	// A later poll reflects the session, where feedback cleared with the new question.
	st = decodeState(t, f.do(http.MethodGet, base, s.Token, nil))
	assert.Nil(t, st.Feedback)

	st = decodeState(t, f.do(http.MethodPost, base+"/intents", s.Token, Intent{Type: ws.TypeSkip}))
	assert.Nil(t, st.Feedback, "skips produce no feedback")
}

func TestApplyIntentValidation(t *testing.T) {
	f := newAPIFixture(t, 2)
	s := f.create("")
	path := "/v1/sessions/" + s.SessionID + "/intents"

	rr := f.do(http.MethodPost, path, s.Token, Intent{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, httperrors.ErrCodeValidationFailed, decodeError(t, rr).Error)

	rr = f.do(http.MethodPost, path, s.Token, Intent{Type: "teleport"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, httperrors.ErrCodeUnknownMessageType, decodeError(t, rr).Error)

	rr = f.do(http.MethodPost, path, s.Token, Intent{Type: ws.TypeSetDifficulty, Difficulty: "TOEFL Junior"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, httperrors.ErrCodeUnknownDifficulty, decodeError(t, rr).Error)

	st := decodeState(t, f.do(http.MethodPost, path, s.Token, Intent{Type: ws.TypeSetDifficulty, Difficulty: "toefl native"}))
	assert.Equal(t, "TOEFL Native", st.Difficulty)

	rr = f.do(http.MethodPost, path, s.Token, Intent{Type: ws.TypeRate, SequenceID: 1, Rating: 3})
	assert.Equal(t, http.StatusConflict, rr.Code, "ratings are only accepted after completion")
}
