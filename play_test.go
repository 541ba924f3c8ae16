package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/quizbox/category"
	"github.com/Seednode/quizbox/library"
	"github.com/Seednode/quizbox/quiz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Mode    quiz.Mode       `json:"mode"`
	Title   string          `json:"title"`
	Players int             `json:"players"`
	State   json.RawMessage `json:"state"`
	Correct bool            `json:"correct"`
	Message string          `json:"message"`
}

func (ts *testServer) newSession(t *testing.T, mode quiz.Mode, gameID string) string {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(ts.URL + "/play/" + string(mode) + "/" + gameID)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/play/"+string(mode)+"/"+gameID+"/"), loc)

	return loc
}

func (ts *testServer) dial(t *testing.T, page string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + page + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	})

	return conn
}

func read(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestPlay_SortSession(t *testing.T) {
	ts := newTestServer(t)
	g := ts.seed(t)

	page := ts.newSession(t, quiz.ModeSort, g.ID)

	resp := ts.do(t, http.MethodGet, page, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn := ts.dial(t, page)

	msg := read(t, conn)
	require.Equal(t, "state", msg.Type)
	assert.Equal(t, quiz.ModeSort, msg.Mode)
	assert.Equal(t, "Party Night", msg.Title)
	assert.Equal(t, 1, msg.Players)

	var state quiz.SortState
	require.NoError(t, json.Unmarshal(msg.State, &state))
	assert.Len(t, state.Pool, 3)
	assert.Len(t, state.Columns, 2)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "drop", Answer: "Red", Category: "Shapes"}))

	msg = read(t, conn)
	require.Equal(t, "result", msg.Type)
	assert.False(t, msg.Correct)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "drop", Answer: "Circle", Category: "Shapes"}))

	msg = read(t, conn)
	require.Equal(t, "result", msg.Type)
	assert.True(t, msg.Correct)

	msg = read(t, conn)
	require.NoError(t, json.Unmarshal(msg.State, &state))
	assert.Equal(t, quiz.PointsPerCorrect, state.Score)
	assert.Len(t, state.Pool, 2)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "drop", Answer: "Purple", Category: "Colors"}))

	msg = read(t, conn)
	assert.Equal(t, "error", msg.Type)

	second := ts.dial(t, page)
	msg = read(t, second)
	assert.Equal(t, 2, msg.Players)
	require.NoError(t, json.Unmarshal(msg.State, &state))
	assert.Equal(t, quiz.PointsPerCorrect, state.Score, "boards are shared")

	require.NoError(t, second.WriteJSON(ClientMessage{Type: "restart"}))

	msg = read(t, second)
	require.NoError(t, json.Unmarshal(msg.State, &state))
	assert.Zero(t, state.Score)
	assert.Len(t, state.Pool, 3)
}

func TestPlay_MultipleChoiceSession(t *testing.T) {
	ts := newTestServer(t)
	g := ts.seed(t)

	page := ts.newSession(t, quiz.ModeMultipleChoice, g.ID)
	conn := ts.dial(t, page)

	msg := read(t, conn)
	require.Equal(t, quiz.ModeMultipleChoice, msg.Mode)

	var state quiz.MultipleChoiceState
	require.NoError(t, json.Unmarshal(msg.State, &state))
	require.Len(t, state.Questions, 3)

	right := map[string]string{"Colors": "Red", "Shapes": "Circle"}
	for i, q := range state.Questions {
		option := right[q.Category]
		if q.Category == "Colors" {
			for _, o := range q.Options {
				if o == "Green" || o == "Red" {
					option = o
					break
				}
			}
		}

		require.NoError(t, conn.WriteJSON(ClientMessage{Type: "answer", Question: i, Option: option}))

		msg = read(t, conn)
		require.Equal(t, "result", msg.Type, msg.Message)
		assert.True(t, msg.Correct)
		read(t, conn)
	}

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "goto", Question: 0}))

	msg = read(t, conn)
	require.NoError(t, json.Unmarshal(msg.State, &state))
	assert.True(t, state.Done)
	assert.Equal(t, 3*quiz.PointsPerCorrect, state.Score)
	for _, q := range state.Questions {
		assert.Equal(t, q.Selected, q.Correct, "answers are revealed once played")
	}
}

func TestPlay_Errors(t *testing.T) {
	ts := newTestServer(t)
	g := ts.seed(t)

	resp := ts.do(t, http.MethodGet, "/play/chess/"+g.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/play/sort/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/play/sort/"+g.ID+"/nohub", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	page := ts.newSession(t, quiz.ModeSort, g.ID)

	resp = ts.do(t, http.MethodGet, strings.Replace(page, "/sort/", "/multiple-choice/", 1), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "hub is bound to its mode")

	empty := &library.Game{Title: "Empty"}
	require.NoError(t, ts.lib.Put(context.Background(), empty))

	resp = ts.do(t, http.MethodGet, "/play/sort/"+empty.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlay_QRCode(t *testing.T) {
	ts := newTestServer(t)
	g := ts.seed(t)

	page := ts.newSession(t, quiz.ModeSort, g.ID)

	resp := ts.do(t, http.MethodGet, page+"/qr.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	req, err := http.NewRequest(http.MethodGet, "http://quiz.example"+page+"/qr.png", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://quiz.example"+page, shareURL(ts.cfg, req))
}

func TestGameManager_Reap(t *testing.T) {
	lib, err := library.Open(library.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer lib.Close()

	ctx := context.Background()
	g := &library.Game{Title: "Reap", Categories: []category.Category{{Name: "A", Answers: []string{"1"}}}}
	require.NoError(t, lib.Put(ctx, g))

	gm := newGameManager(lib, time.Minute)
	gm.seed = func() uint64 { return 7 }

	hub, err := gm.create(ctx, &Config{}, quiz.ModeSort, g.ID)
	require.NoError(t, err)
	assert.Len(t, hub.id, 8)

	got, err := gm.get(quiz.ModeSort, g.ID, hub.id)
	require.NoError(t, err)
	assert.Same(t, hub, got)

	assert.Empty(t, gm.reap(time.Now()))

	player := &Client{send: make(chan any, 1)}
	hub.mu.Lock()
	hub.clients[player] = true
	hub.mu.Unlock()

	assert.Empty(t, gm.reap(time.Now().Add(2*time.Minute)), "hubs with players stay open")

	hub.mu.Lock()
	delete(hub.clients, player)
	hub.mu.Unlock()

	assert.Equal(t, []string{hub.id}, gm.reap(time.Now().Add(2*time.Minute)))

	_, err = gm.get(quiz.ModeSort, g.ID, hub.id)
	assert.ErrorIs(t, err, errNoSession)
}
