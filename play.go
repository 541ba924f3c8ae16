/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Live play sessions.
//
// A play session is one board (a category sort or a multiple-choice quiz)
// dealt from a stored game. Everyone connected to the same session shares
// the board: a move made on one screen shows up on all of them, so a host
// can put the board on a TV while players join from their phones via the
// QR code.
//
// Routes:
//   - /play/:mode/:gameid              deals a new board and redirects to it
//   - /play/:mode/:gameid/:hubid       HTML client
//   - /play/:mode/:gameid/:hubid/ws    WebSocket for that session
//   - /play/:mode/:gameid/:hubid/qr.png  share link as a QR code
//
// Sessions are reaped after --play-timeout without activity.

package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/quizbox/category"
	"github.com/Seednode/quizbox/library"
	"github.com/Seednode/quizbox/quiz"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const writeWait = 10 * time.Second

// ClientMessage is a move sent by a browser.
type ClientMessage struct {
	Type     string `json:"type"`               // "drop", "answer", "goto", "restart"
	Answer   string `json:"answer,omitempty"`   // drop
	Category string `json:"category,omitempty"` // drop
	Question int    `json:"question,omitempty"` // answer / goto
	Option   string `json:"option,omitempty"`   // answer
}

// StateMessage carries the whole board and is broadcast after every change.
type StateMessage struct {
	Type    string    `json:"type"` // "state"
	Mode    quiz.Mode `json:"mode"`
	Title   string    `json:"title"`
	Players int       `json:"players"`
	State   any       `json:"state"`
}

// ResultMessage tells the player who moved whether they were right.
type ResultMessage struct {
	Type    string `json:"type"` // "result"
	Correct bool   `json:"correct"`
	Message string `json:"message"`
}

// SimpleMessage is for errors and notices.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type board interface {
	Done() bool
	Score() int
}

func newBoard(mode quiz.Mode, categories []category.Category, rng quiz.Shuffler) (board, error) {
	switch mode {
	case quiz.ModeSort:
		return quiz.NewSort(categories, rng)
	case quiz.ModeMultipleChoice:
		return quiz.NewMultipleChoice(categories, rng)
	}
	return nil, fmt.Errorf("%w: unknown play mode %q", errBadRequest, mode)
}

func snapshot(b board) any {
	switch v := b.(type) {
	case *quiz.Sort:
		return v.State()
	case *quiz.MultipleChoice:
		return v.State()
	}
	return nil
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type move struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id    string
	mode  quiz.Mode
	game  *library.Game
	deal  func() (board, error)
	board board

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	moves    chan move
	quit     chan struct{}
	stop     sync.Once

	mu         sync.RWMutex
	lastActive time.Time
}

func newHub(id string, mode quiz.Mode, game *library.Game, deal func() (board, error)) (*Hub, error) {
	b, err := deal()
	if err != nil {
		return nil, err
	}

	return &Hub{
		id:         id,
		mode:       mode,
		game:       game,
		deal:       deal,
		board:      b,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		moves:      make(chan move),
		quit:       make(chan struct{}),
		lastActive: time.Now(),
	}, nil
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.broadcastStateLocked()
			logf(cfg, "PLAY: Player joined %s (%d connected)", h.id, len(h.clients))
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.broadcastStateLocked()
			h.mu.Unlock()

		case m := <-h.moves:
			h.handleMove(cfg, m)

		case <-h.quit:
			return
		}
	}
}

// sendLocked drops clients whose buffers are full.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) stateLocked() StateMessage {
	return StateMessage{
		Type:    "state",
		Mode:    h.mode,
		Title:   h.game.Title,
		Players: len(h.clients),
		State:   snapshot(h.board),
	}
}

func (h *Hub) broadcastStateLocked() {
	msg := h.stateLocked()
	for c := range h.clients {
		h.sendLocked(c, msg)
	}
}

func (h *Hub) handleMove(cfg *Config, m move) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()
	wasDone := h.board.Done()

	var (
		correct bool
		text    string
		err     error
	)

	switch m.msg.Type {
	case "drop":
		s, ok := h.board.(*quiz.Sort)
		if !ok {
			return
		}
		correct, err = s.Drop(m.msg.Answer, m.msg.Category)
		if correct {
			text = fmt.Sprintf("%q belongs to %q.", m.msg.Answer, m.msg.Category)
		} else {
			text = fmt.Sprintf("%q does not belong to %q.", m.msg.Answer, m.msg.Category)
		}

	case "answer":
		mc, ok := h.board.(*quiz.MultipleChoice)
		if !ok {
			return
		}
		correct, err = mc.Answer(m.msg.Question, m.msg.Option)
		if correct {
			text = "Correct!"
		} else {
			text = fmt.Sprintf("%q is not the right answer.", m.msg.Option)
		}

	case "goto":
		mc, ok := h.board.(*quiz.MultipleChoice)
		if !ok {
			return
		}
		if err := mc.Goto(m.msg.Question); err != nil {
			h.sendLocked(m.client, SimpleMessage{Type: "error", Message: err.Error()})
			return
		}
		h.broadcastStateLocked()
		return

	case "restart":
		b, err := h.deal()
		if err != nil {
			h.sendLocked(m.client, SimpleMessage{Type: "error", Message: err.Error()})
			return
		}
		h.board = b
		logf(cfg, "PLAY: Restarted %s", h.id)
		h.broadcastStateLocked()
		return

	default:
		return
	}

	if err != nil {
		h.sendLocked(m.client, SimpleMessage{Type: "error", Message: err.Error()})
		return
	}

	h.sendLocked(m.client, ResultMessage{Type: "result", Correct: correct, Message: text})
	h.broadcastStateLocked()

	if !wasDone && h.board.Done() {
		logf(cfg, "PLAY: Finished %s (%q, %s) with %d points", h.id, h.game.Title, h.mode, h.board.Score())
	}
}

// closeAll disconnects every client and stops the hub.
func (h *Hub) closeAll() {
	h.stop.Do(func() { close(h.quit) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds the live play sessions keyed by hub ID.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	lib         *library.Library
	idleTimeout time.Duration
	seed        func() uint64
}

func newGameManager(lib *library.Library, idleTimeout time.Duration) *GameManager {
	return &GameManager{
		hubs:        make(map[string]*Hub),
		lib:         lib,
		idleTimeout: idleTimeout,
		seed:        mrand.Uint64,
	}
}

// newHubIDLocked generates a short crypto-random ID that does not collide with
// a live session.
func (gm *GameManager) newHubIDLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}

		id := string(out)
		if _, exists := gm.hubs[id]; !exists {
			return id
		}
	}
}

// create deals a board from a stored game and starts a hub for it.
func (gm *GameManager) create(ctx context.Context, cfg *Config, mode quiz.Mode, gameID string) (*Hub, error) {
	game, err := gm.lib.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	categories := make([]category.Category, len(game.Categories))
	for i, c := range game.Categories {
		categories[i] = c.Clone()
	}

	deal := func() (board, error) {
		return newBoard(mode, categories, quiz.NewRand(gm.seed()))
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, err := newHub(gm.newHubIDLocked(), mode, game, deal)
	if err != nil {
		return nil, err
	}
	gm.hubs[hub.id] = hub

	go hub.run(cfg)

	return hub, nil
}

// get finds a live hub and checks it was dealt from gameID in mode.
func (gm *GameManager) get(mode quiz.Mode, gameID, hubID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[hubID]
	if !ok || hub.mode != mode || hub.game.ID != gameID {
		return nil, fmt.Errorf("%w: %s", errNoSession, hubID)
	}

	return hub, nil
}

// reap removes hubs with no connected players that have been idle longer
// than idleTimeout.
func (gm *GameManager) reap(now time.Time) []string {
	cutoff := now.Add(-gm.idleTimeout)

	gm.mu.Lock()
	defer gm.mu.Unlock()

	var reaped []string
	for id, hub := range gm.hubs {
		if hub.connected() == 0 && hub.idleSince().Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped = append(reaped, id)
		}
	}

	return reaped
}

func (gm *GameManager) closeAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.closeAll()
	}
}

// reaperLoop periodically reaps idle hubs and closes every hub once ctx is
// done.
func (gm *GameManager) reaperLoop(ctx context.Context, cfg *Config) {
	var tick <-chan time.Time
	if gm.idleTimeout > 0 {
		ticker := time.NewTicker(gm.idleTimeout / 2)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			gm.closeAll()
			return
		case now := <-tick:
			for _, id := range gm.reap(now) {
				logf(cfg, "PLAY: Reaped idle session %s", id)
			}
		}
	}
}

func playMode(p httprouter.Params) (quiz.Mode, error) {
	mode, ok := quiz.ParseMode(p.ByName("mode"))
	if !ok {
		return "", fmt.Errorf("%w: unknown play mode %q", errBadRequest, p.ByName("mode"))
	}
	return mode, nil
}

func serveNotFoundPage(cfg *Config, w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(statusFor(err))

	io.WriteString(w, newPage("Not Found", "That play session has ended. Click to return to the library."))
}

// serveNewSession handles GET /play/:mode/:gameid by dealing a new board and
// redirecting to its page.
func serveNewSession(cfg *Config, path string, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		mode, err := playMode(p)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		hub, err := gm.create(r.Context(), cfg, mode, p.ByName("gameid"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "GAMES: Created %s session %s for %q", mode, hub.id, hub.game.Title)

		http.Redirect(w, r, fmt.Sprintf("%s%s/%s/%s/%s", cfg.prefix, path, mode, hub.game.ID, hub.id), http.StatusSeeOther)
	}
}

func serveSessionPage(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	page := servePage(cfg, "play.html", errs)

	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		mode, err := playMode(p)
		if err == nil {
			_, err = gm.get(mode, p.ByName("gameid"), p.ByName("hubid"))
		}
		if err != nil {
			serveNotFoundPage(cfg, w, err)

			return
		}

		page(w, r, p)
	}
}

func serveSessionWS(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		mode, err := playMode(p)
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		hub, err := gm.get(mode, p.ByName("gameid"), p.ByName("hubid"))
		if err != nil {
			serveError(cfg, w, r, err, errs)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade for %s failed: %v", realIP(r), err)

			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()

			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.moves <- move{client: c, msg: msg}:
		case <-h.quit:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func registerPlay(ctx context.Context, cfg *Config, lib *library.Library, path string, mux *httprouter.Router, errs chan<- error) *GameManager {
	gm := newGameManager(lib, cfg.playTimeout)
	go gm.reaperLoop(ctx, cfg)

	base := cfg.prefix + path + "/:mode/:gameid"

	mux.GET(base, serveNewSession(cfg, path, gm, errs))
	mux.GET(base+"/:hubid", serveSessionPage(cfg, gm, errs))
	mux.GET(base+"/:hubid/ws", serveSessionWS(cfg, gm, errs))
	mux.GET(base+"/:hubid/qr.png", serveSessionQR(cfg, gm, errs))

	return gm
}
