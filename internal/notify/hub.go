package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"golang.org/x/net/websocket"
)

// WSへ流すメッセージの封筒
type envelope struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type session struct {
	id string
	ws *websocket.Conn

	//websocketへの書き込みは直列化する
	mu sync.Mutex
}

func (s *session) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.Message.Send(s.ws, string(data))
}

// 接続レジストリ。user_id→セッション群と、管理者セッション群を持つ。
// プロセス起動時に1つ作り、shutdownでCloseする
type Hub struct {
	mu     sync.RWMutex
	users  map[int64]map[string]*session
	admins map[string]*session
}

func NewHub() *Hub {
	return &Hub{
		users:  map[int64]map[string]*session{},
		admins: map[string]*session{},
	}
}

// ユーザー接続を登録。戻り値のIDでUnregisterする
func (h *Hub) RegisterUser(userID int64, ws *websocket.Conn) string {
	s := &session{id: uuid.NewString(), ws: ws}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = map[string]*session{}
	}
	h.users[userID][s.id] = s
	return s.id
}

func (h *Hub) UnregisterUser(userID int64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.users[userID]; m != nil {
		delete(m, sessionID)
		if len(m) == 0 {
			delete(h.users, userID)
		}
	}
}

// 管理者接続を登録
func (h *Hub) RegisterAdmin(ws *websocket.Conn) string {
	s := &session{id: uuid.NewString(), ws: ws}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.admins[s.id] = s
	return s.id
}

func (h *Hub) UnregisterAdmin(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.admins, sessionID)
}

// 接続中セッション数（ユーザー全員分）
func (h *Hub) UserSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.users {
		n += len(m)
	}
	return n
}

func (h *Hub) AdminSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.admins)
}

// 本人の接続中セッション全てへ送る。未接続なら黙って捨てる
func (h *Hub) NotifyUser(userID int64, event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Warnf("notify: marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	sessions := make([]*session, 0, len(h.users[userID]))
	for _, s := range h.users[userID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.send(data); err != nil {
			log.Warnf("notify: send to user %d failed: %v", userID, err)
		}
	}
}

// 管理者ルームへブロードキャスト
func (h *Hub) NotifyAdmin(event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Warnf("notify: marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	sessions := make([]*session, 0, len(h.admins))
	for _, s := range h.admins {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.send(data); err != nil {
			log.Warnf("notify: admin send failed: %v", err)
		}
	}
}

// 全接続を閉じる（shutdown用）
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.users {
		for _, s := range m {
			_ = s.ws.Close()
		}
	}
	for _, s := range h.admins {
		_ = s.ws.Close()
	}
	h.users = map[int64]map[string]*session{}
	h.admins = map[string]*session{}
}
