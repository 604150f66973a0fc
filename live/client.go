package live

import (
	"encoding/json"
	"sync"

	"rafserver/draw/phase"
	"rafserver/models"

	"github.com/gorilla/websocket"
)

// session は接続中のクライアント1人分。観客ごとに独立したフェーズ状態機械を持ち、
// 購読の解除やタイマー相当の無効化はこのセッションの寿命に紐づく
type session struct {
	client   *models.Client
	machine  *phase.Machine
	authRole string     // JWTクレームのロール（"host"/"admin"）。匿名の観客は空
	writeMu  sync.Mutex // gorilla/websocketは並行Writeを許さない
}

// viewMessage はクライアントに押し出す画面状態のスナップショット
type viewMessage struct {
	Type          string            `json:"type"` // "view"
	Phase         phase.State       `json:"phase"`
	Digits        []int             `json:"digits,omitempty"`
	Revealed      int               `json:"revealed"`
	Generation    int               `json:"generation"`
	CountdownFrom int               `json:"countdown_from,omitempty"`
	Winner        *phase.WinnerInfo `json:"winner,omitempty"`
}

func (s *session) sendView() error {
	m := s.machine
	msg := viewMessage{
		Type:       "view",
		Phase:      m.State(),
		Revealed:   m.Revealed(),
		Generation: m.Generation(),
	}
	switch m.State() {
	case phase.StateCountdown:
		msg.CountdownFrom = phase.CountdownTicks
	case phase.StateSpinning:
		msg.Digits = m.Digits()
	case phase.StateWinner:
		msg.Digits = m.Digits()
		msg.Winner = m.Winner()
	}
	return s.sendJSON(msg)
}

func (s *session) sendJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.client.Conn.WriteJSON(v)
}

// Helper function to send error message to the client via WebSocket
func (s *session) sendErrorMessage(errorMessage string) {
	errorResponse := map[string]string{"error": errorMessage}
	errorJSON, _ := json.Marshal(errorResponse)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.client.Conn.WriteMessage(websocket.TextMessage, errorJSON) // Ignoring error for simplicity
}
