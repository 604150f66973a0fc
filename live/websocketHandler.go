package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rafserver/draw"
	"rafserver/draw/phase"
	"rafserver/live/connection"
	"rafserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		//// 信頼できるオリジン、つまり自分のドメイン名を指定
		// allowedOrigin := "https://yourapp.com"
		// return r.Header.Get("Origin") == allowedOrigin
		return true
	},
}

// HandleConnections はライブ画面のWebSocket接続を受け付けます。観客は公開コード
// だけで接続でき、ホストはトークンにより識別されてstart_drawを送れる
func (h *Hub) HandleConnections(ctx context.Context, w http.ResponseWriter, r *http.Request, code string) {
	clientContext, err := connection.FetchClientContext(r, code, h.db, h.logger)
	if err != nil {
		h.logger.Error("Error fetching client context", zap.Error(err))
		http.Error(w, "Game not found or unauthorized", http.StatusNotFound)
		return
	}

	// WebSocket接続へのアップグレードと確立
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := &models.Client{
		Conn:   conn,
		UserID: clientContext.UserID,
		GameID: clientContext.GameID,
		Role:   clientContext.Role,
	}

	sess := &session{
		client:  client,
		machine: phase.NewMachine(clientContext.Game.MaxTickets),
	}
	if clientContext.Claims != nil {
		sess.authRole = clientContext.Claims.Role
	}

	// セッションIDの検証と復元（再接続時にホスト識別と検証済みロールを引き継ぐ）
	if sessionID := r.Header.Get("SessionID"); sessionID != "" {
		restoreSession(ctx, sessionID, sess, h.rdb, h.logger)
	}

	lg := h.join(clientContext.Game, sess)
	h.logger.Info("New live client added",
		zap.Uint("UserID", client.UserID), zap.Uint("GameID", client.GameID), zap.String("Role", client.Role))

	// 抽選済みのゲームに途中参加した場合はフェーズ同期を介さず勝者を直接表示する
	if clientContext.Game.Status == models.GameStatusDrawn {
		h.sendFinalWinner(lg, sess)
	} else if err := sess.sendView(); err != nil {
		h.logger.Error("Failed to send initial view", zap.Error(err))
	}

	// 再接続用セッションIDの発行と送付
	if err := generateAndStoreSessionID(ctx, sess, h.rdb, h.logger); err != nil {
		h.logger.Error("Failed to generate or store session ID", zap.Error(err))
	}

	// クライアントごとにメッセージ読み取りゴルーチンを起動
	go h.readPump(lg, sess)

	// Ping/Pongを管理するゴルーチンを起動
	go h.pingLoop(lg, sess)
}

func (h *Hub) sendFinalWinner(lg *liveGame, sess *session) {
	winningNumber, winner, err := draw.LatestWinner(h.db, lg.gameID)
	if err != nil || winner == nil {
		h.logger.Error("Failed to resolve final winner", zap.Uint("gameID", lg.gameID), zap.Error(err))
		return
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	sess.machine.HandleGameDrawn(h.winnerInfoFor(sess, winner), winningNumber)
	if err := sess.sendView(); err != nil {
		h.logger.Error("Failed to send final winner view", zap.Error(err))
	}
}

// readPump はクライアントからのメッセージを読み取り、アクションに振り分けます。
func (h *Hub) readPump(lg *liveGame, sess *session) {
	defer func() {
		sess.client.Conn.Close()
		h.leave(lg, sess)
		h.logger.Info("Live client removed", zap.Uint("UserID", sess.client.UserID))
	}()

	for {
		_, message, err := sess.client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		// 受信したメッセージをJSON形式でデコード
		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Error("Error decoding message", zap.Error(err))
			continue
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "reveal_done":
			h.handleRevealDone(lg, sess, msg)
		case "start_draw":
			h.handleStartDraw(lg, sess)
		default:
			h.logger.Info("Received unknown message type", zap.Any("message", msg))
		}
	}
}

// handleRevealDone は1桁分のリール演出完了通知。全桁開示まで進んだら当選者
// データの有無を確認する（揃って初めてwinnerフェーズへ遷移できる）
func (h *Hub) handleRevealDone(lg *liveGame, sess *session, msg map[string]interface{}) {
	genFloat, ok := msg["generation"].(float64)
	if !ok {
		sess.sendErrorMessage("Invalid reveal_done message")
		return
	}

	lg.mu.Lock()
	advanced := sess.machine.HandleRevealDone(int(genFloat))
	allRevealed := sess.machine.AllRevealed()
	state := sess.machine.State()
	if advanced {
		if err := sess.sendView(); err != nil {
			h.logger.Error("Failed to push view", zap.Error(err))
		}
	}
	lg.mu.Unlock()

	if advanced && allRevealed && state == phase.StateSpinning {
		h.checkWinner(lg, sess)
	}
}

// handleStartDraw はホストからの抽選開始要求。再抽選ループはサーバー側で実行され、
// フェーズはブロードキャスト経由で全画面に届く
func (h *Hub) handleStartDraw(lg *liveGame, sess *session) {
	if sess.client.Role != "host" {
		sess.sendErrorMessage("Only the game host can start the draw")
		return
	}

	lg.mu.Lock()
	if lg.drawing {
		lg.mu.Unlock()
		sess.sendErrorMessage("Draw already in progress")
		return
	}
	lg.drawing = true
	lg.mu.Unlock()

	controller := draw.NewController(draw.NewSelector(h.db, h.logger), h.publisher, h.logger)
	controller.MaxAttempts = h.MaxDrawAttempts

	go func() {
		defer func() {
			lg.mu.Lock()
			lg.drawing = false
			lg.mu.Unlock()
		}()
		result, err := controller.Run(context.Background(), lg.gameID, sess.client.UserID, sess.authRole)
		if err != nil {
			h.logger.Error("Draw session failed", zap.Uint("gameID", lg.gameID), zap.Error(err))
			sess.sendErrorMessage(err.Error())
			return
		}
		h.logger.Info("Draw session completed",
			zap.Uint("gameID", lg.gameID), zap.Int("winningNumber", result.WinningNumber))
	}()
}

// pingLoop は定期的にPingを送り、応答が途絶えた接続を切り離します。
func (h *Hub) pingLoop(lg *liveGame, sess *session) {
	defer func() {
		sess.client.Conn.Close()
	}()

	// Pongハンドラの設定: Pongメッセージを受信したら読み取りデッドラインを更新
	sess.client.Conn.SetPongHandler(func(string) error {
		sess.client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	sess.client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	pingPeriod := 10 * time.Second // 10秒ごとにPingを送信
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		sess.writeMu.Lock()
		err := sess.client.Conn.WriteMessage(websocket.PingMessage, nil)
		sess.writeMu.Unlock()
		if err != nil {
			h.logger.Error("Error sending ping", zap.Error(err))
			return
		}
	}
}
