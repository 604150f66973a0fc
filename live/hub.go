package live

import (
	"context"
	"encoding/json"
	"sync"

	"rafserver/draw"
	"rafserver/draw/phase"
	"rafserver/live/broadcast"
	"rafserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Hub は接続中のライブ画面セッションをゲーム単位に束ねます。
// モジュールレベルの共有マップではなく、mainで生成した1つのHubが全接続を所有し、
// 購読の開始・解除はゲームごとの接続数に合わせて行う
type Hub struct {
	db        *gorm.DB
	rdb       *redis.Client
	logger    *zap.Logger
	publisher draw.Publisher

	mu    sync.Mutex
	games map[uint]*liveGame

	// 再抽選ループの上限。0なら無制限（運用設定で上限を入れられる）
	MaxDrawAttempts int
}

// liveGame は1ゲーム分の接続とフェーズ購読。最後の接続が離れたら購読ごと破棄する
type liveGame struct {
	gameID     uint
	maxTickets int

	mu       sync.Mutex
	sessions map[*session]bool
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
	drawing  bool
}

func NewHub(db *gorm.DB, rdb *redis.Client, publisher draw.Publisher, logger *zap.Logger) *Hub {
	return &Hub{
		db:        db,
		rdb:       rdb,
		logger:    logger,
		publisher: publisher,
		games:     make(map[uint]*liveGame),
	}
}

// join はセッションをゲームのグループに登録します。そのゲームの最初の接続なら
// フェーズ同期チャンネルの購読を開始する
func (h *Hub) join(game *models.Game, sess *session) *liveGame {
	h.mu.Lock()
	defer h.mu.Unlock()

	lg, ok := h.games[game.ID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		lg = &liveGame{
			gameID:     game.ID,
			maxTickets: game.MaxTickets,
			sessions:   make(map[*session]bool),
			pubsub:     broadcast.Subscribe(ctx, h.rdb, game.ID),
			cancel:     cancel,
		}
		h.games[game.ID] = lg
		go h.runSubscriber(ctx, lg)
		h.logger.Info("Phase channel subscribed", zap.Uint("gameID", game.ID))
	}

	lg.mu.Lock()
	lg.sessions[sess] = true
	lg.mu.Unlock()
	return lg
}

// leave はセッションを外し、最後の1人だった場合は購読を解除してグループを破棄します。
func (h *Hub) leave(lg *liveGame, sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lg.mu.Lock()
	delete(lg.sessions, sess)
	empty := len(lg.sessions) == 0
	lg.mu.Unlock()

	if empty {
		lg.pubsub.Close()
		lg.cancel()
		delete(h.games, lg.gameID)
		h.logger.Info("Phase channel unsubscribed", zap.Uint("gameID", lg.gameID))
	}
}

// runSubscriber はRedisから届くフェーズイベントを各セッションの状態機械に配送します。
func (h *Hub) runSubscriber(ctx context.Context, lg *liveGame) {
	ch := lg.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event broadcast.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Error decoding broadcast event", zap.Error(err))
				continue
			}
			h.dispatchEvent(lg, event)
		}
	}
}

func (h *Hub) dispatchEvent(lg *liveGame, event broadcast.Event) {
	switch event.Type {
	case broadcast.EventDrawStarted:
		h.forEachSession(lg, func(sess *session) {
			sess.machine.HandleDrawStarted()
		})

	case broadcast.EventPhaseChange:
		switch event.Phase {
		case draw.PhaseSpinning:
			// リール演出を始める前に必ず台帳から当選番号を取得する。
			// spinningは台帳行コミット後にしか配信されないので最新行が必ずある
			row, err := draw.Latest(h.db, lg.gameID)
			if err != nil || row == nil {
				h.logger.Error("Failed to fetch latest draw for spinning phase",
					zap.Uint("gameID", lg.gameID), zap.Error(err))
				return
			}
			winningNumber, err := draw.WinningNumber(row)
			if err != nil {
				h.logger.Error("Failed to decode winning number",
					zap.Uint("gameID", lg.gameID), zap.Error(err))
				return
			}
			h.forEachSession(lg, func(sess *session) {
				sess.machine.HandleSpinning(winningNumber)
			})

		case draw.PhaseRedraw:
			h.forEachSession(lg, func(sess *session) {
				sess.machine.HandleRedraw()
			})

		default:
			h.logger.Info("Unknown phase in broadcast event", zap.String("phase", event.Phase))
		}

	default:
		h.logger.Info("Unknown broadcast event type", zap.String("type", event.Type))
	}
}

// forEachSession は状態機械の更新と画面スナップショットの送信をゲーム単位で直列化します。
func (h *Hub) forEachSession(lg *liveGame, update func(*session)) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	for sess := range lg.sessions {
		update(sess)
		if err := sess.sendView(); err != nil {
			h.logger.Error("Failed to push view", zap.Uint("UserID", sess.client.UserID), zap.Error(err))
		}
	}
}

// checkWinner はリール全桁開示後に呼ばれ、台帳に当選行があれば状態機械へ渡します。
// 当選行がまだ無い場合は何もしない（redraw配信が後から届く）
func (h *Hub) checkWinner(lg *liveGame, sess *session) {
	_, winner, err := draw.LatestWinner(h.db, lg.gameID)
	if err != nil {
		h.logger.Error("Failed to fetch winner data", zap.Uint("gameID", lg.gameID), zap.Error(err))
		return
	}
	if winner == nil {
		return
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()
	sess.machine.HandleWinnerData(h.winnerInfoFor(sess, winner))
	if err := sess.sendView(); err != nil {
		h.logger.Error("Failed to push winner view", zap.Uint("UserID", sess.client.UserID), zap.Error(err))
	}
}

// 観客には姓を伏せた公開用の表示名、ホストにはフルネームを見せる
func (h *Hub) winnerInfoFor(sess *session, winner *draw.WinnerRecord) phase.WinnerInfo {
	name := winner.PublicName()
	if sess.client.Role == "host" {
		name = winner.FullName()
	}
	return phase.WinnerInfo{TicketNumber: winner.TicketNumber, PlayerName: name}
}
