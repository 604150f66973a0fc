package draw

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rafserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Algorithm は台帳に記録する乱数生成方式のタグ
const Algorithm = "crypto/rand+mod"

// WinnerRecord は当選チケットとその所有者の解決結果
type WinnerRecord struct {
	TicketNumber int
	FirstName    string
	LastName     string
	Email        string
}

// FullName はホスト向けのフルネーム表示
func (w *WinnerRecord) FullName() string {
	return w.FirstName + " " + w.LastName
}

// PublicName は観客向けに姓をイニシャルへ伏せた表示名
func (w *WinnerRecord) PublicName() string {
	if w.LastName == "" {
		return w.FirstName
	}
	return w.FirstName + " " + string([]rune(w.LastName)[:1]) + "."
}

// Result は抽選1回分の結果
type Result struct {
	WinningNumber int
	HasWinner     bool
	Winner        *WinnerRecord
}

// Selector はサーバー側で権威的に当選番号を決定するコンポーネント。
// 乱数は暗号論的に安全なソース（crypto/rand）から取得する。
type Selector struct {
	db      *gorm.DB
	logger  *zap.Logger
	entropy func() ([4]byte, error) // テスト用の差し替え口。nilならcrypto/rand
}

func NewSelector(db *gorm.DB, logger *zap.Logger) *Selector {
	return &Selector{db: db, logger: logger}
}

// randomNumber は[1, maxTickets]の当選番号と、使用した乱数バイト列を返します。
// (r mod maxTickets) + 1 にはごくわずかな剰余の偏りがある（最大 maxTickets/2^32）。
// 現実的なチケット数では無視できるが厳密な一様分布ではない。偏りを許容できない
// 場合は棄却サンプリングに置き換えること。
func (s *Selector) randomNumber(maxTickets int) (int, []byte, error) {
	var buf [4]byte
	var err error
	if s.entropy != nil {
		buf, err = s.entropy()
	} else {
		_, err = rand.Read(buf[:])
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read entropy source: %w", err)
	}
	r := binary.BigEndian.Uint32(buf[:])
	return int(r%uint32(maxTickets)) + 1, buf[:], nil
}

// Execute は抽選を1回実行します。事前条件（呼び出し元の認可、locked状態）を
// 検証してから乱数を引き、当選番号のチケットを照会する。
//   - 該当チケット有り: 台帳行を追記し、locked→drawn を条件付きUPDATEで原子的に
//     行う（0行更新なら並行抽選に敗れたとみなしErrConflict）。
//   - 該当チケット無し: 台帳行（WinnerTicketID=null）だけを追記し、ステータスは
//     変更しない。観客が台帳から当選番号を取得できるよう、外れ試行も必ず記録する。
func (s *Selector) Execute(ctx context.Context, gameID uint, callerID uint, callerRole string) (*Result, error) {
	db := s.db.WithContext(ctx)

	var game models.Game
	if err := db.First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch game: %w", err)
	}

	// 認可: ゲーム作成者本人か、adminロールのみ実行できる
	if callerID == 0 {
		return nil, ErrUnauthorized
	}
	if game.CreatedByUserID != callerID && callerRole != models.RoleAdmin {
		s.logger.Warn("Draw attempted by non-host user",
			zap.Uint("gameID", gameID), zap.Uint("userID", callerID))
		return nil, ErrUnauthorized
	}

	if game.Status != models.GameStatusLocked {
		return nil, ErrInvalidState
	}

	winningNumber, entropyBytes, err := s.randomNumber(game.MaxTickets)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Winning number generated",
		zap.Uint("gameID", gameID), zap.Int("winningNumber", winningNumber))

	now := time.Now().UTC()
	auditJSON, err := json.Marshal(models.DrawAudit{
		WinningNumber:      winningNumber,
		Timestamp:          now.Format(time.RFC3339Nano),
		EntropySourceBytes: hex.EncodeToString(entropyBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit json: %w", err)
	}

	var ticket models.Ticket
	err = db.Where("game_id = ? AND number = ? AND eligible = ?", gameID, winningNumber, true).
		First(&ticket).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to fetch ticket: %w", err)
		}
		// 該当番号のチケット未販売。外れ試行として台帳に追記する（ステータスは不変）
		miss := models.Draw{
			GameID:     gameID,
			Algorithm:  Algorithm,
			ExecutedAt: now,
			AuditJSON:  auditJSON,
		}
		if err := db.Create(&miss).Error; err != nil {
			return nil, fmt.Errorf("failed to record missed draw: %w", err)
		}
		s.logger.Info("No ticket sold for winning number - redraw needed",
			zap.Uint("gameID", gameID), zap.Int("winningNumber", winningNumber))
		return &Result{WinningNumber: winningNumber, HasWinner: false}, nil
	}

	var player models.Player
	if err := db.First(&player, ticket.PlayerID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch player: %w", err)
	}

	// 台帳追記とステータス遷移を1トランザクションで行う。条件付きUPDATEが
	// 0行更新なら別の抽選が先にdrawnへ進めているので、台帳行ごとロールバックする
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Game{}).
			Where("id = ? AND status = ?", gameID, models.GameStatusLocked).
			Update("status", models.GameStatusDrawn)
		if res.Error != nil {
			return fmt.Errorf("failed to update game status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		row := models.Draw{
			GameID:         gameID,
			Algorithm:      Algorithm,
			WinnerTicketID: &ticket.ID,
			ExecutedAt:     now,
			AuditJSON:      auditJSON,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to record draw: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Winner found",
		zap.Uint("gameID", gameID),
		zap.Int("ticketNumber", ticket.Number),
		zap.Uint("playerID", player.ID))

	return &Result{
		WinningNumber: winningNumber,
		HasWinner:     true,
		Winner: &WinnerRecord{
			TicketNumber: ticket.Number,
			FirstName:    player.FirstName,
			LastName:     player.LastName,
			Email:        player.Email,
		},
	}, nil
}
