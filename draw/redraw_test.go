package draw

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"rafserver/models"

	"go.uber.org/zap"
)

// 配信イベントを記録するだけのPublisher
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishDrawStarted(ctx context.Context, gameID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "draw_started")
	return nil
}

func (p *recordingPublisher) PublishPhase(ctx context.Context, gameID uint, phase string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, phase)
	return nil
}

func (p *recordingPublisher) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newTestController(selector *Selector, publisher Publisher) *Controller {
	c := NewController(selector, publisher, zap.NewNop())
	// テストでは演出待ちをしない
	c.Countdown = 0
	c.RedrawDelay = 0
	return c
}

func TestControllerWinsAfterRedraws(t *testing.T) {
	db := setupDrawDB(t)
	game := seedLockedGame(t, db, []int{1, 3, 5, 7, 9})
	selector := NewSelector(db, zap.NewNop())
	selector.entropy = entropyForNumbers(t, 2, 4, 5)
	publisher := &recordingPublisher{}

	result, err := newTestController(selector, publisher).
		Run(context.Background(), game.ID, 1, models.RoleHost)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.HasWinner || result.WinningNumber != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// 外れ2回はそれぞれ spinning → redraw、当選で spinning のまま終わる
	want := []string{"draw_started", "spinning", "redraw", "spinning", "redraw", "spinning"}
	got := publisher.recorded()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	// spinning配信時点で台帳行がコミット済みであることは行数で確かめる
	var drawCount int64
	db.Model(&models.Draw{}).Where("game_id = ?", game.ID).Count(&drawCount)
	if drawCount != 3 {
		t.Fatalf("ledger rows = %d, want 3", drawCount)
	}

	var reloaded models.Game
	if err := db.First(&reloaded, game.ID).Error; err != nil {
		t.Fatalf("reload game: %v", err)
	}
	if reloaded.Status != models.GameStatusDrawn {
		t.Fatalf("status = %s, want drawn", reloaded.Status)
	}
}

func TestControllerStopsAtAttemptLimit(t *testing.T) {
	db := setupDrawDB(t)
	game := seedLockedGame(t, db, []int{1}) // 番号2,4,6は未販売
	selector := NewSelector(db, zap.NewNop())
	selector.entropy = entropyForNumbers(t, 2, 4, 6)
	publisher := &recordingPublisher{}

	controller := newTestController(selector, publisher)
	controller.MaxAttempts = 3

	_, err := controller.Run(context.Background(), game.ID, 1, models.RoleHost)
	if !errors.Is(err, ErrNoEligibleTicket) {
		t.Fatalf("expected ErrNoEligibleTicket, got %v", err)
	}

	var reloaded models.Game
	if err := db.First(&reloaded, game.ID).Error; err != nil {
		t.Fatalf("reload game: %v", err)
	}
	if reloaded.Status != models.GameStatusLocked {
		t.Fatalf("exhausted session must leave status locked, got %s", reloaded.Status)
	}

	var drawCount int64
	db.Model(&models.Draw{}).Where("game_id = ?", game.ID).Count(&drawCount)
	if drawCount != 3 {
		t.Fatalf("ledger rows = %d, want 3", drawCount)
	}
}

func TestControllerAttemptLimitCoversFailedAttempts(t *testing.T) {
	db := setupDrawDB(t)
	game := seedLockedGame(t, db, []int{1}) // 番号2は未販売
	selector := NewSelector(db, zap.NewNop())

	// 1回目は外れ、以降はエントロピー源が失敗し続ける
	calls := 0
	selector.entropy = func() ([4]byte, error) {
		calls++
		if calls == 1 {
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], 1) // 番号2
			return buf, nil
		}
		return [4]byte{}, errors.New("entropy source unavailable")
	}
	publisher := &recordingPublisher{}

	controller := newTestController(selector, publisher)
	controller.MaxAttempts = 2

	_, err := controller.Run(context.Background(), game.ID, 1, models.RoleHost)
	if !errors.Is(err, ErrNoEligibleTicket) {
		t.Fatalf("expected ErrNoEligibleTicket, got %v", err)
	}
	// 失敗した試行も上限を消費するので、セレクタはちょうど2回しか呼ばれない
	if calls != 2 {
		t.Fatalf("selector calls = %d, want 2", calls)
	}
}

func TestControllerCancelWithZeroDelays(t *testing.T) {
	db := setupDrawDB(t)
	game := seedLockedGame(t, db, []int{5})
	selector := NewSelector(db, zap.NewNop())
	entropyCalls := 0
	selector.entropy = func() ([4]byte, error) {
		entropyCalls++
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], 4)
		return buf, nil
	}
	publisher := &recordingPublisher{}

	// 待機時間がゼロでもキャンセル済みコンテキストで即座に抜ける
	controller := newTestController(selector, publisher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := controller.Run(ctx, game.ID, 1, models.RoleHost)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if entropyCalls != 0 {
		t.Fatalf("selector ran %d times after cancellation, want 0", entropyCalls)
	}
}

func TestControllerTerminalErrorNotRetried(t *testing.T) {
	db := setupDrawDB(t)
	game := seedLockedGame(t, db, []int{5})
	if err := db.Model(&models.Game{}).Where("id = ?", game.ID).
		Update("status", models.GameStatusOpen).Error; err != nil {
		t.Fatalf("set status: %v", err)
	}
	selector := NewSelector(db, zap.NewNop())
	publisher := &recordingPublisher{}

	_, err := newTestController(selector, publisher).
		Run(context.Background(), game.ID, 1, models.RoleHost)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	// draw_startedは配信済みだが、フェーズイベントは1つも出ていない
	got := publisher.recorded()
	if len(got) != 1 || got[0] != "draw_started" {
		t.Fatalf("events = %v, want [draw_started]", got)
	}
}

func TestControllerHonorsContextCancel(t *testing.T) {
	db := setupDrawDB(t)
	game := seedLockedGame(t, db, []int{5})
	selector := NewSelector(db, zap.NewNop())
	publisher := &recordingPublisher{}

	controller := newTestController(selector, publisher)
	controller.Countdown = DefaultCountdown

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := controller.Run(ctx, game.ID, 1, models.RoleHost)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// カウントダウン中に中断されたので台帳は空のまま
	var drawCount int64
	db.Model(&models.Draw{}).Where("game_id = ?", game.ID).Count(&drawCount)
	if drawCount != 0 {
		t.Fatalf("ledger rows = %d, want 0", drawCount)
	}
}
