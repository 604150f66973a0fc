package phase

import (
	"testing"
)

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine(1000)
	if m.State() != StateWaiting {
		t.Fatalf("initial state = %s, want waiting", m.State())
	}

	if !m.HandleDrawStarted() {
		t.Fatalf("draw_started from waiting must advance")
	}
	if m.State() != StateCountdown {
		t.Fatalf("state = %s, want countdown", m.State())
	}

	if !m.HandleSpinning(7) {
		t.Fatalf("spinning must advance")
	}
	if m.State() != StateSpinning {
		t.Fatalf("state = %s, want spinning", m.State())
	}
	digits := m.Digits()
	if len(digits) != 3 || digits[0] != 0 || digits[1] != 0 || digits[2] != 7 {
		t.Fatalf("digits = %v, want [0 0 7]", digits)
	}

	// 当選者データが先に届いても全桁開示までwinnerにはならない
	if !m.HandleWinnerData(WinnerInfo{TicketNumber: 7, PlayerName: "Hanako S."}) {
		t.Fatalf("winner data must be accepted")
	}
	if m.State() != StateSpinning {
		t.Fatalf("winner shown before digits revealed: state = %s", m.State())
	}

	gen := m.Generation()
	for i := 0; i < 3; i++ {
		if !m.HandleRevealDone(gen) {
			t.Fatalf("reveal %d must advance", i+1)
		}
	}
	if m.State() != StateWinner {
		t.Fatalf("state = %s, want winner", m.State())
	}
	if m.Winner() == nil || m.Winner().TicketNumber != 7 {
		t.Fatalf("winner = %+v", m.Winner())
	}
}

func TestMachineWinnerDataAfterReveal(t *testing.T) {
	m := NewMachine(100)
	m.HandleDrawStarted()
	m.HandleSpinning(42)

	gen := m.Generation()
	m.HandleRevealDone(gen)
	m.HandleRevealDone(gen)
	if !m.AllRevealed() {
		t.Fatalf("expected all digits revealed")
	}
	if m.State() != StateSpinning {
		t.Fatalf("without winner data, state = %s, want spinning", m.State())
	}

	// 全桁開示後にデータが届いた側がwinner遷移を起こす
	if !m.HandleWinnerData(WinnerInfo{TicketNumber: 42, PlayerName: "Taro Y."}) {
		t.Fatalf("winner data must be accepted")
	}
	if m.State() != StateWinner {
		t.Fatalf("state = %s, want winner", m.State())
	}
}

func TestMachineRedrawResetsReels(t *testing.T) {
	m := NewMachine(100)
	m.HandleDrawStarted()
	m.HandleSpinning(15)
	oldGen := m.Generation()
	m.HandleRevealDone(oldGen)

	if !m.HandleRedraw() {
		t.Fatalf("redraw from spinning must advance")
	}
	if m.State() != StateRedraw {
		t.Fatalf("state = %s, want redraw", m.State())
	}
	if m.Digits() != nil || m.Revealed() != 0 {
		t.Fatalf("redraw must discard reel progress: digits=%v revealed=%d", m.Digits(), m.Revealed())
	}

	// 次のspinningで新しい番号のリールが始まる
	if !m.HandleSpinning(73) {
		t.Fatalf("spinning after redraw must advance")
	}
	digits := m.Digits()
	if len(digits) != 2 || digits[0] != 7 || digits[1] != 3 {
		t.Fatalf("digits = %v, want [7 3]", digits)
	}

	// 破棄前の世代からの完了通知は無視される
	if m.HandleRevealDone(oldGen) {
		t.Fatalf("stale reveal notification must be ignored")
	}
	if m.Revealed() != 0 {
		t.Fatalf("revealed = %d, want 0", m.Revealed())
	}
}

func TestMachineIgnoresOutOfOrderEvents(t *testing.T) {
	m := NewMachine(10)

	// waiting以外からのdraw_startedは無視
	if m.HandleRedraw() {
		t.Fatalf("redraw from waiting must be ignored")
	}
	m.HandleDrawStarted()
	if m.HandleDrawStarted() {
		t.Fatalf("repeated draw_started must be ignored")
	}

	// countdown中のredrawは許容される（外れが即座に配信された場合）
	if !m.HandleRedraw() {
		t.Fatalf("redraw from countdown must advance")
	}

	m.HandleSpinning(5)
	gen := m.Generation()
	m.HandleRevealDone(gen)
	m.HandleWinnerData(WinnerInfo{TicketNumber: 5, PlayerName: "Jiro K."})
	if m.State() != StateWinner {
		t.Fatalf("state = %s, want winner", m.State())
	}

	// winnerは終端。以後のイベントは全て無視
	if m.HandleSpinning(9) || m.HandleRedraw() || m.HandleRevealDone(gen) ||
		m.HandleWinnerData(WinnerInfo{TicketNumber: 9}) || m.HandleDrawStarted() {
		t.Fatalf("winner state must be terminal")
	}
}

func TestMachineGameDrawnFallback(t *testing.T) {
	// 抽選済みゲームへの途中参加。演出を飛ばして直接winnerを表示する
	m := NewMachine(1000)
	if !m.HandleGameDrawn(WinnerInfo{TicketNumber: 7, PlayerName: "Hanako S."}, 7) {
		t.Fatalf("game drawn fallback must advance")
	}
	if m.State() != StateWinner {
		t.Fatalf("state = %s, want winner", m.State())
	}
	if !m.AllRevealed() {
		t.Fatalf("fallback must mark all digits revealed")
	}
	if len(m.Digits()) != 3 {
		t.Fatalf("digits = %v, want 3 digits", m.Digits())
	}
}
