// Package phase は観客1人分の抽選フェーズ状態機械を提供します。
// 遷移はブロードキャストイベントとリール演出の完了通知だけで駆動され、
// 壁時計には依存しない（演出時間はUI側のペース調整にすぎない）。
package phase

import (
	"rafserver/draw"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StateSpinning  State = "spinning"
	StateRedraw    State = "redraw"
	StateWinner    State = "winner"
)

// カウントダウンは1秒×5カウント
const CountdownTicks = 5

// WinnerInfo は観客画面に表示する当選者情報
type WinnerInfo struct {
	TicketNumber int    `json:"ticket_number"`
	PlayerName   string `json:"player_name"`
}

// Machine の遷移: waiting → countdown → spinning → (redraw → spinning)* → winner。
// winnerは抽選セッション内で終端。winnerへの遷移は「全桁開示済み」かつ
// 「当選者データ取得済み」の両条件が揃ったときにのみ起きる。
type Machine struct {
	state      State
	maxTickets int
	digits     []int
	revealed   int
	winner     *WinnerInfo
	generation int // redraw等でリールがリセットされるたびに進む。古い完了通知の無効化に使う
}

func NewMachine(maxTickets int) *Machine {
	return &Machine{state: StateWaiting, maxTickets: maxTickets}
}

func (m *Machine) State() State       { return m.state }
func (m *Machine) Digits() []int      { return m.digits }
func (m *Machine) Revealed() int      { return m.revealed }
func (m *Machine) Winner() *WinnerInfo { return m.winner }
func (m *Machine) Generation() int    { return m.generation }

// HandleDrawStarted は draw_started 配信の受信。waitingからのみcountdownへ進む
func (m *Machine) HandleDrawStarted() bool {
	if m.state != StateWaiting {
		return false
	}
	m.state = StateCountdown
	return true
}

// HandleSpinning は phase_change:spinning の受信。配信前に台帳から取得した
// 当選番号を渡すこと（番号なしでリール演出を始めてはならない）。
func (m *Machine) HandleSpinning(winningNumber int) bool {
	if m.state == StateWinner {
		return false
	}
	m.digits = draw.Decompose(winningNumber, m.maxTickets)
	m.revealed = 0
	m.winner = nil
	m.generation++
	m.state = StateSpinning
	return true
}

// HandleRedraw は phase_change:redraw の受信。リール進捗を破棄し、世代を進めて
// 破棄前の演出タイマーからの完了通知を無効化する
func (m *Machine) HandleRedraw() bool {
	if m.state != StateSpinning && m.state != StateCountdown {
		return false
	}
	m.digits = nil
	m.revealed = 0
	m.winner = nil
	m.generation++
	m.state = StateRedraw
	return true
}

// HandleRevealDone は1桁分のリール演出完了通知。generationが現在値と一致しない
// 通知（redrawで破棄された演出の残骸）は無視する。最後の桁まで開示し終えた時点で
// 当選者データが揃っていればwinnerへ遷移する
func (m *Machine) HandleRevealDone(generation int) bool {
	if m.state != StateSpinning || generation != m.generation {
		return false
	}
	if m.revealed >= len(m.digits) {
		return false
	}
	m.revealed++
	if m.revealed == len(m.digits) && m.winner != nil {
		m.state = StateWinner
	}
	return true
}

// HandleWinnerData は当選者データの到着。全桁開示済みならwinnerへ、
// まだならデータだけ保持して開示完了を待つ
func (m *Machine) HandleWinnerData(w WinnerInfo) bool {
	if m.state == StateWinner {
		return false
	}
	m.winner = &w
	if m.state == StateSpinning && len(m.digits) > 0 && m.revealed == len(m.digits) {
		m.state = StateWinner
	}
	return true
}

// HandleGameDrawn は途中参加などフェーズ同期の外で抽選済みを観測した場合の
// フォールバック。演出を飛ばして直接winnerを表示する
func (m *Machine) HandleGameDrawn(w WinnerInfo, winningNumber int) bool {
	if m.state == StateWinner {
		return false
	}
	m.digits = draw.Decompose(winningNumber, m.maxTickets)
	m.revealed = len(m.digits)
	m.winner = &w
	m.generation++
	m.state = StateWinner
	return true
}

// AllRevealed は全桁開示済みかどうか
func (m *Machine) AllRevealed() bool {
	return len(m.digits) > 0 && m.revealed == len(m.digits)
}
