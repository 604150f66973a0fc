package draw

import "errors"

// 抽選実行時のエラー分類。ハンドラ側でHTTPステータスへ対応付ける。
// Unauthorized / InvalidState / NotFound / Conflict はその呼び出しで終了となり、
// リトライの対象にならない。
var (
	// 認証情報が無い、またはゲームの作成者でもadminでもない
	ErrUnauthorized = errors.New("unauthorized to draw this game")
	// ゲームがlocked状態ではない（抽選済みを含む）
	ErrInvalidState = errors.New("game is not in locked state")
	// ゲームが存在しない
	ErrNotFound = errors.New("game not found")
	// 並行する抽選が先にステータスを進めた
	ErrConflict = errors.New("concurrent draw already advanced game status")
	// リトライ上限まで当選チケットが見つからなかった
	ErrNoEligibleTicket = errors.New("no eligible ticket found within attempt limit")
)
