package draw

import "strconv"

// Decompose は当選番号をゼロ埋めし、左から順の10進数字列に分解します。
// 桁幅は番号1..maxTicketsの大半を覆う幅（maxTickets-1の桁数）で、
// 観客画面はこの数字列を先頭から1桁ずつリール演出で開示していく。
// 例: maxTickets=1000, winningNumber=7 → [0, 0, 7]
func Decompose(winningNumber, maxTickets int) []int {
	width := len(strconv.Itoa(maxTickets - 1))
	s := strconv.Itoa(winningNumber)
	for len(s) < width {
		s = "0" + s
	}
	digits := make([]int, len(s))
	for i := range s {
		digits[i] = int(s[i] - '0')
	}
	return digits
}
