package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"rafserver/models"
)

func csvRequestBody(t *testing.T, csvContent string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "players.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(csvContent)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func importPath(gameID uint) string {
	return fmt.Sprintf("/games/%d/players/import", gameID)
}

func TestImportPlayersCSV(t *testing.T) {
	db := setupHandlerDB(t)
	router := newTestRouter(db)
	hostID, token := newUserToken(t, db, "host1", models.RoleHost)
	game := seedGame(t, db, hostID, 10, models.GameStatusOpen)
	// 番号1は販売済み。インポート分は2から順に割り当てられる
	seedTicket(t, db, game.ID, 1, "Existing", "Player", "existing@example.com")

	csvContent := strings.Join([]string{
		"first_name,last_name,email,phone",
		"Taro,Yamada,taro@example.com,0312345678",
		"Hanako,Sato,hanako@example.com,",
		"Jiro,Kato,jiro@example.com,0398765432",
	}, "\n")
	body, contentType := csvRequestBody(t, csvContent)

	w := doRequest(t, router, http.MethodPost, importPath(game.ID), token, body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("import: status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody(t, w)
	if res["imported"] != float64(3) {
		t.Fatalf("imported = %v, want 3", res["imported"])
	}

	var numbers []int
	db.Model(&models.Ticket{}).Where("game_id = ?", game.ID).Order("number ASC").Pluck("number", &numbers)
	want := []int{1, 2, 3, 4}
	if len(numbers) != len(want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("numbers = %v, want %v", numbers, want)
		}
	}
}

func TestImportPlayersCSVRejectsBadRow(t *testing.T) {
	db := setupHandlerDB(t)
	router := newTestRouter(db)
	hostID, token := newUserToken(t, db, "host1", models.RoleHost)
	game := seedGame(t, db, hostID, 10, models.GameStatusOpen)

	// 2行目のメールが不正。全行拒否され、1行も登録されない
	csvContent := strings.Join([]string{
		"first_name,last_name,email",
		"Taro,Yamada,taro@example.com",
		"Hanako,Sato,not-an-email",
	}, "\n")
	body, contentType := csvRequestBody(t, csvContent)

	w := doRequest(t, router, http.MethodPost, importPath(game.ID), token, body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad row: status = %d, want 400", w.Code)
	}
	var count int64
	db.Model(&models.Player{}).Where("game_id = ?", game.ID).Count(&count)
	if count != 0 {
		t.Fatalf("players = %d, want 0 after rejected import", count)
	}
}

func TestImportPlayersCSVCapacity(t *testing.T) {
	db := setupHandlerDB(t)
	router := newTestRouter(db)
	hostID, token := newUserToken(t, db, "host1", models.RoleHost)
	game := seedGame(t, db, hostID, 2, models.GameStatusOpen)
	seedTicket(t, db, game.ID, 1, "Existing", "Player", "existing@example.com")

	csvContent := strings.Join([]string{
		"first_name,last_name,email",
		"Taro,Yamada,taro@example.com",
		"Hanako,Sato,hanako@example.com",
	}, "\n")
	body, contentType := csvRequestBody(t, csvContent)

	w := doRequest(t, router, http.MethodPost, importPath(game.ID), token, body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("over capacity: status = %d, want 400", w.Code)
	}
}

func TestImportPlayersCSVMissingColumn(t *testing.T) {
	db := setupHandlerDB(t)
	router := newTestRouter(db)
	hostID, token := newUserToken(t, db, "host1", models.RoleHost)
	game := seedGame(t, db, hostID, 10, models.GameStatusOpen)

	csvContent := strings.Join([]string{
		"first_name,email",
		"Taro,taro@example.com",
	}, "\n")
	body, contentType := csvRequestBody(t, csvContent)

	w := doRequest(t, router, http.MethodPost, importPath(game.ID), token, body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing column: status = %d, want 400", w.Code)
	}
}
