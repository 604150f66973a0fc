package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"rafserver/auth"
	"rafserver/middlewares"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.Player{},
		&models.Ticket{},
		&models.Draw{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// 本番と同じルーティングのテスト用ルーター
func newTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	router := gin.New()

	router.POST("/auth/token", func(c *gin.Context) {
		IssueToken(c, db, logger)
	})
	router.GET("/public/games/:code", func(c *gin.Context) {
		GetGameByCode(c, db, logger)
	})
	router.GET("/public/games/:code/winner", func(c *gin.Context) {
		GetPublicWinner(c, db, logger)
	})

	authorized := router.Group("/", middlewares.AuthMiddleware(logger))
	authorized.GET("/dashboard", func(c *gin.Context) {
		Dashboard(c, db, logger)
	})
	authorized.POST("/games", func(c *gin.Context) {
		CreateGame(c, db, logger)
	})
	authorized.PUT("/games/:id/status", func(c *gin.Context) {
		ChangeStatus(c, db, logger)
	})
	authorized.POST("/games/:id/players", func(c *gin.Context) {
		AddPlayer(c, db, logger)
	})
	authorized.POST("/games/:id/players/import", func(c *gin.Context) {
		ImportPlayersCSV(c, db, logger)
	})
	authorized.GET("/games/:id/tickets", func(c *gin.Context) {
		ListTickets(c, db, logger)
	})
	authorized.POST("/games/:id/draw", func(c *gin.Context) {
		ExecuteDraw(c, db, logger)
	})
	authorized.GET("/games/:id/draws/latest", func(c *gin.Context) {
		GetLatestDraw(c, db, logger)
	})
	return router
}

// ユーザーを作成してJWTを発行する
func newUserToken(t *testing.T, db *gorm.DB, username, role string) (uint, string) {
	t.Helper()
	user := models.User{Username: username, Role: role, AnimationType: "spinning_wheel"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return user.ID, token
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return doRequest(t, router, method, path, token, body, "application/json")
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var res map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res
}

// ゲームを作って直接DBでステータスを合わせるテスト用ショートカット
func seedGame(t *testing.T, db *gorm.DB, createdBy uint, maxTickets int, status string) *models.Game {
	t.Helper()
	game := models.Game{
		Code6:            fmt.Sprintf("%06d", time.Now().UnixNano()%1000000),
		Name:             "Test Prize",
		TicketPriceMinor: 500,
		MaxTickets:       maxTickets,
		DrawAt:           time.Now().Add(time.Hour),
		Status:           status,
		CreatedByUserID:  createdBy,
	}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("create game: %v", err)
	}
	return &game
}

func seedTicket(t *testing.T, db *gorm.DB, gameID uint, number int, firstName, lastName, email string) {
	t.Helper()
	player := models.Player{GameID: gameID, FirstName: firstName, LastName: lastName, Email: email}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("create player: %v", err)
	}
	ticket := models.Ticket{GameID: gameID, Number: number, PlayerID: player.ID, Eligible: true}
	if err := db.Create(&ticket).Error; err != nil {
		t.Fatalf("create ticket: %v", err)
	}
}
