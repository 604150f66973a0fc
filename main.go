package main

import (
	"time"

	"go.uber.org/zap"

	"rafserver/database"       //PostgreSQLとRedisの初期化
	"rafserver/handlers"       //ゲーム管理や参加者登録などのHTTPリクエストの処理
	"rafserver/live"           //抽選ライブ配信のWebsocketロジック
	"rafserver/live/broadcast" //フェーズイベントのRedis配信
	"rafserver/middlewares"    //JWT認証ミドルウェア
	"rafserver/utils"          //ロガーの初期化とCronジョブ(ゲームの定期クリーンナップ)

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	var logger *zap.Logger
	var err error
	logger, err = utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// .envがあれば環境変数に読み込む。本番環境ではファイルなしでも動く
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		config, err := database.LoadConfig("config.json")
		if err != nil {
			logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
		}
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// クーロンスケジューラのセットアップと呼び出し
	go utils.CronCleaner(db, logger)

	// ライブ配信ハブの初期化。フェーズイベントはRedis Pub/Subで配る
	hub := live.NewHub(db, rdb, broadcast.NewRedisPublisher(rdb, logger), logger)

	router := gin.Default()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://192.168.1.1:8080"}, //ここにデプロイサーバーのIPアドレスを設定
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//認証不要のルーティング
	router.POST("/auth/token", func(c *gin.Context) {
		handlers.IssueToken(c, db, logger)
	})
	router.GET("/public/games/:code", func(c *gin.Context) {
		handlers.GetGameByCode(c, db, logger)
	})
	router.GET("/public/games/:code/winner", func(c *gin.Context) {
		handlers.GetPublicWinner(c, db, logger)
	})
	router.GET("/live/:code", func(c *gin.Context) {
		hub.HandleConnections(c.Request.Context(), c.Writer, c.Request, c.Param("code"))
	})

	//ホスト用のルーティング（JWT必須）
	authorized := router.Group("/", middlewares.AuthMiddleware(logger))
	authorized.GET("/dashboard", func(c *gin.Context) {
		handlers.Dashboard(c, db, logger)
	})
	authorized.POST("/games", func(c *gin.Context) {
		handlers.CreateGame(c, db, logger)
	})
	authorized.PUT("/games/:id/status", func(c *gin.Context) {
		handlers.ChangeStatus(c, db, logger)
	})
	authorized.POST("/games/:id/players", func(c *gin.Context) {
		handlers.AddPlayer(c, db, logger)
	})
	authorized.POST("/games/:id/players/import", func(c *gin.Context) {
		handlers.ImportPlayersCSV(c, db, logger)
	})
	authorized.GET("/games/:id/tickets", func(c *gin.Context) {
		handlers.ListTickets(c, db, logger)
	})
	authorized.POST("/games/:id/draw", func(c *gin.Context) {
		handlers.ExecuteDraw(c, db, logger)
	})
	authorized.GET("/games/:id/draws/latest", func(c *gin.Context) {
		handlers.GetLatestDraw(c, db, logger)
	})

	// テスト時はHTTPサーバーとして運用。デフォルトポートは ":8080"
	router.Run()

	// // 本番環境ではコメントアウトを解除し、HTTPSサーバーとして運用
	// err = router.RunTLS(":443", "path/to/cert.pem", "path/to/key.pem")
	// if err != nil {
	// 	logger.Fatal("Failed to run HTTPS server: ", zap.Error(err))
	// }
}
