package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"collabify-backend/internal/auth"
	"collabify-backend/internal/config"
	"collabify-backend/internal/handler"
	"collabify-backend/internal/model"
	"collabify-backend/internal/presence"
	"collabify-backend/internal/realtime"
)

// Server Fiber 서버 래퍼
type Server struct {
	app            *fiber.App
	cfg            *config.Config
	db             *gorm.DB
	authHandler    *handler.AuthHandler
	userHandler    *handler.UserHandler
	boardHandler   *handler.BoardHandler
	messageHandler *handler.MessageHandler
	boardWSHandler *handler.BoardWSHandler
	jwtManager     *auth.JWTManager
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB, pm *presence.Manager) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Collabify Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024, // 10MB - 보드 문서 전체 저장 허용
		DisableStartupMessage: false,
	})

	// Auth 초기화
	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	googleAuth := auth.NewGoogleAuthenticator(cfg.Auth.GoogleClientID)

	// Realtime 초기화
	registry := realtime.NewRegistry()
	relay := realtime.NewRelay(registry)

	return &Server{
		app:            app,
		cfg:            cfg,
		db:             db,
		authHandler:    handler.NewAuthHandler(db, jwtManager, googleAuth, cfg.Auth.SecureCookie),
		userHandler:    handler.NewUserHandler(db),
		boardHandler:   handler.NewBoardHandler(db, pm),
		messageHandler: handler.NewMessageHandler(db),
		boardWSHandler: handler.NewBoardWSHandler(db, registry, relay, pm, cfg.WebSocket.WriteTimeout),
		jwtManager:     jwtManager,
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Rate Limiter 설정 (인증 엔드포인트용 - Brute Force 방지)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,              // 최대 10회
		Expiration: 1 * time.Minute, // 1분당
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // IP 기반 제한
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/google", authLimiter, s.authHandler.GoogleLogin)
	authGroup.Post("/refresh", authLimiter, s.authHandler.RefreshToken)
	authGroup.Post("/logout", auth.Middleware(s.jwtManager), s.authHandler.Logout)
	authGroup.Get("/me", auth.Middleware(s.jwtManager), s.authHandler.GetMe)

	// User 라우트 그룹 (인증 필요)
	userGroup := s.app.Group("/api/users", auth.Middleware(s.jwtManager))
	userGroup.Get("/search", s.userHandler.SearchUsers)

	// Board 라우트 그룹 (인증 필요)
	boardGroup := s.app.Group("/api/boards", auth.Middleware(s.jwtManager))
	boardGroup.Post("/", s.boardHandler.CreateBoard)
	boardGroup.Get("/", s.boardHandler.GetMyBoards)
	boardGroup.Get("/:id", s.boardHandler.LoadBoard)
	boardGroup.Put("/:id", s.boardHandler.SaveBoard)
	boardGroup.Delete("/:id", s.boardHandler.DeleteBoard)

	// Collaborator 라우트 (보드 하위)
	boardGroup.Get("/:id/collaborators", s.boardHandler.GetCollaborators)
	boardGroup.Post("/:id/collaborators", s.boardHandler.AddCollaborator)
	boardGroup.Delete("/:id/collaborators/:userId", s.boardHandler.RemoveCollaborator)

	// Message 라우트 (보드 하위)
	boardGroup.Get("/:id/messages", s.messageHandler.GetMessages)
	boardGroup.Post("/:id/messages", s.messageHandler.CreateMessage)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 보드 엔드포인트 (boardId 기반)
	s.app.Get("/ws/board/:boardId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		// 쿠키 또는 쿼리 파라미터에서 JWT 토큰 추출
		accessToken := c.Cookies("access_token")
		if accessToken == "" {
			accessToken = c.Query("token")
		}
		if accessToken == "" {
			// WebSocket은 JSON 응답 대신 연결 거부
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		// JWT 검증
		claims, err := s.jwtManager.ValidateAccessToken(accessToken)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		boardID, err := c.ParamsInt("boardId")
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// 보드 접근 권한 확인 (소유자 또는 협업자)
		var board model.Board
		if err := s.db.Select("id, owner_id").First(&board, int64(boardID)).Error; err != nil {
			return c.SendStatus(fiber.StatusNotFound)
		}
		if !handler.HasBoardAccess(s.db, board.ID, board.OwnerID, claims.UserID) {
			return c.SendStatus(fiber.StatusForbidden)
		}

		c.Locals("boardID", c.Params("boardId"))
		c.Locals("userID", claims.UserID)
		c.Locals("nickname", claims.Nickname)

		return c.Next()
	}, websocket.New(s.boardWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Collabify backend starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/board/:boardId", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
