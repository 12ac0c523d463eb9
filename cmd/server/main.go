package main

import (
	"log"

	"collabify-backend/internal/config"
	"collabify-backend/internal/database"
	"collabify-backend/internal/presence"
	"collabify-backend/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	// 데이터베이스 연결
	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer database.Close()

	// Ping 테스트
	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database ping failed: %v", err)
	}
	log.Printf("✅ Database connected successfully")

	// Presence 캐시 (선택적)
	var pm *presence.Manager
	if cfg.Redis.Enabled {
		pm = presence.NewManager(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		log.Printf("✅ Presence cache enabled (%s)", cfg.Redis.Addr)
		defer pm.Close()
	} else {
		log.Println("ℹ️ Presence cache not configured (REDIS_ENABLED=false)")
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, db, pm)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
