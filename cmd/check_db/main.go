package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// 데이터베이스 상태 점검 유틸리티: 테이블 존재 여부와 기본 통계 출력
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	// Database connection
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_SSLMODE"),
		os.Getenv("DB_TIMEZONE"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	fmt.Println("✅ Connected to database")
	fmt.Println()

	tables := []string{"users", "boards", "board_collaborators", "messages"}
	for _, table := range tables {
		var exists bool
		query := `
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_name = ?
			)
		`
		if err := db.Raw(query, table).Scan(&exists).Error; err != nil {
			log.Fatal("Failed to check table:", err)
		}
		if !exists {
			fmt.Printf("❌ Table %s does NOT exist (run the server once to migrate)\n", table)
			continue
		}

		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			log.Fatal("Failed to count rows:", err)
		}
		fmt.Printf("📊 %-20s %d rows\n", table, count)
	}
	fmt.Println()

	// 보드별 부하 확인: 블록이 많은 보드와 메시지가 많은 보드 상위 5개
	type BoardStat struct {
		ID       int64
		Name     string
		Messages int64
	}
	var stats []BoardStat
	query := `
		SELECT b.id, b.name, COUNT(m.id) AS messages
		FROM boards b
		LEFT JOIN messages m ON m.board_id = b.id
		GROUP BY b.id, b.name
		ORDER BY messages DESC
		LIMIT 5
	`
	if err := db.Raw(query).Scan(&stats).Error; err != nil {
		log.Fatal("Failed to get board statistics:", err)
	}

	fmt.Println("📈 Busiest boards (by message count):")
	for _, s := range stats {
		fmt.Printf("  - ID: %d, Name: %s, Messages: %d\n", s.ID, s.Name, s.Messages)
	}
}
