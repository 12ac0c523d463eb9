package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"collabify-backend/internal/auth"
	"collabify-backend/internal/board"
	"collabify-backend/internal/model"
)

// 개발용 시드 데이터 생성: 데모 계정 + 예시 보드 + 환영 메시지
func main() {
	email := flag.String("email", "demo@collabify.local", "demo account email")
	password := flag.String("password", "demo1234", "demo account password")
	nickname := flag.String("nickname", "Demo", "demo account nickname")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

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

	var user model.User
	err = db.Where("email = ?", *email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := auth.HashPassword(*password)
		if err != nil {
			log.Fatal("Failed to hash password:", err)
		}
		user = model.User{Email: *email, Nickname: *nickname, PasswordHash: &hash}
		if err := db.Create(&user).Error; err != nil {
			log.Fatal("Failed to create demo user:", err)
		}
		fmt.Printf("👤 Created demo user %s (id=%d)\n", user.Email, user.ID)
	case err != nil:
		log.Fatal("Failed to look up demo user:", err)
	default:
		fmt.Printf("👤 Demo user %s already exists (id=%d)\n", user.Email, user.ID)
	}

	// 예시 보드: 텍스트 블록 2개가 배치된 상태로 시작
	doc := board.NewDocument()
	doc.AddBlock(board.KindText, 120, 80, "Welcome to Collabify!")
	doc.AddBlock(board.KindText, 120, 220, "Open this board in two windows to try realtime sync.")
	data := string(doc.Serialize())

	demo := model.Board{
		Name:        "Getting Started",
		Description: "A demo board seeded for development",
		OwnerID:     user.ID,
		Data:        &data,
	}
	if err := db.Where("owner_id = ? AND name = ?", user.ID, demo.Name).
		FirstOrCreate(&demo).Error; err != nil {
		log.Fatal("Failed to create demo board:", err)
	}
	fmt.Printf("📋 Demo board ready (id=%d)\n", demo.ID)

	welcome := model.Message{
		BoardID:    demo.ID,
		SenderID:   user.ID,
		SenderName: "Collabify",
		Content:    "Welcome! Messages you send here are stored per board.",
		Type:       model.MessageTypeSystem.String(),
	}
	var count int64
	db.Model(&model.Message{}).Where("board_id = ? AND type = ?", demo.ID, model.MessageTypeSystem.String()).Count(&count)
	if count == 0 {
		if err := db.Create(&welcome).Error; err != nil {
			log.Fatal("Failed to create welcome message:", err)
		}
		fmt.Println("💬 Welcome message created")
	}

	fmt.Println("✅ Seeding complete")
}
