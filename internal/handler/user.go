package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collabify-backend/internal/model"
)

// UserHandler 사용자 핸들러
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler UserHandler 생성
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

type userSummary struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// SearchUsers 이메일/닉네임으로 사용자 검색 (협업자 초대용)
func (h *UserHandler) SearchUsers(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 2 {
		return c.JSON([]userSummary{})
	}

	pattern := "%" + query + "%"
	var users []model.User
	if err := h.db.
		Where("id != ? AND (email ILIKE ? OR nickname ILIKE ?)", userID, pattern, pattern).
		Order("nickname ASC").
		Limit(10).
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "사용자 검색에 실패했습니다",
		})
	}

	results := make([]userSummary, 0, len(users))
	for _, u := range users {
		results = append(results, userSummary{ID: u.ID, Email: u.Email, Nickname: u.Nickname})
	}
	return c.JSON(results)
}
