package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collabify-backend/internal/model"
)

// MessageHandler 보드 채팅 메시지 핸들러
// Chat messages are the only event kind that outlives the relay: they land in
// Postgres here, while their real-time copy fans out over the board room.
type MessageHandler struct {
	db *gorm.DB
}

// NewMessageHandler MessageHandler 생성
func NewMessageHandler(db *gorm.DB) *MessageHandler {
	return &MessageHandler{db: db}
}

// MessageResponse 메시지 응답
type MessageResponse struct {
	ID         int64  `json:"id"`
	BoardID    int64  `json:"board_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	CreatedAt  string `json:"created_at"`
}

// CreateMessageRequest 메시지 생성 요청
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// GetMessages 보드 메시지 목록 (오래된 순, 최대 100개)
func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	boardID, resp := h.accessibleBoard(c, userID)
	if resp != nil {
		return resp
	}

	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var messages []model.Message
	if err := h.db.Where("board_id = ?", boardID).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch messages"})
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse(&m))
	}
	return c.JSON(out)
}

// CreateMessage 메시지 생성
func (h *MessageHandler) CreateMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	nickname, _ := c.Locals("nickname").(string)

	boardID, resp := h.accessibleBoard(c, userID)
	if resp != nil {
		return resp
	}

	var req CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	msg, err := AppendMessage(h.db, boardID, userID, nickname, req.Content)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create message"})
	}

	return c.Status(fiber.StatusCreated).JSON(messageResponse(msg))
}

// ErrEmptyMessage 빈 메시지
var ErrEmptyMessage = errors.New("empty message")

// AppendMessage persists one chat message for a board. Shared by the HTTP
// handler and the websocket chat path. Overlong content is clipped, not
// rejected.
func AppendMessage(db *gorm.DB, boardID, senderID int64, senderName, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > model.MaxMessageLength {
		content = content[:model.MaxMessageLength]
	}

	msg := model.Message{
		BoardID:    boardID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Type:       model.MessageTypeText.String(),
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func messageResponse(m *model.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		BoardID:    m.BoardID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

// accessibleBoard resolves :id and checks board access for the user.
func (h *MessageHandler) accessibleBoard(c *fiber.Ctx, userID int64) (int64, error) {
	boardID, err := c.ParamsInt("id")
	if err != nil {
		return 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}

	var b model.Board
	if err := h.db.Select("id", "owner_id").First(&b, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
		}
		return 0, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	if !HasBoardAccess(h.db, b.ID, b.OwnerID, userID) {
		return 0, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	}
	return b.ID, nil
}
