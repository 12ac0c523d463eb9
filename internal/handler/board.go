package handler

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collabify-backend/internal/board"
	"collabify-backend/internal/model"
	"collabify-backend/internal/presence"
)

// BoardHandler 보드 CRUD 핸들러
// Load/Save are the snapshot boundary of the realtime layer: a save replaces
// the stored document wholesale, so the last save observed by Postgres wins.
type BoardHandler struct {
	db       *gorm.DB
	presence *presence.Manager // nil = presence disabled
}

// NewBoardHandler BoardHandler 생성
func NewBoardHandler(db *gorm.DB, presence *presence.Manager) *BoardHandler {
	return &BoardHandler{db: db, presence: presence}
}

// CreateBoardRequest 보드 생성 요청
type CreateBoardRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// SaveBoardRequest 보드 저장 요청
type SaveBoardRequest struct {
	Data json.RawMessage `json:"data"`
}

// BoardResponse 보드 응답
type BoardResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	OwnerID     int64           `json:"owner_id"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// CreateBoard 보드 생성 (빈 문서로 시작)
func (h *BoardHandler) CreateBoard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "board name is required"})
	}

	// Normalize whatever document shape the client sent; absent data means an
	// empty document.
	data := string(board.Deserialize(req.Data).Serialize())

	b := model.Board{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     userID,
		Data:        &data,
	}
	if err := h.db.Create(&b).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create board"})
	}

	return c.Status(fiber.StatusCreated).JSON(h.boardResponse(&b))
}

// GetMyBoards 내 보드 목록 (소유 + 협업)
func (h *BoardHandler) GetMyBoards(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var boards []model.Board
	err := h.db.
		Joins("LEFT JOIN board_collaborators bc ON bc.board_id = boards.id AND bc.user_id = ?", userID).
		Where("boards.owner_id = ? OR bc.user_id = ?", userID, userID).
		Group("boards.id").
		Order("boards.updated_at DESC").
		Find(&boards).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch boards"})
	}

	resp := make([]BoardResponse, 0, len(boards))
	for i := range boards {
		resp = append(resp, h.boardResponse(&boards[i]))
	}
	return c.JSON(resp)
}

// LoadBoard 보드 로드 (스냅샷 반환)
func (h *BoardHandler) LoadBoard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	b, status := h.authorizedBoard(c, userID)
	if b == nil {
		return status
	}

	return c.JSON(h.boardResponse(b))
}

// SaveBoard 보드 저장 (전체 덮어쓰기)
func (h *BoardHandler) SaveBoard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	b, status := h.authorizedBoard(c, userID)
	if b == nil {
		return status
	}

	var req SaveBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Data == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request format, expected { data: { blocks, strokes } }",
		})
	}

	doc := board.Deserialize(req.Data)
	data := string(doc.Serialize())

	if err := h.db.Model(b).Update("data", data).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save board"})
	}

	log.Printf("[Board] user %d saved board %d (%d blocks, %d strokes)",
		userID, b.ID, len(doc.Blocks), len(doc.Strokes))

	b.Data = &data
	return c.JSON(fiber.Map{"success": true, "board": h.boardResponse(b)})
}

// DeleteBoard 보드 삭제 (소유자만)
func (h *BoardHandler) DeleteBoard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	b, status := h.authorizedBoard(c, userID)
	if b == nil {
		return status
	}
	if b.OwnerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the owner can delete a board"})
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", b.ID).Delete(&model.BoardCollaborator{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", b.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(b).Error
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete board"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// AddCollaboratorRequest 협업자 추가 요청
type AddCollaboratorRequest struct {
	Email string `json:"email"`
}

// AddCollaborator 협업자 추가 (소유자만)
func (h *BoardHandler) AddCollaborator(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	b, status := h.authorizedBoard(c, userID)
	if b == nil {
		return status
	}
	if b.OwnerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the owner can manage collaborators"})
	}

	var req AddCollaboratorRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	var user model.User
	if err := h.db.Where("email = ?", strings.TrimSpace(strings.ToLower(req.Email))).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	if user.ID == b.OwnerID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "owner is already a member"})
	}

	collab := model.BoardCollaborator{BoardID: b.ID, UserID: user.ID}
	if err := h.db.Create(&collab).Error; err != nil {
		// Unique index on (board_id, user_id): adding twice is not an error
		// worth failing the request over.
		var existing model.BoardCollaborator
		if err := h.db.Where("board_id = ? AND user_id = ?", b.ID, user.ID).First(&existing).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to add collaborator"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Nickname:   user.Nickname,
		ProfileImg: user.ProfileImg,
	})
}

// RemoveCollaborator 협업자 제거 (소유자만)
func (h *BoardHandler) RemoveCollaborator(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	b, status := h.authorizedBoard(c, userID)
	if b == nil {
		return status
	}
	if b.OwnerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the owner can manage collaborators"})
	}

	collabUserID, err := c.ParamsInt("userId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	if err := h.db.Where("board_id = ? AND user_id = ?", b.ID, collabUserID).
		Delete(&model.BoardCollaborator{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to remove collaborator"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// CollaboratorResponse 협업자 응답 (접속 상태 포함)
type CollaboratorResponse struct {
	UserResponse
	Online bool `json:"online"`
}

// GetCollaborators 협업자 목록
func (h *BoardHandler) GetCollaborators(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	b, status := h.authorizedBoard(c, userID)
	if b == nil {
		return status
	}

	var users []model.User
	if err := h.db.
		Joins("JOIN board_collaborators bc ON bc.user_id = users.id").
		Where("bc.board_id = ?", b.ID).
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch collaborators"})
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	online, err := h.presence.GetMulti(c.Context(), ids)
	if err != nil {
		log.Printf("[Board] presence lookup failed: %v", err)
		online = map[int64]*presence.Data{}
	}

	resp := make([]CollaboratorResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, CollaboratorResponse{
			UserResponse: UserResponse{
				ID:         u.ID,
				Email:      u.Email,
				Nickname:   u.Nickname,
				ProfileImg: u.ProfileImg,
			},
			Online: online[u.ID] != nil,
		})
	}
	return c.JSON(resp)
}

// authorizedBoard loads the board from the :id param and checks that the user
// is its owner or a collaborator. On failure it returns (nil, alreadyWritten
// fiber response).
func (h *BoardHandler) authorizedBoard(c *fiber.Ctx, userID int64) (*model.Board, error) {
	boardID, err := c.ParamsInt("id")
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}

	var b model.Board
	if err := h.db.First(&b, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	if !HasBoardAccess(h.db, b.ID, b.OwnerID, userID) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
	return &b, nil
}

func (h *BoardHandler) boardResponse(b *model.Board) BoardResponse {
	data := json.RawMessage(`{"blocks":[],"strokes":[]}`)
	if b.Data != nil && *b.Data != "" {
		data = json.RawMessage(*b.Data)
	}
	return BoardResponse{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		OwnerID:     b.OwnerID,
		Data:        data,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
}

// HasBoardAccess reports whether the user owns the board or collaborates on
// it. The websocket handshake uses the same check.
func HasBoardAccess(db *gorm.DB, boardID, ownerID, userID int64) bool {
	if ownerID == userID {
		return true
	}
	var count int64
	db.Model(&model.BoardCollaborator{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&count)
	return count > 0
}
