package model

import (
	"time"
)

// User 사용자 계정
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname     string    `gorm:"type:varchar(100);not null" json:"nickname"`
	PasswordHash *string   `gorm:"type:varchar(255)" json:"-"` // nil for social-login accounts
	ProfileImg   *string   `gorm:"type:text" json:"profile_img,omitempty"`
	Provider     *string   `gorm:"type:varchar(50)" json:"provider,omitempty"`
	ProviderID   *string   `gorm:"type:varchar(255)" json:"provider_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Boards []Board `gorm:"foreignKey:OwnerID" json:"boards,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Board 화이트보드
// Data holds the whole serialized document (blocks + strokes) as jsonb.
// Every save replaces it wholesale; there is no field-level merge.
type Board struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     int64     `gorm:"not null;index" json:"owner_id"`
	Data        *string   `gorm:"type:jsonb" json:"data,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Owner         User                `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Collaborators []BoardCollaborator `gorm:"foreignKey:BoardID" json:"collaborators,omitempty"`
	Messages      []Message           `gorm:"foreignKey:BoardID" json:"messages,omitempty"`
}

func (Board) TableName() string {
	return "boards"
}

// BoardCollaborator 보드 협업자
type BoardCollaborator struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID int64     `gorm:"not null;uniqueIndex:idx_board_user" json:"board_id"`
	UserID  int64     `gorm:"not null;uniqueIndex:idx_board_user" json:"user_id"`
	AddedAt time.Time `gorm:"autoCreateTime" json:"added_at"`

	// Relations
	Board Board `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (BoardCollaborator) TableName() string {
	return "board_collaborators"
}

// Message 보드 채팅 메시지
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID    int64     `gorm:"not null;index:idx_board_created" json:"board_id"`
	SenderID   int64     `gorm:"not null" json:"sender_id"`
	SenderName string    `gorm:"type:varchar(100);not null" json:"sender_name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Type       string    `gorm:"type:varchar(20);default:'text'" json:"type"` // text, system
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_board_created" json:"created_at"`

	// Relations
	Board  Board `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	Sender User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
