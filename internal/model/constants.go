package model

// MessageType 채팅 메시지 타입
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// String 메서드
func (m MessageType) String() string {
	return string(m)
}

// MaxMessageLength 채팅 메시지 최대 길이
const MaxMessageLength = 2000
