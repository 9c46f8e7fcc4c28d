package models

import (
	"time"
)

type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Role struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

type User struct {
	ID           uint          `gorm:"primaryKey;autoIncrement"                  json:"id"`
	Email        string        `gorm:"uniqueIndex;not null"                      json:"email"`
	FullName     string        `gorm:"not null"                                  json:"full_name"`
	PasswordHash string        `gorm:"not null"                                  json:"-"`
	Status       AccountStatus `gorm:"type:varchar(16);not null;default:active"  json:"status"`
	RoleID       uint          `gorm:"index;not null"                            json:"role_id"`
	Role         Role          `gorm:"foreignKey:RoleID"                         json:"role"`
	LastLogin    *time.Time    `                                                 json:"last_login"`
	LastModified time.Time     `gorm:"not null"                                  json:"last_modified"`
	IsDeleted    bool          `gorm:"not null;default:false;index"              json:"-"`
	CreatedAt    time.Time     `                                                 json:"created_at"`
}

type Quiz struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"not null"                 json:"title"`
	Description string    `                                json:"description"`
	IsPublished bool      `gorm:"not null;default:false"   json:"is_published"`
	CreatedByID uint      `gorm:"index"                    json:"created_by_id"`
	IsDeleted   bool      `gorm:"not null;default:false"   json:"-"`
	CreatedAt   time.Time `                                json:"created_at"`
}

type Question struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID uint   `gorm:"index;not null"           json:"quiz_id"`
	Text   string `gorm:"not null"                 json:"text"`
}

type QuizAttempt struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID      uint      `gorm:"index;not null"           json:"quiz_id"`
	UserID      uint      `gorm:"index;not null"           json:"user_id"`
	Score       int       `gorm:"not null"                 json:"score"`
	MaxScore    int       `gorm:"not null"                 json:"max_score"`
	CompletedAt time.Time `gorm:"index;not null"           json:"completed_at"`
}

func All() []any {
	return []any{&Role{}, &User{}, &Quiz{}, &Question{}, &QuizAttempt{}}
}
