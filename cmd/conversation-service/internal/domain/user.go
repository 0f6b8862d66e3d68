package domain

import "time"

// User 用户
type User struct {
	ID        int64
	UserID    string // 认证主体（token subject）
	Email     string
	Name      string
	IsAdmin   bool
	CreatedAt time.Time
	LastLogin time.Time
}

// Identity 已认证的调用方身份
type Identity struct {
	UserID  string
	Email   string
	Name    string
	IsAdmin bool
}
