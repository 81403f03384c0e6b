package store

import "time"

// User is a Discord user known to the bot.
type User struct {
	ID         string    `gorm:"primaryKey;size:32"`
	DeviceName string    `gorm:"size:32;not null;default:'Spoticord'"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName pins the table name shared with the SQL migrations.
func (User) TableName() string { return "users" }

// Account is the Spotify account linked to a User.
type Account struct {
	UserID       string    `gorm:"primaryKey;size:32"`
	Username     string    `gorm:"size:64;not null"`
	AccessToken  string    `gorm:"size:1024;not null"`
	RefreshToken string    `gorm:"size:1024;not null"`
	Expires      time.Time `gorm:"not null"`
	LastUpdated  time.Time `gorm:"not null"`
	User         User      `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName pins the table name shared with the SQL migrations.
func (Account) TableName() string { return "accounts" }

// LinkRequest is a pending account link issued to a User.
type LinkRequest struct {
	Token   string    `gorm:"primaryKey;size:64"`
	UserID  string    `gorm:"uniqueIndex;size:32;not null"`
	Expires time.Time `gorm:"not null"`
	User    User      `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName pins the table name shared with the SQL migrations.
func (LinkRequest) TableName() string { return "link_requests" }

// AllModels returns every model managed by AutoMigrate.
func AllModels() []any {
	return []any{&User{}, &Account{}, &LinkRequest{}}
}
