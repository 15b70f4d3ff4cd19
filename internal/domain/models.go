// Package domain defines the persistence models for registered bots and the
// interactions their end users produce. These types are mapped with GORM and
// form the core data layer of the relay service.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Bot represents one registered tenant: a Telegram bot token plus the
// configuration used to answer its incoming updates (media, message
// templates, purchasable plans).
//
// Media memoization fields:
//   - MediaURL: source URL of the configured media asset.
//   - MediaFileID: Telegram-assigned file identifier captured after the first
//     upload. Once set, sends reuse it instead of re-uploading.
//   - MediaFileProcessed: true when MediaFileID has been captured.
//
// Changing MediaURL must clear MediaFileID and MediaFileProcessed so the next
// send re-triggers the upload path (enforced in repo.UpdateBotFields).
type Bot struct {
	BotID         string `json:"bot_id"         gorm:"type:varchar(32);primaryKey"`
	Token         string `json:"-"              gorm:"type:varchar(128);not null;uniqueIndex"`
	Username      string `json:"username"       gorm:"type:varchar(64)"`
	WebhookSecret string `json:"-"              gorm:"type:varchar(64);not null"`
	WebhookActive bool   `json:"webhook_active" gorm:"not null;default:false"`
	IsActive      bool   `json:"is_active"      gorm:"not null;default:true"`

	MediaURL           string `json:"media_url"            gorm:"type:text"`
	MediaFileID        string `json:"media_file_id"        gorm:"type:varchar(256)"`
	MediaFileProcessed bool   `json:"media_file_processed" gorm:"not null;default:false"`
	MediaType          string `json:"media_type"           gorm:"type:varchar(16);default:'photo'"`

	Message1 string   `json:"message_1" gorm:"type:text"`
	Message2 string   `json:"message_2" gorm:"type:text"`
	Plans    PlanList `json:"plans"     gorm:"type:text"`

	TotalUsers    int64      `json:"total_users"    gorm:"not null;default:0"`
	TotalMessages int64      `json:"total_messages" gorm:"not null;default:0"`
	LastActivity  *time.Time `json:"last_activity"`
	LastError     string     `json:"last_error" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Bot.
func (Bot) TableName() string { return "bots" }

// Interaction is one append-only record of an end user talking to a bot.
// Command is set when the message text starts with '/'; CallbackData is set
// for inline-keyboard callbacks. Rows are never updated after insert.
type Interaction struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	BotID        string    `json:"bot_id"        gorm:"type:varchar(32);not null;index:idx_bot_interactions,priority:1"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(32);not null;index"`
	Username     string    `json:"username"      gorm:"type:varchar(64)"`
	FirstName    string    `json:"first_name"    gorm:"type:varchar(128)"`
	Command      string    `json:"command"       gorm:"type:varchar(64)"`
	CallbackData string    `json:"callback_data" gorm:"type:varchar(128)"`
	MessageText  string    `json:"message_text"  gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index:idx_bot_interactions,priority:2"`

	// Bot is the owning tenant. Interactions are cascade-deleted if the
	// bot is removed.
	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:BotID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Interaction.
func (Interaction) TableName() string { return "interactions" }
