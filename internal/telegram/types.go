// Package telegram — wire types.
//
// Only the fields the relay reads are mapped; everything else in the Bot API
// payloads is ignored by the JSON decoder.
package telegram

// User is the result of getMe: the bot's own identity.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// PhotoSize is one rendition of a delivered photo. Telegram returns sizes in
// ascending order; the last element is the largest.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Video is the video attachment of a delivered message.
type Video struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

// Message is a delivered (outbound) or received (inbound) chat message.
type Message struct {
	MessageID int64       `json:"message_id"`
	From      *Peer       `json:"from,omitempty"`
	Chat      *Chat       `json:"chat,omitempty"`
	Text      string      `json:"text,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Video     *Video      `json:"video,omitempty"`
}

// MediaFileID extracts the platform-assigned file identifier from a send
// response: the largest photo size for photos, the video's file_id otherwise.
// Empty when the message carries no matching media.
func (m *Message) MediaFileID(mediaType string) string {
	if m == nil {
		return ""
	}
	if mediaType == "video" {
		if m.Video != nil {
			return m.Video.FileID
		}
		return ""
	}
	if n := len(m.Photo); n > 0 {
		return m.Photo[n-1].FileID
	}
	return ""
}

// Peer identifies the human on the other end of an update.
type Peer struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Chat identifies the conversation an update belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// CallbackQuery is an inline-keyboard press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *Peer    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Update is the top-level webhook payload.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// InlineKeyboardButton is one pressable button carrying callback data.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// InlineKeyboardMarkup is the inline keyboard attached to a message, one
// button row per element.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}
