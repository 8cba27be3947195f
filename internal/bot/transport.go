// Package bot turns chat updates into food log operations and replies. It
// talks to the chat platform only through Transport.
package bot

import (
	"context"
	"strings"
)

type Button struct {
	Text string
	Data string
}

// Transport is the outbound side of the chat platform. Buttons are laid out
// as rows.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, buttons [][]Button) (int, error)
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, buttons [][]Button) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, buttons [][]Button) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Update is one inbound event: a text message, a photo or a button press.
type Update struct {
	ID           int
	Sender       Sender
	ChatID       int64
	MessageID    int
	Text         string
	PhotoFileID  string
	CallbackID   string
	CallbackData string
}

const (
	KindText     = "text"
	KindCommand  = "command"
	KindPhoto    = "photo"
	KindCallback = "callback"
)

func (u Update) Kind() string {
	switch {
	case u.CallbackID != "":
		return KindCallback
	case u.PhotoFileID != "":
		return KindPhoto
	case strings.HasPrefix(strings.TrimSpace(u.Text), "/"):
		return KindCommand
	default:
		return KindText
	}
}

// Command splits "/weight@diet_bot 72,5" into "weight" and "72,5".
func (u Update) Command() (string, string) {
	text := strings.TrimSpace(u.Text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	name, args, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args)
}
