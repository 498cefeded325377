package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const (
	receiveIDTypeChat = "chat_id"
	msgTypeText       = "text"
)

// Notifier implements port.Notifier by posting text messages to one group chat
type Notifier struct {
	client *SDKClient
	chatID string
	logger *zap.Logger
}

// NewNotifier creates a notifier that posts to chatID
func NewNotifier(client *SDKClient, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		client: client,
		chatID: chatID,
		logger: logger,
	}
}

// Notify sends text to the configured chat
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := textContent(text)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeChat).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType(msgTypeText).
			Content(content).
			Build()).
		Build()

	resp, err := n.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("chat_id", n.chatID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("chat_id", n.chatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Notification sent",
		zap.String("message_id", messageID),
		zap.String("chat_id", n.chatID))
	return nil
}

// textContent builds the JSON body of a text message
func textContent(text string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(b), nil
}

var _ port.Notifier = (*Notifier)(nil)
