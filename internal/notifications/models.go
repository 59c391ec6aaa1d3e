package notifications

import (
	"errors"
	"time"
)

var ErrUserNotConnected = errors.New("user not connected")

// WebSocket message types
const (
	WSMessageTypeStatus               = "status"
	WSMessageTypePresence             = "presence"
	WSMessageTypeBulkGenerateProgress = "bulk_generate_progress"
	WSMessageTypeBulkDownloadProgress = "bulk_download_progress"
	WSMessageTypeCertificateGenerated = "certificate_generated"
)

// WebSocketMessage represents WebSocket message format
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Channel   string      `json:"channel,omitempty"`
	Target    string      `json:"target,omitempty"`
}

// Notifier delivers a message to every live connection of one admin
type Notifier interface {
	SendToUser(userID string, message WebSocketMessage) error
}

// NewMessage stamps a message of the given type
func NewMessage(msgType string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Channel:   "private",
	}
}

// NopNotifier drops every message
type NopNotifier struct{}

func (NopNotifier) SendToUser(string, WebSocketMessage) error { return nil }
