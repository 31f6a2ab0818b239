package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage(
		"alerts@example.com",
		[]string{"a@example.com", "b@example.com"},
		"Bybit MONUSDT Report",
		"Buy Volume: 13.00",
	)

	assert.True(t, strings.HasPrefix(msg, "From: alerts@example.com\r\n"))
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: Bybit MONUSDT Report\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")

	// Headers and body separated by one blank line.
	_, body, found := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, found)
	assert.Equal(t, "Buy Volume: 13.00", body)
}

func TestSendFailsFastOnUnreachableHost(t *testing.T) {
	sender := &EmailSender{
		Host:       "127.0.0.1",
		Port:       1,
		Sender:     "alerts@example.com",
		Password:   "secret",
		Recipients: []string{"a@example.com"},
	}

	err := sender.Send("subject", "body")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}
