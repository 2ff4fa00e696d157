package telegram

import (
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsUnreachable(t *testing.T) {
	blocked := &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	assert.True(t, isUnreachable(blocked))
	assert.True(t, isUnreachable(fmt.Errorf("send: %w", blocked)))

	gone := &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}
	assert.True(t, isUnreachable(gone))

	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5"}
	assert.False(t, isUnreachable(flood))
	assert.False(t, isUnreachable(errors.New("dial tcp: i/o timeout")))
}
