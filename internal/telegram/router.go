package telegram

import (
	"context"
	"regexp"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/krishnarajt/second-thought-backend/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingTZ = "await_tz_text"
)

var linkCodeRe = regexp.MustCompile(`^\d{6}$`)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot   *tgbotapi.BotAPI
	log   *zap.Logger
	repo  store.Repo
	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo) *Router {
	return &Router{
		bot:   bot,
		log:   log,
		repo:  repo,
		state: make(map[int64]string),
	}
}

func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)
		username := ""
		if msg.From != nil {
			username = msg.From.UserName
		}

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/link"):
			arg := strings.TrimSpace(strings.TrimPrefix(text, "/link"))
			r.handleLink(ctx, chatID, username, arg)
		case strings.HasPrefix(text, "/today"):
			r.handleToday(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			r.handleSettings(ctx, chatID)
		case strings.HasPrefix(text, "/unlink"):
			r.handleUnlink(ctx, chatID)
		case strings.HasPrefix(text, "/help"):
			r.sendText(chatID, helpText)
		default:
			r.handleFreeForm(ctx, chatID, username, text)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case strings.HasPrefix(data, "pref:"):
			r.handlePrefToggle(ctx, chatID, strings.TrimPrefix(data, "pref:"), cb.ID)
		case data == "set_tz":
			r.askTZPresets(ctx, chatID, cb.ID)
		case data == "tz:custom":
			_ = r.answerCallback(cb.ID, "")
			r.sendText(chatID, askTZText)
			r.setPending(chatID, pendingTZ)
		case strings.HasPrefix(data, "tz:"):
			r.handleTZCallback(ctx, chatID, strings.TrimPrefix(data, "tz:"), cb.ID)
		case strings.HasPrefix(data, "done:"):
			r.handleDoneCallback(ctx, chatID, strings.TrimPrefix(data, "done:"), cb.ID)
		default:
			// Unknown callback — ignore silently
		}
		return
	}
}

// handleFreeForm resolves non-command text: a pending timezone entry or
// a bare 6-digit link code.
func (r *Router) handleFreeForm(ctx context.Context, chatID int64, username, text string) {
	if r.getPending(chatID) == pendingTZ {
		r.clearPending(chatID)
		r.applyTZ(ctx, chatID, text)
		return
	}
	if linkCodeRe.MatchString(text) {
		r.handleLink(ctx, chatID, username, text)
		return
	}
	// No pending flow: ignore free-form message
}
