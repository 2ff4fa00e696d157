package api

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
	"github.com/krishnarajt/second-thought-backend/internal/store"
)

const linkCodeTTL = 10 * time.Minute

// --- Request/response shapes ---

type blockRequest struct {
	Description string `json:"description" binding:"required,max=512"`
	StartTime   string `json:"start_time" binding:"required,hhmm"`
	EndTime     string `json:"end_time" binding:"required,hhmm"`
}

type scheduleRequest struct {
	Blocks []blockRequest `json:"blocks" binding:"required,dive"`
}

type settingsRequest struct {
	RemindBeforeActivity *bool  `json:"remind_before_activity"`
	RemindOnStart        *bool  `json:"remind_on_start"`
	NudgeDuringActivity  *bool  `json:"nudge_during_activity"`
	CongratulateOnFinish *bool  `json:"congratulate_on_finish"`
	Timezone             string `json:"timezone" binding:"omitempty,timezone"`
	DefaultSlotDuration  *int   `json:"default_slot_duration" binding:"omitempty,min=5,max=480"`
}

func blockJSON(b *domain.TimeBlock) gin.H {
	out := gin.H{
		"uuid":        b.ID,
		"date":        b.Date,
		"start_time":  b.StartTime,
		"end_time":    b.EndTime,
		"description": b.Description,
		"completed":   b.Completed,
	}
	if b.CompletedAt != nil {
		out["completed_at"] = b.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func blocksJSON(blocks []domain.TimeBlock) []gin.H {
	out := make([]gin.H, 0, len(blocks))
	for i := range blocks {
		out = append(out, blockJSON(&blocks[i]))
	}
	return out
}

// --- Handlers ---

func Healthz(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// PutSchedule replaces the whole day. Existing blocks for the date are
// dropped together with their delivery state; the new set starts clean.
func PutSchedule(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		date := c.Param("date")
		if _, err := domain.ParseDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}

		var body scheduleRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}

		blocks := make([]domain.TimeBlock, 0, len(body.Blocks))
		for i, br := range body.Blocks {
			b := domain.TimeBlock{
				ID:          uuid.NewString(),
				UserID:      user.ID,
				Date:        date,
				StartTime:   br.StartTime,
				EndTime:     br.EndTime,
				Description: br.Description,
			}
			if err := b.Validate(); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("block %d: %v", i, err)})
				return
			}
			blocks = append(blocks, b)
		}

		if err := app.Repo().ReplaceSchedule(c.Request.Context(), user.ID, date, blocks); err != nil {
			app.Logger().Error("replace schedule failed", zap.Int64("user_id", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save schedule"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "blocks": blocksJSON(blocks)})
	}
}

func GetSchedule(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		date := c.Param("date")
		if _, err := domain.ParseDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		respondSchedule(c, app, user, date)
	}
}

// GetToday resolves "today" in the user's own timezone, not the
// server's.
func GetToday(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		loc, err := time.LoadLocation(user.Timezone)
		if err != nil {
			loc = time.UTC
		}
		respondSchedule(c, app, user, time.Now().In(loc).Format(domain.DateLayout))
	}
}

func respondSchedule(c *gin.Context, app App, user *domain.User, date string) {
	blocks, err := app.Repo().ScheduleForDate(c.Request.Context(), user.ID, date)
	if err != nil {
		app.Logger().Error("schedule lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load schedule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "blocks": blocksJSON(blocks)})
}

// CompleteTask marks a block done; its remaining notifications are
// suppressed from the next dispatch cycle on.
func CompleteTask(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		taskUUID := c.Param("uuid")
		err := app.Repo().CompleteTask(c.Request.Context(), user.ID, taskUUID, time.Now().UTC())
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		if err != nil {
			app.Logger().Error("complete failed", zap.String("task", taskUUID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete task"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uuid": taskUUID, "completed": true})
	}
}

func GetSettings(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		c.JSON(http.StatusOK, settingsJSON(user))
	}
}

func PutSettings(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var body settingsRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}

		prefs := user.Prefs
		if body.RemindBeforeActivity != nil {
			prefs.RemindBeforeActivity = *body.RemindBeforeActivity
		}
		if body.RemindOnStart != nil {
			prefs.RemindOnStart = *body.RemindOnStart
		}
		if body.NudgeDuringActivity != nil {
			prefs.NudgeDuringActivity = *body.NudgeDuringActivity
		}
		if body.CongratulateOnFinish != nil {
			prefs.CongratulateOnFinish = *body.CongratulateOnFinish
		}
		tz := user.Timezone
		if body.Timezone != "" {
			canonical, err := domain.ValidateTZ(body.Timezone)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone"})
				return
			}
			tz = canonical
		}
		slot := user.DefaultSlotDuration
		if body.DefaultSlotDuration != nil {
			slot = *body.DefaultSlotDuration
		}

		if err := app.Repo().UpdateSettings(c.Request.Context(), user.ID, prefs, tz, slot); err != nil {
			app.Logger().Error("update settings failed", zap.Int64("user_id", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save settings"})
			return
		}
		user.Prefs, user.Timezone, user.DefaultSlotDuration = prefs, tz, slot
		c.JSON(http.StatusOK, settingsJSON(user))
	}
}

func settingsJSON(u *domain.User) gin.H {
	return gin.H{
		"remind_before_activity": u.Prefs.RemindBeforeActivity,
		"remind_on_start":        u.Prefs.RemindOnStart,
		"nudge_during_activity":  u.Prefs.NudgeDuringActivity,
		"congratulate_on_finish": u.Prefs.CongratulateOnFinish,
		"timezone":               u.Timezone,
		"default_slot_duration":  u.DefaultSlotDuration,
		"telegram_linked":        u.Linked(),
	}
}

// CreateLinkCode mints a short-lived 6-digit code the user pastes into
// the Telegram chat to bind it to their account.
func CreateLinkCode(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		expiresAt := time.Now().UTC().Add(linkCodeTTL)

		var code string
		var err error
		for attempt := 0; attempt < 3; attempt++ {
			code, err = randomCode()
			if err != nil {
				break
			}
			err = app.Repo().CreateLinkCode(c.Request.Context(), user.ID, code, expiresAt)
			if err == nil {
				break
			}
		}
		if err != nil {
			app.Logger().Error("link code failed", zap.Int64("user_id", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create link code"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code":       code,
			"expires_at": expiresAt.Format(time.RFC3339),
		})
	}
}

func Unlink(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := app.Repo().UnlinkTelegram(c.Request.Context(), user.ID); err != nil {
			app.Logger().Error("unlink failed", zap.Int64("user_id", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not unlink"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"telegram_linked": false})
	}
}

// randomCode draws 6 decimal digits from crypto/rand.
func randomCode() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(buf[:]) % 1000000
	return fmt.Sprintf("%06d", n), nil
}
