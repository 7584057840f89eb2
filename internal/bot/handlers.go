package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const cancelPrefix = "cancel:"

// maxCancelButtons caps the inline keyboard under /my_reminders.
const maxCancelButtons = 10

const usageText = "Create a reminder:\n" +
	"/remind HH:MM text\n" +
	"/remind YYYY-MM-DD HH:MM text\n\n" +
	"Your reminders: /my_reminders\n" +
	"Cancel one: /cancel <id>"

const examplesText = "Format:\n" +
	"/remind HH:MM text\n" +
	"or:\n" +
	"/remind YYYY-MM-DD HH:MM text\n\n" +
	"Examples:\n" +
	"/remind 18:00 Call mom\n" +
	"/remind 2030-12-31 23:59 Send greetings"

func (s *Service) handleHelp(ctx context.Context, req *Request) error {
	tz := s.engine.Location().String()
	return s.reply(ctx, req, "Hi! I'm a reminder bot.\n"+usageText+"\n\nTimes are in "+tz+".", nil)
}

func (s *Service) handleRemind(ctx context.Context, req *Request) error {
	loc := s.engine.Location()
	at, text, err := ParseRemind(req.Args, s.engine.Now(), loc)
	if err != nil {
		return s.reply(ctx, req, "⚠️ Error: "+err.Error()+"\n\n"+examplesText, nil)
	}

	res, err := s.engine.Schedule(ctx, scheduler.ScheduleRequest{
		ExternalID: req.FromID,
		Profile:    req.Profile,
		Text:       text,
		FireAt:     at,
	})
	if err != nil {
		var verr *scheduler.ValidationError
		if errors.As(err, &verr) {
			return s.reply(ctx, req, "⚠️ Error: "+verr.Err.Error()+"\n\n"+examplesText, nil)
		}
		_ = s.reply(ctx, req, "❌ Could not save the reminder. Please try again later.", nil)
		return err
	}

	local := res.FireAt.In(loc)
	return s.reply(ctx, req, fmt.Sprintf("✅ Reminder set for %s %s:\n%s\nID: %s",
		local.Format(storage.DateLayout), local.Format("15:04"), text, res.JobID), nil)
}

func (s *Service) handleList(ctx context.Context, req *Request) error {
	uid, err := s.store.GetOrCreateUser(ctx, req.FromID, req.Profile)
	if err != nil {
		_ = s.reply(ctx, req, "❌ Could not load your reminders. Please try again later.", nil)
		return err
	}
	list, err := s.store.ListActiveReminders(ctx, uid)
	if err != nil {
		_ = s.reply(ctx, req, "❌ Could not load your reminders. Please try again later.", nil)
		return err
	}
	if len(list) == 0 {
		return s.reply(ctx, req, "No active reminders", nil)
	}
	text, buttons := renderList(list, s.engine.Location())
	return s.reply(ctx, req, text, buttons)
}

func renderList(list []storage.Reminder, loc *time.Location) (string, [][]kit.Button) {
	var b strings.Builder
	b.WriteString("📅 Your reminders:\n\n")
	var rows [][]kit.Button
	for i, r := range list {
		when := r.FireDate + " " + r.FireTime
		if at, err := r.FireAt(); err == nil {
			when = at.In(loc).Format(storage.DateLayout + " 15:04")
		}
		fmt.Fprintf(&b, "%d. ⏰ %s:\n%s\nID: %s\n\n", i+1, when, r.Text, r.JobID)
		if i < maxCancelButtons {
			rows = append(rows, []kit.Button{{Text: fmt.Sprintf("✖ Cancel #%d", i+1), Data: cancelPrefix + r.JobID}})
		}
	}
	return strings.TrimRight(b.String(), "\n"), rows
}

func (s *Service) handleCancel(ctx context.Context, req *Request) error {
	id := trimID(req.Args)
	if id == "" {
		return s.reply(ctx, req, "Usage: /cancel <id>\nIDs are listed by /my_reminders.", nil)
	}
	msg, err := s.cancelOwned(ctx, req, id)
	if rerr := s.reply(ctx, req, msg, nil); err == nil {
		err = rerr
	}
	return err
}

func (s *Service) handleCallback(ctx context.Context, req *Request) error {
	cb := req.Update.Callback
	if !strings.HasPrefix(req.Args, cancelPrefix) {
		return s.adapter.AnswerCallback(ctx, cb.ID, "")
	}
	msg, err := s.cancelOwned(ctx, req, strings.TrimPrefix(req.Args, cancelPrefix))
	if aerr := s.adapter.AnswerCallback(ctx, cb.ID, msg); aerr != nil {
		req.Logger.Debug("answer callback failed", logx.Err(aerr))
	}
	return err
}

// cancelOwned cancels jobID when it belongs to the requester. Other users'
// reminders look exactly like unknown ones.
func (s *Service) cancelOwned(ctx context.Context, req *Request, jobID string) (string, error) {
	r, err := s.store.GetReminder(ctx, jobID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "Reminder not found.", nil
	case err != nil:
		return "❌ Could not cancel the reminder. Please try again later.", err
	case r.ExternalID != req.FromID:
		return "Reminder not found.", nil
	}
	ok, err := s.engine.Cancel(ctx, jobID)
	if err != nil {
		return "❌ Could not cancel the reminder. Please try again later.", err
	}
	if !ok {
		return "That reminder already fired or was cancelled.", nil
	}
	return "🗑 Reminder cancelled.", nil
}
