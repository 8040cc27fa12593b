package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
)

const defaultSweepInterval = 10 * time.Second

// SweepResult summarises one pass over overdue deletions.
type SweepResult struct {
	Done    int
	Errored int
}

// StartSweeper runs Sweep once immediately and then on every sweep interval
// until Stop is called. Repeated calls (a reconnect fires Ready again) are no-ops.
func (b *Bot) StartSweeper() {
	b.sweepOnce.Do(func() {
		interval := b.cfg.SweepInterval
		if interval <= 0 {
			interval = defaultSweepInterval
		}
		b.logInfo("starting deletion sweeper", "interval", interval)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			b.sweepAndLog(b.ctx)
			for {
				select {
				case <-b.ctx.Done():
					return
				case <-ticker.C:
					b.sweepAndLog(b.ctx)
				}
			}
		}()
	})
}

func (b *Bot) sweepAndLog(ctx context.Context) {
	res, err := b.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.logError("deletion sweep failed", "error", err)
		}
		return
	}
	if res.Done > 0 || res.Errored > 0 {
		b.logDebug("deletion sweep finished", "done", res.Done, "errored", res.Errored)
	}
}

// Sweep deletes every pending message whose time has come and records the
// outcome of each attempt.
func (b *Bot) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	recs, err := b.store.OverdueDeletions(ctx, b.now())
	if err != nil {
		return res, err
	}
	for _, rec := range recs {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		if b.sweepOne(ctx, rec) {
			res.Done++
		} else {
			res.Errored++
		}
	}
	return res, nil
}

// sweepOne handles a single overdue row and reports whether it completed.
func (b *Bot) sweepOne(ctx context.Context, rec store.PendingDeletion) bool {
	err := b.api.ChannelMessageDelete(rec.ChannelID, rec.MessageID)
	code := restErrorCode(err)
	switch {
	case err == nil:
		b.logDebug("deleted scheduled message", "channel_id", rec.ChannelID, "message_id", rec.MessageID)
		if self := b.self(); self != "" {
			if err := b.store.AddRemovals(ctx, self, 1, b.now()); err != nil {
				b.logWarn("updating removal stats failed", "user_id", self, "error", err)
			}
		}
		b.deleteCompanionLog(rec)
		b.markDone(ctx, rec)
		return true
	case code == discordgo.ErrCodeUnknownMessage:
		b.logDebug("scheduled message already gone", "channel_id", rec.ChannelID, "message_id", rec.MessageID)
		b.markDone(ctx, rec)
		b.deleteCompanionLog(rec)
		return true
	case code == discordgo.ErrCodeUnknownChannel || code == discordgo.ErrCodeMissingAccess:
		b.logDebug("scheduled message channel inaccessible", "channel_id", rec.ChannelID, "message_id", rec.MessageID)
		b.markErrored(ctx, rec, "Channel inaccessible")
		return false
	default:
		b.logError("deleting scheduled message failed", "channel_id", rec.ChannelID, "message_id", rec.MessageID, "error", err)
		b.markErrored(ctx, rec, err.Error())
		return false
	}
}

func (b *Bot) deleteCompanionLog(rec store.PendingDeletion) {
	if rec.LogMessageID == nil || b.cfg.DebugChannelID == "" {
		return
	}
	if err := b.deleteMessage(b.cfg.DebugChannelID, *rec.LogMessageID); err != nil {
		b.logWarn("deleting companion log message failed", "message_id", *rec.LogMessageID, "error", err)
	}
}

func (b *Bot) markDone(ctx context.Context, rec store.PendingDeletion) {
	if err := b.store.MarkDeletionDone(ctx, rec.ID); err != nil {
		b.logError("marking deletion done failed", "id", rec.ID, "error", err)
	}
}

func (b *Bot) markErrored(ctx context.Context, rec store.PendingDeletion, reason string) {
	if err := b.store.MarkDeletionErrored(ctx, rec.ID, reason); err != nil {
		b.logError("marking deletion errored failed", "id", rec.ID, "error", err)
	}
}
