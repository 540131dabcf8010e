package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"eventsms/internal/command"
	"eventsms/internal/lock"
	"eventsms/internal/metrics"
	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// Submission is one command as received from an entry point
type Submission struct {
	AdminPhone string
	Text       string
}

// CommandResult is the outcome of one submission. Reply is what the
// operator sees; Audit is the row that was written for it.
type CommandResult struct {
	Success    bool
	Reply      string
	Command    *command.Command
	Audit      *models.SMSCommand
	Delay      *DelayResult
	Recipients int
	Stats      *models.EventStats
	Err        error
}

// CommandExecutor applies parsed commands and writes exactly one audit
// row per submission.
type CommandExecutor struct {
	events   repository.EventRepository
	commands repository.CommandRepository
	tx       repository.Transactor
	audience *AudienceResolver
	delay    *DelayRecalculator
	stats    *StatsAggregator
	locker   lock.Locker
	lockWait time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewCommandExecutor creates a new command executor
func NewCommandExecutor(
	events repository.EventRepository,
	commands repository.CommandRepository,
	tx repository.Transactor,
	audience *AudienceResolver,
	delay *DelayRecalculator,
	stats *StatsAggregator,
	locker lock.Locker,
	log *zap.Logger,
) *CommandExecutor {
	return &CommandExecutor{
		events:   events,
		commands: commands,
		tx:       tx,
		audience: audience,
		delay:    delay,
		stats:    stats,
		locker:   locker,
		lockWait: 10 * time.Second,
		now:      time.Now,
		log:      log,
	}
}

// Execute parses and runs one command. Command failures are reported in
// the result; an error is returned only when the audit row could not be
// written.
func (e *CommandExecutor) Execute(ctx context.Context, sub Submission) (*CommandResult, error) {
	identity := truncate(strings.TrimSpace(sub.AdminPhone), models.MaxAdminIdentityLength)
	if identity == "" {
		identity = models.WebAdminIdentity
	}

	audit := &models.SMSCommand{
		AdminPhone:  identity,
		RawCommand:  strings.TrimSpace(sub.Text),
		CommandType: models.CommandUnknown,
	}

	cmd, err := command.Parse(sub.Text)
	if err != nil {
		var pe *command.ParseError
		if errors.As(err, &pe) {
			audit.EventCode = pe.EventCode
			audit.CommandType = pe.Type
		}
		return e.finish(ctx, audit, &CommandResult{Reply: err.Error(), Err: err})
	}

	audit.EventCode = cmd.EventCode
	audit.CommandType = cmd.Type
	audit.ParsedParams = cmd.ParamsJSON()
	audit.Executed = true

	log := e.log.With(
		zap.String("event_code", cmd.EventCode),
		zap.String("command_type", string(cmd.Type)),
		zap.String("admin", identity),
	)

	lockCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	unlock, err := e.locker.Lock(lockCtx, "event:"+cmd.EventCode)
	cancel()
	if err != nil {
		log.Warn("Could not acquire event lock", zap.Error(err))
		conflict := &ConflictError{Resource: "event " + cmd.EventCode, Message: "another command is in progress"}
		return e.finish(ctx, audit, &CommandResult{
			Command: cmd,
			Reply:   fmt.Sprintf("Another command for %s is in progress, please retry.", cmd.EventCode),
			Err:     conflict,
		})
	}
	defer unlock()

	event, err := e.events.GetActiveByCode(ctx, cmd.EventCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound := &EventNotFoundError{Code: cmd.EventCode}
			return e.finish(ctx, audit, &CommandResult{Command: cmd, Reply: notFound.Error(), Err: notFound})
		}
		log.Error("Failed to resolve event", zap.Error(err))
		return e.finish(ctx, audit, &CommandResult{
			Command: cmd,
			Reply:   fmt.Sprintf("Could not run %s for %s, please retry.", cmd.Type, cmd.EventCode),
			Err:     err,
		})
	}

	switch cmd.Type {
	case models.CommandDelay:
		return e.executeDelay(ctx, log, event, cmd, audit)
	case models.CommandMessage:
		return e.executeMessage(ctx, log, event, cmd, audit)
	default:
		return e.executeStatus(ctx, log, event, cmd, audit)
	}
}

// executeDelay shifts the schedule and writes the audit row in one
// transaction so a failed shift leaves no partial changes.
func (e *CommandExecutor) executeDelay(ctx context.Context, log *zap.Logger, event *models.Event, cmd *command.Command, audit *models.SMSCommand) (*CommandResult, error) {
	result := &CommandResult{Command: cmd, Audit: audit}

	err := e.tx.WithinTx(ctx, func(tx repository.Tx) error {
		delay, err := e.delay.Shift(ctx, tx.Messages(), event.ID, cmd.Minutes)
		if err != nil {
			return err
		}

		audit.Success = true
		audit.ResponseText = delayReply(event.Code, delay)
		if err := tx.Commands().Create(ctx, audit); err != nil {
			return err
		}

		result.Delay = delay
		return nil
	})
	if err != nil {
		log.Error("Delay recalculation failed", zap.Error(err))
		audit.ID = 0
		audit.Success = false
		return e.finish(ctx, audit, &CommandResult{
			Command: cmd,
			Reply:   fmt.Sprintf("Failed to delay messages for %s, no messages were changed.", event.Code),
			Err:     err,
		})
	}

	result.Success = true
	result.Reply = audit.ResponseText
	metrics.CommandsTotal.WithLabelValues(string(cmd.Type), "true").Inc()
	metrics.MessagesShiftedTotal.Add(float64(result.Delay.Shifted))
	log.Info("Delay applied",
		zap.Int("minutes", cmd.Minutes),
		zap.Int("shifted", result.Delay.Shifted),
		zap.Int("clamped", result.Delay.Clamped),
	)
	return result, nil
}

// executeMessage enqueues one message scoped to the audience. Recipients
// are resolved again by the delivery worker at send time.
func (e *CommandExecutor) executeMessage(ctx context.Context, log *zap.Logger, event *models.Event, cmd *command.Command, audit *models.SMSCommand) (*CommandResult, error) {
	recipients, err := e.audience.Count(ctx, event.ID, cmd.Audience)
	if err != nil {
		log.Error("Audience resolution failed", zap.Error(err))
		return e.finish(ctx, audit, &CommandResult{
			Command: cmd,
			Reply:   fmt.Sprintf("Could not resolve %s audience for %s, please retry.", cmd.Audience, event.Code),
			Err:     err,
		})
	}

	now := e.now()
	message := &models.ScheduledMessage{
		EventID:         event.ID,
		MessageType:     models.MessageTypeAnnouncement,
		MessageCategory: models.MessageCategoryOperator,
		Content:         cmd.Body,
		Audience:        cmd.Audience,
		ScheduledTime:   now,
		Status:          models.MessageStatusPending,
	}

	result := &CommandResult{Command: cmd, Audit: audit, Recipients: recipients}
	err = e.tx.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Messages().Create(ctx, message); err != nil {
			return err
		}
		audit.Success = true
		audit.ResponseText = fmt.Sprintf("Queued message for %d %s recipient(s) at %s.", recipients, cmd.Audience, event.Code)
		return tx.Commands().Create(ctx, audit)
	})
	if err != nil {
		log.Error("Failed to queue message", zap.Error(err))
		audit.ID = 0
		audit.Success = false
		return e.finish(ctx, audit, &CommandResult{
			Command: cmd,
			Reply:   fmt.Sprintf("Failed to queue message for %s, please retry.", event.Code),
			Err:     err,
		})
	}

	result.Success = true
	result.Reply = audit.ResponseText
	metrics.CommandsTotal.WithLabelValues(string(cmd.Type), "true").Inc()
	log.Info("Message queued",
		zap.Int("message_id", message.ID),
		zap.String("audience", string(cmd.Audience)),
		zap.Int("recipients", recipients),
	)
	return result, nil
}

func (e *CommandExecutor) executeStatus(ctx context.Context, log *zap.Logger, event *models.Event, cmd *command.Command, audit *models.SMSCommand) (*CommandResult, error) {
	stats, err := e.stats.Snapshot(ctx, event.ID)
	if err != nil {
		log.Error("Failed to compute stats", zap.Error(err))
		return e.finish(ctx, audit, &CommandResult{
			Command: cmd,
			Reply:   fmt.Sprintf("Could not load status for %s, please retry.", event.Code),
			Err:     err,
		})
	}

	audit.Success = true
	return e.finish(ctx, audit, &CommandResult{
		Success: true,
		Command: cmd,
		Reply:   statusReply(event.Code, stats),
		Stats:   &stats,
	})
}

// finish writes the audit row outside of any transaction
func (e *CommandExecutor) finish(ctx context.Context, audit *models.SMSCommand, result *CommandResult) (*CommandResult, error) {
	audit.ResponseText = result.Reply
	result.Audit = audit

	metrics.CommandsTotal.WithLabelValues(string(audit.CommandType), strconv.FormatBool(result.Success)).Inc()

	if err := e.commands.Create(ctx, audit); err != nil {
		e.log.Error("Failed to write command audit",
			zap.String("raw_command", audit.RawCommand),
			zap.Error(err),
		)
		return result, fmt.Errorf("failed to record command: %w", err)
	}
	return result, nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func delayReply(code string, d *DelayResult) string {
	reply := fmt.Sprintf("Delayed %d pending message(s) for %s by %d minute(s).", d.Shifted, code, d.Minutes)
	if d.Clamped > 0 {
		reply += fmt.Sprintf(" %d message(s) would have moved into the past and were set to %s UTC instead.",
			d.Clamped, d.ClampedTo.UTC().Format("15:04"))
	}
	return reply
}

func statusReply(code string, s models.EventStats) string {
	return fmt.Sprintf("%s: %d pending, %d sent, %d delivered, %d failed. Delivery rate %.1f%%.",
		code, s.Pending, s.Sent, s.Delivered, s.Failed, s.DeliveryRate*100)
}
