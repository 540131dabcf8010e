package repository

import (
	"context"
	"fmt"

	"eventsms/internal/models"
)

type commandRepository struct {
	db DB
}

// NewCommandRepository creates a new command audit repository
func NewCommandRepository(db DB) CommandRepository {
	return &commandRepository{db: db}
}

// Create appends one audit row. Rows are never updated afterwards.
func (r *commandRepository) Create(ctx context.Context, command *models.SMSCommand) error {
	query := `
		INSERT INTO sms_commands (admin_phone, event_code, raw_command, command_type, parsed_params, executed, success, response_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	var params interface{}
	if len(command.ParsedParams) > 0 {
		params = string(command.ParsedParams)
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		command.AdminPhone,
		command.EventCode,
		command.RawCommand,
		command.CommandType,
		params,
		command.Executed,
		command.Success,
		command.ResponseText,
	).Scan(&command.ID, &command.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create command audit: %w", err)
	}

	return nil
}

// List retrieves audit rows newest first
func (r *commandRepository) List(ctx context.Context, filters CommandFilters) ([]*models.SMSCommand, int, error) {
	where := ""
	args := []interface{}{}

	if filters.EventCode != "" {
		args = append(args, filters.EventCode)
		where = fmt.Sprintf("WHERE UPPER(event_code) = UPPER($%d)", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM sms_commands " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count commands: %w", err)
	}

	limit, offset := pageBounds(filters.Page, filters.PageSize)
	args = append(args, limit, offset)
	query := `
		SELECT id, admin_phone, event_code, raw_command, command_type, parsed_params, executed, success, response_text, created_at
		FROM sms_commands ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	commands := []*models.SMSCommand{}
	for rows.Next() {
		command := &models.SMSCommand{}
		var params []byte
		err := rows.Scan(
			&command.ID,
			&command.AdminPhone,
			&command.EventCode,
			&command.RawCommand,
			&command.CommandType,
			&params,
			&command.Executed,
			&command.Success,
			&command.ResponseText,
			&command.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan command: %w", err)
		}
		command.ParsedParams = params
		commands = append(commands, command)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate commands: %w", err)
	}

	return commands, total, nil
}
