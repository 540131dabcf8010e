package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"eventsms/internal/command"
	"eventsms/internal/logger"
	"eventsms/internal/models"
	"eventsms/internal/service"
)

// CommandRunner executes one operator submission
type CommandRunner interface {
	Execute(ctx context.Context, sub service.Submission) (*service.CommandResult, error)
}

// SubmitCommandRequest is the admin UI's command form
type SubmitCommandRequest struct {
	AdminPhone   string          `json:"admin_phone"`
	EventCode    string          `json:"event_code"`
	CommandType  string          `json:"command_type"`
	CommandText  string          `json:"command_text"`
	ParsedParams *command.Params `json:"parsed_params"`
}

// SubmitCommandResponse carries the same reply an SMS operator would get
type SubmitCommandResponse struct {
	Success  bool   `json:"success"`
	SMSReply string `json:"sms_reply"`
}

// CommandHandler handles command submission from the admin UI
type CommandHandler struct {
	executor CommandRunner
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(executor CommandRunner) *CommandHandler {
	return &CommandHandler{executor: executor}
}

// Submit handles POST /api/commands
func (h *CommandHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitCommandRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	text, err := commandText(&req)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	result, err := h.executor.Execute(r.Context(), service.Submission{
		AdminPhone: req.AdminPhone,
		Text:       text,
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("Command could not be recorded", zap.Error(err))
		WriteInternalError(w)
		return
	}

	WriteOK(w, SubmitCommandResponse{
		Success:  result.Success,
		SMSReply: result.Reply,
	})
}

// commandText returns the text to parse. Free text wins; otherwise the
// command is rebuilt from its type and parameters.
func commandText(req *SubmitCommandRequest) (string, error) {
	if text := strings.TrimSpace(req.CommandText); text != "" {
		return command.WithEventCode(req.EventCode, text), nil
	}

	if req.CommandType == "" {
		return "", &service.ValidationError{Message: "command_text or command_type is required"}
	}

	var params command.Params
	if req.ParsedParams != nil {
		params = *req.ParsedParams
	}

	text, err := command.Compose(req.EventCode, models.CommandType(req.CommandType), params)
	if err != nil {
		return "", &service.ValidationError{Message: err.Error()}
	}
	return text, nil
}
