package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/access-compliance/internal/application"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidID        = errors.New("無効な ID です。")
	errMissingCardID    = errors.New("カード ID を指定してください。")
	errNoLedgerData     = errors.New("No data available")
	errLedgerNotEnabled = errors.New("ストリーミングは有効になっていません。")
)

func errCardNotBound(cardID string) error {
	return fmt.Errorf("Card %s is not assigned to any employee", cardID)
}

func errNoEmployeeForCard(cardID string) error {
	return fmt.Errorf("No employee assigned to card %s", cardID)
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		r.loggerFor(ctx).Log(ctx, level, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *application.CardConflictError
	switch {
	case errors.As(err, &conflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CARD_CONFLICT",
			Message:   conflict.Error(),
			HolderID:  conflict.HolderID,
		})
	case errors.Is(err, application.ErrCardConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "CARD_CONFLICT", Message: localizedStatusMessage(http.StatusConflict)})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID", Message: localizedStatusMessage(http.StatusUnauthorized)})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "同じ内容のリソースが既に存在します。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "employee_id is required":
		return "従業員 ID は必須です。"
	case "card_id is required":
		return "カード ID は必須です。"
	case "first_name is required":
		return "名は必須です。"
	case "last_name is required":
		return "姓は必須です。"
	case "supervisor_id does not exist":
		return "指定された上長は存在しません。"
	case "work_schedule_id does not exist":
		return "指定された勤務スケジュールは存在しません。"
	case "email is required":
		return "メールアドレスは必須です。"
	case "email must be a valid address":
		return "メールアドレスの形式が不正です。"
	case "notification_channel must be none, email or sms":
		return "通知方法は none、email、sms のいずれかを指定してください。"
	case "name is required":
		return "スケジュール名は必須です。"
	case "referenced record does not exist":
		return "参照先のデータが存在しません。"
	case "record violates a storage constraint":
		return "保存できない値が含まれています。"
	default:
		if strings.HasPrefix(message, "card_id must be at most") {
			return fmt.Sprintf("カード ID は %d 文字以内で指定してください。", application.MaxCardIDLength)
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	HolderID  string            `json:"holder_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}
