package bot

import (
	"errors"

	"github.com/dvloznov/finance-bot/internal/analysis"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/intent"
	"github.com/dvloznov/finance-bot/internal/logger"
)

const (
	msgInvalidAmount = "❌ Số tiền không hợp lệ\nVí dụ: 10k, 100k, 1m"
	msgGeneric       = "❌ Có lỗi xảy ra khi xử lý yêu cầu."
)

// userMessage maps a ledger error to what the user reads. ok is false for
// errors the user cannot act on.
func userMessage(err error) (string, bool) {
	if ue, isUsage := intent.AsUsage(err); isUsage {
		if ue.Command == "transaction" {
			return msgInvalidAmount, true
		}
		return "❌ Vui lòng nhập theo định dạng: " + ue.Usage, true
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidFormat):
		return msgInvalidAmount, true
	case errors.Is(err, domain.ErrNoAccountConfigured):
		return "❌ Vui lòng tạo ít nhất một tài khoản trước khi ghi chép thu chi.\nSử dụng lệnh /themtk để thêm tài khoản.", true
	case errors.Is(err, domain.ErrAccountNotFound):
		return "❌ Không tìm thấy tài khoản này!", true
	case errors.Is(err, domain.ErrDuplicateAccount):
		return "❌ Tài khoản này đã tồn tại!", true
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return "❌ Số thứ tự không hợp lệ.", true
	case errors.Is(err, domain.ErrSelectionExpired):
		return "⌛ Yêu cầu chọn tài khoản đã hết hạn. Vui lòng gửi lại giao dịch.", true
	case errors.Is(err, analysis.ErrNothingToAnalyze):
		return "❌ Chưa có giao dịch nào để phân tích", true
	}
	return "", false
}

// fail renders err. Anything outside the user taxonomy is logged with the
// full cause and answered generically.
func (h *Handler) fail(req Request, kind intent.Kind, err error) Reply {
	log := logger.ForChat(h.logger, req.ChatID, req.Originator)

	if msg, ok := userMessage(err); ok {
		log.Debug().Err(err).Str("intent", string(kind)).Msg("Rejected request")
		return Reply{Text: msg}
	}

	ev := log.Error().Err(err).Str("intent", string(kind))
	if errors.Is(err, domain.ErrStorageFailure) {
		ev = ev.Bool("storage_failure", true)
	}
	ev.Msg("Request failed")
	return Reply{Text: msgGeneric}
}
