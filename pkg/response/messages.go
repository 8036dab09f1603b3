package response

import (
	"errors"
	"fmt"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/prompt"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/quota"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"
)

const (
	ProcessingMessage = "⏳ Обрабатываю запрос..."
	GenericFailure    = "❌ Произошла ошибка при обработке запроса к модели"
)

// UserMessage maps a pipeline error to the text shown to the user.
func UserMessage(err error) string {
	var (
		unsupported *document.UnsupportedFormatError
		conversion  *document.ConversionError
		exceeded    *quota.ExceededError
		timeout     *llm.TimeoutError
		canceled    *llm.CanceledError
		connection  *llm.ConnectionError
		protocol    *llm.ProtocolError
		imageErr    *ImageDecodeError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		return "❌ Формат файла не поддерживается. Отправьте изображение (jpg, png, gif, bmp, tiff) или PDF."
	case errors.As(err, &exceeded):
		return fmt.Sprintf("❌ Файл не сохранен: превышен лимит данных сессии (%s + %s, лимит %s). Отправьте /ask или /restart.",
			HumanBytes(exceeded.Current), HumanBytes(exceeded.Incoming), HumanBytes(exceeded.Cap))
	case errors.As(err, &conversion):
		return fmt.Sprintf("❌ Не удалось обработать файл %s. Данные сессии очищены.", conversion.Name)
	case errors.As(err, &timeout):
		return "⏰ Таймаут при запросе к модели. Попробуйте позже."
	case errors.As(err, &canceled):
		return "⚠️ Запрос к модели прерван. Данные сессии очищены, отправьте их заново."
	case errors.As(err, &connection):
		return "🔌 Не удалось подключиться к модели. Убедитесь, что сервер модели запущен."
	case errors.As(err, &protocol):
		return fmt.Sprintf("❌ Ошибка сервера: статус %d", protocol.Status)
	case errors.As(err, &imageErr):
		return "⚠️ Не удалось обработать изображение из ответа модели."
	case errors.Is(err, store.ErrEmptySession):
		return "ℹ️ Нет данных для запроса. Отправьте текст или файл."
	case errors.Is(err, prompt.ErrDocumentRequired):
		return "📎 Сначала отправьте документ (PDF или изображение), затем задайте вопрос."
	default:
		return GenericFailure
	}
}

// HumanBytes formats a byte count the way it is shown in chat replies.
func HumanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f МБ", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f КБ", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d Б", n)
	}
}

// ErrorKind is a stable, log-friendly name for a pipeline error.
func ErrorKind(err error) string {
	var (
		unsupported *document.UnsupportedFormatError
		conversion  *document.ConversionError
		exceeded    *quota.ExceededError
		timeout     *llm.TimeoutError
		canceled    *llm.CanceledError
		connection  *llm.ConnectionError
		protocol    *llm.ProtocolError
		imageErr    *ImageDecodeError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		return "unsupported_format"
	case errors.As(err, &exceeded):
		return "quota_exceeded"
	case errors.As(err, &conversion):
		return "conversion"
	case errors.As(err, &timeout):
		return "inference_timeout"
	case errors.As(err, &canceled):
		return "inference_canceled"
	case errors.As(err, &connection):
		return "inference_connection"
	case errors.As(err, &protocol):
		return "inference_protocol"
	case errors.As(err, &imageErr):
		return "image_decode"
	case errors.Is(err, store.ErrEmptySession):
		return "empty_session"
	case errors.Is(err, prompt.ErrDocumentRequired):
		return "document_required"
	default:
		return "internal"
	}
}
