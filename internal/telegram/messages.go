package telegram

import (
	"fmt"
	"strings"

	"github.com/IvanKem/clever-document-assistant-ru/internal/dto"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/response"
)

const welcomeText = `🤖 Добро пожаловать в бот для обработки документов!

Я могу:
• 📷 Разбирать изображения
• 📄 Читать PDF файлы постранично
• 🧠 Отвечать на вопросы по содержимому с помощью AI

Как работать:
1. Отправьте мне изображение или PDF файл
2. Напишите вопрос о содержимом
3. Отправьте /ask
4. Получите ответ!

Доступные команды:
/start - начало работы с ботом
/help - справка по работе с ботом
/restart - сброс всех данных
/ask - отправка запроса к модели
/status - что сейчас сохранено`

const helpText = `Инструкция по использованию:

1. Отправьте файл - изображение или PDF
2. Напишите вопрос - что вас интересует в документе
3. Отправьте /ask - можно сразу с вопросом: /ask Что в таблице?
4. Получите ответ - после ответа данные сессии очищаются

Поддерживаемые форматы:
• Изображения: JPG, JPEG, PNG, GIF, BMP, TIFF
• Документы: PDF

Суммарный размер файлов в одном запросе: до %s.`

const (
	unknownCommandText = "Неизвестная команда. Отправьте /help для справки."
	queueFullText      = "⏳ Слишком много сообщений подряд. Дождитесь ответа на предыдущие."
	downloadFailedText = "❌ Не удалось скачать файл из Telegram"
	sendFailedText     = "❌ Произошла ошибка при отправке ответа"
	emptySessionText   = "❌ Нет данных для запроса. Сначала отправьте текст или файлы."
)

// Telegram limits photo captions to 1024 characters.
const maxCaptionChars = 1024

func formatHelp(quotaBytes int64) string {
	return fmt.Sprintf(helpText, response.HumanBytes(quotaBytes))
}

func formatStatus(s *dto.StatusResponse) string {
	if s.State == "PROCESSING" {
		return "⏳ Запрос обрабатывается, дождитесь ответа."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Текстов: %d, файлов: %d\n", s.Texts, len(s.Files))
	fmt.Fprintf(&b, "Использовано %s из %s", response.HumanBytes(s.CumulativeBytes), response.HumanBytes(s.QuotaBytes))
	for i, f := range s.Files {
		fmt.Fprintf(&b, "\n%d. %s (%s, %s)", i+1, f.DisplayName, f.Kind, response.HumanBytes(f.Size))
	}
	return b.String()
}
