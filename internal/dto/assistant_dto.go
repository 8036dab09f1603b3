package dto

import (
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
)

type SubmitTextRequest struct {
	Text string `json:"text" validate:"required,max=16000"`
}

type AskRequest struct {
	Question string `json:"question" validate:"max=16000"`
}

type IngestResponse struct {
	Kind            string `json:"kind,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	Size            int64  `json:"size,omitempty"`
	Texts           int    `json:"texts"`
	Assets          int    `json:"assets"`
	CumulativeBytes int64  `json:"cumulative_bytes"`
	RemainingBytes  int64  `json:"remaining_bytes"`
	Message         string `json:"message"`

	// Set when the text itself triggered a query (single-shot mode).
	Answer *AnswerResponse `json:"answer,omitempty"`
}

type AnswerResponse struct {
	RequestID string     `json:"request_id"`
	Text      string     `json:"text"`
	Image     []byte     `json:"image,omitempty"` // base64 in JSON
	Warning   string     `json:"warning,omitempty"`
	Pages     int        `json:"pages"`
	Texts     int        `json:"texts"`
	Usage     *llm.Usage `json:"usage,omitempty"`
}

type RestartResponse struct {
	ClearedTexts  int    `json:"cleared_texts"`
	ClearedAssets int    `json:"cleared_assets"`
	ClearedBytes  int64  `json:"cleared_bytes"`
	Message       string `json:"message"`
}

type FileInfoDTO struct {
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Size        int64  `json:"size"`
}

type StatusResponse struct {
	UserId          string        `json:"user_id"`
	State           string        `json:"state"`
	Texts           int           `json:"texts"`
	Files           []FileInfoDTO `json:"files"`
	CumulativeBytes int64         `json:"cumulative_bytes"`
	QuotaBytes      int64         `json:"quota_bytes"`
	RemainingBytes  int64         `json:"remaining_bytes"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type UsageStatsResponse struct {
	AssetsIngested int64      `json:"assets_ingested"`
	AssetsRejected int64      `json:"assets_rejected"`
	BytesIngested  int64      `json:"bytes_ingested"`
	Queries        int64      `json:"queries"`
	QueryFailures  int64      `json:"query_failures"`
	Resets         int64      `json:"resets"`
	ActiveSessions int        `json:"active_sessions"`
	LastEventAt    *time.Time `json:"last_event_at,omitempty"`
}
