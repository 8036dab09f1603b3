package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/internal/dto"
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
	"github.com/IvanKem/clever-document-assistant-ru/internal/repository/memory"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/events"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/prompt"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/quota"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/response"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptySession is returned by Ask when there is nothing to send.
var ErrEmptySession = store.ErrEmptySession

// IAssistantService is the transport-independent core: every chat, HTTP or CLI
// front end drives a user's session through these calls.
type IAssistantService interface {
	SubmitText(ctx context.Context, userId, text string) (*dto.IngestResponse, error)
	IngestFile(ctx context.Context, userId, filename string, data []byte) (*dto.IngestResponse, error)
	Ask(ctx context.Context, userId, question string) (*dto.AnswerResponse, error)
	Restart(ctx context.Context, userId string) (*dto.RestartResponse, error)
	Status(ctx context.Context, userId string) (*dto.StatusResponse, error)
}

type AssistantOptions struct {
	// SingleShot makes every text message trigger a query immediately.
	SingleShot bool
}

type assistantService struct {
	sessionRepo *memory.SessionRepository
	guard       quota.Guard
	assembler   *prompt.Assembler
	provider    llm.InferenceProvider
	dispatcher  *response.Dispatcher
	publisher   IPublisherService
	logger      logger.ILogger
	tracer      trace.Tracer
	opts        AssistantOptions
}

func NewAssistantService(
	sessionRepo *memory.SessionRepository,
	guard quota.Guard,
	assembler *prompt.Assembler,
	provider llm.InferenceProvider,
	dispatcher *response.Dispatcher,
	publisher IPublisherService,
	log logger.ILogger,
	opts AssistantOptions,
) IAssistantService {
	return &assistantService{
		sessionRepo: sessionRepo,
		guard:       guard,
		assembler:   assembler,
		provider:    provider,
		dispatcher:  dispatcher,
		publisher:   publisher,
		logger:      log,
		tracer:      otel.Tracer("document-assistant/service"),
		opts:        opts,
	}
}

func (s *assistantService) SubmitText(ctx context.Context, userId, text string) (*dto.IngestResponse, error) {
	if s.opts.SingleShot {
		answer, err := s.Ask(ctx, userId, text)
		if err != nil {
			return nil, err
		}
		return &dto.IngestResponse{Message: answer.Text, Answer: answer}, nil
	}

	var res *dto.IngestResponse
	_ = s.sessionRepo.WithLock(userId, func(tx *memory.Tx) error {
		tx.AppendText(text)
		res = ingestResponse(tx.Snapshot(), tx.Remaining())
		return nil
	})
	res.Message = fmt.Sprintf("✅ Текст сохранен. Текстов в сессии: %d. Отправьте /ask для запроса.", res.Texts)

	s.logger.Debug("SESSION", "Text appended", map[string]interface{}{
		"user_id": userId,
		"length":  len(text),
		"texts":   res.Texts,
	})

	return res, nil
}

func (s *assistantService) IngestFile(ctx context.Context, userId, filename string, data []byte) (*dto.IngestResponse, error) {
	asset, err := document.NewAsset(filename, data)
	if err != nil {
		s.reject(ctx, userId, filename, int64(len(data)), err)
		return nil, err
	}

	var res *dto.IngestResponse
	err = s.sessionRepo.WithLock(userId, func(tx *memory.Tx) error {
		if err := tx.AppendAsset(asset); err != nil {
			return err
		}
		res = ingestResponse(tx.Snapshot(), tx.Remaining())
		return nil
	})
	if err != nil {
		s.reject(ctx, userId, asset.DisplayName, asset.Size(), err)
		return nil, err
	}

	res.Kind = asset.Kind.String()
	res.DisplayName = asset.DisplayName
	res.Size = asset.Size()
	res.Message = fmt.Sprintf("✅ Файл (%s) сохранен: %s. Файлов в сессии: %d, использовано %s из %s.",
		res.Kind, res.DisplayName, res.Assets,
		response.HumanBytes(res.CumulativeBytes), response.HumanBytes(s.guard.Cap))

	s.logger.Info("INGEST", "Asset ingested", map[string]interface{}{
		"user_id":          userId,
		"kind":             res.Kind,
		"bytes":            res.Size,
		"cumulative_bytes": res.CumulativeBytes,
	})
	s.publish(ctx, events.New(events.AssetIngested, map[string]interface{}{
		"user_id":          userId,
		"kind":             res.Kind,
		"bytes":            res.Size,
		"cumulative_bytes": res.CumulativeBytes,
	}))

	return res, nil
}

// Ask drains the session and runs one inference call while holding the user's
// lock. The session ends up empty whether the call succeeds or fails.
func (s *assistantService) Ask(ctx context.Context, userId, question string) (*dto.AnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.ask", trace.WithAttributes(
		attribute.String("user.id", userId),
		attribute.String("inference.provider", s.provider.Name()),
	))
	defer span.End()

	start := time.Now()
	var (
		answer *dto.AnswerResponse
		batch  store.Batch
	)

	err := s.sessionRepo.WithLock(userId, func(tx *memory.Tx) error {
		batch = tx.Drain()
		if batch.IsEmpty() && strings.TrimSpace(question) == "" {
			return ErrEmptySession
		}

		tx.SetState(store.StateProcessing)
		defer tx.SetState(store.StateIdle)

		var err error
		answer, err = s.process(ctx, batch, question)
		return err
	})

	if errors.Is(err, ErrEmptySession) {
		s.logger.Info("SESSION", "Ask on empty session", map[string]interface{}{"user_id": userId})
		return nil, err
	}

	latency := time.Since(start)
	if err != nil {
		kind := response.ErrorKind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)

		s.logger.Error("INFERENCE", "Query failed, session reset", map[string]interface{}{
			"user_id":    userId,
			"kind":       kind,
			"assets":     len(batch.Assets),
			"bytes":      batch.Bytes,
			"latency_ms": latency.Milliseconds(),
			"error":      err.Error(),
		})
		s.publish(ctx, events.New(events.QueryFailed, map[string]interface{}{
			"user_id": userId,
			"kind":    kind,
			"bytes":   batch.Bytes,
		}))
		return nil, err
	}

	span.SetAttributes(attribute.Int("inference.pages", answer.Pages))

	s.logger.Info("INFERENCE", "Query completed", map[string]interface{}{
		"user_id":    userId,
		"request_id": answer.RequestID,
		"pages":      answer.Pages,
		"texts":      answer.Texts,
		"bytes":      batch.Bytes,
		"latency_ms": latency.Milliseconds(),
	})
	s.publish(ctx, events.New(events.QueryCompleted, map[string]interface{}{
		"user_id":    userId,
		"request_id": answer.RequestID,
		"pages":      answer.Pages,
		"bytes":      batch.Bytes,
		"latency_ms": latency.Milliseconds(),
	}))

	return answer, nil
}

func (s *assistantService) process(ctx context.Context, batch store.Batch, question string) (*dto.AnswerResponse, error) {
	_, assembleSpan := s.tracer.Start(ctx, "prompt.assemble", trace.WithAttributes(
		attribute.Int("session.assets", len(batch.Assets)),
		attribute.Int64("session.bytes", batch.Bytes),
	))
	req, err := s.assembler.Assemble(batch, question)
	if err != nil {
		assembleSpan.RecordError(err)
		assembleSpan.End()
		return nil, err
	}
	assembleSpan.SetAttributes(attribute.Int("prompt.pages", len(req.Images)))
	assembleSpan.End()

	inferCtx, inferSpan := s.tracer.Start(ctx, "inference.call", trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
	))
	result, err := s.provider.Infer(inferCtx, req)
	if err != nil {
		inferSpan.RecordError(err)
		inferSpan.End()
		return nil, err
	}
	inferSpan.End()

	reply := s.dispatcher.Dispatch(result)
	answer := &dto.AnswerResponse{
		RequestID: req.RequestID,
		Text:      reply.Text,
		Image:     reply.Image,
		Pages:     len(req.Images),
		Texts:     len(req.Texts),
		Usage:     result.Usage,
	}
	if reply.Warning != nil {
		answer.Warning = reply.Warning.Error()
		s.logger.Warn("INFERENCE", "Reply image dropped", map[string]interface{}{
			"user_id":    batch.UserID,
			"request_id": req.RequestID,
			"error":      reply.Warning.Error(),
		})
	}

	return answer, nil
}

func (s *assistantService) Restart(ctx context.Context, userId string) (*dto.RestartResponse, error) {
	dropped := s.sessionRepo.Reset(userId)

	s.logger.Info("SESSION", "Session reset", map[string]interface{}{
		"user_id": userId,
		"texts":   len(dropped.Texts),
		"assets":  len(dropped.Assets),
		"bytes":   dropped.Bytes,
	})
	s.publish(ctx, events.New(events.SessionReset, map[string]interface{}{
		"user_id": userId,
		"texts":   len(dropped.Texts),
		"assets":  len(dropped.Assets),
		"bytes":   dropped.Bytes,
	}))

	return &dto.RestartResponse{
		ClearedTexts:  len(dropped.Texts),
		ClearedAssets: len(dropped.Assets),
		ClearedBytes:  dropped.Bytes,
		Message: fmt.Sprintf("🔄 Сессия сброшена. Удалено файлов: %d, текстов: %d.",
			len(dropped.Assets), len(dropped.Texts)),
	}, nil
}

func (s *assistantService) Status(ctx context.Context, userId string) (*dto.StatusResponse, error) {
	if s.sessionRepo.Processing(userId) {
		return &dto.StatusResponse{
			UserId:     userId,
			State:      string(store.StateProcessing),
			Files:      []dto.FileInfoDTO{},
			QuotaBytes: s.guard.Cap,
			UpdatedAt:  time.Now(),
		}, nil
	}

	snap := s.sessionRepo.GetOrCreate(userId)
	files := make([]dto.FileInfoDTO, 0, len(snap.Assets))
	for _, a := range snap.Assets {
		files = append(files, dto.FileInfoDTO{
			DisplayName: a.DisplayName,
			Kind:        a.Kind.String(),
			Size:        a.Size(),
		})
	}

	return &dto.StatusResponse{
		UserId:          userId,
		State:           string(snap.State),
		Texts:           len(snap.Texts),
		Files:           files,
		CumulativeBytes: snap.CumulativeBytes,
		QuotaBytes:      s.guard.Cap,
		RemainingBytes:  s.guard.Remaining(snap.CumulativeBytes),
		UpdatedAt:       snap.UpdatedAt,
	}, nil
}

func (s *assistantService) reject(ctx context.Context, userId, filename string, size int64, err error) {
	kind := response.ErrorKind(err)
	s.logger.Warn("INGEST", "File rejected", map[string]interface{}{
		"user_id":  userId,
		"filename": filename,
		"bytes":    size,
		"kind":     kind,
		"error":    err.Error(),
	})
	s.publish(ctx, events.New(events.AssetRejected, map[string]interface{}{
		"user_id": userId,
		"kind":    kind,
		"bytes":   size,
	}))
}

func (s *assistantService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}

func ingestResponse(snap store.Session, remaining int64) *dto.IngestResponse {
	return &dto.IngestResponse{
		Texts:           len(snap.Texts),
		Assets:          len(snap.Assets),
		CumulativeBytes: snap.CumulativeBytes,
		RemainingBytes:  remaining,
	}
}
