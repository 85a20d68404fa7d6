package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/internal/vectorstore"
	"llmpedia-backend/models"
	"llmpedia-backend/utils"
)

const (
	TaskLogQnA      = "qna:log"
	TaskIndexChunks = "chunks:index"
)

// ChunkPayload is one passage to embed and store.
type ChunkPayload struct {
	PaperID string `json:"paper_id"`
	ChunkID string `json:"chunk_id,omitempty"`
	Text    string `json:"text"`
}

type IndexChunksPayload struct {
	Collection string         `json:"collection"`
	Chunks     []ChunkPayload `json:"chunks"`
}

// Task creators
func NewQnALogTask(payload models.QnALogPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskLogQnA,
		data,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue("low"),
	), nil
}

func NewIndexChunksTask(collection string, chunks []ChunkPayload) (*asynq.Task, error) {
	data, err := json.Marshal(IndexChunksPayload{Collection: collection, Chunks: chunks})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexChunks,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Enqueuer is the part of *asynq.Client the producers need.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsyncQnALogger hands question/answer pairs to the worker instead of writing
// them inline.
type AsyncQnALogger struct {
	client Enqueuer
	now    func() time.Time
}

func NewAsyncQnALogger(client Enqueuer) *AsyncQnALogger {
	return &AsyncQnALogger{client: client, now: time.Now}
}

func (l *AsyncQnALogger) LogQuestionAnswer(ctx context.Context, question, answer string) error {
	task, err := NewQnALogTask(models.QnALogPayload{
		Question:  question,
		Answer:    answer,
		RequestID: utils.RequestID(ctx),
		Timestamp: l.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = l.client.EnqueueContext(ctx, task)
	return err
}

// QnARecorder persists a log record.
type QnARecorder interface {
	Record(ctx context.Context, rec models.QnARecord) error
}

// Task handlers
type TaskProcessor struct {
	records  QnARecorder
	registry *rag.Registry
}

func NewTaskProcessor(records QnARecorder, registry *rag.Registry) *TaskProcessor {
	return &TaskProcessor{records: records, registry: registry}
}

func (p *TaskProcessor) HandleLogQnA(ctx context.Context, t *asynq.Task) error {
	var payload models.QnALogPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	return p.records.Record(ctx, models.QnARecord{
		Question:  payload.Question,
		Answer:    payload.Answer,
		RequestID: payload.RequestID,
		Timestamp: payload.Timestamp,
	})
}

// HandleIndexChunks embeds every chunk with the collection's own embedder and
// upserts the batch. Configuration errors are not retried.
func (p *TaskProcessor) HandleIndexChunks(ctx context.Context, t *asynq.Task) error {
	var payload IndexChunksPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	start := time.Now()
	n, err := IndexChunks(ctx, p.registry, payload.Collection, payload.Chunks)
	if errors.Is(err, rag.ErrUnknownCollection) || errors.Is(err, errNotWritable) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	logger.Info("Chunks indexed", "collection", payload.Collection, "chunks", n,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

var errNotWritable = errors.New("collection store does not accept writes")

// IndexChunks embeds and upserts chunks into the named collection, returning
// how many were written. Passages go through EmbedDocument when the embedder
// has one. Empty texts are skipped.
func IndexChunks(ctx context.Context, registry *rag.Registry, collection string, chunks []ChunkPayload) (int, error) {
	binding, err := registry.Lookup(collection)
	if err != nil {
		return 0, err
	}
	store, ok := binding.Store.(vectorstore.Store)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errNotWritable, collection)
	}

	embed := binding.Embedder.Embed
	if de, ok := binding.Embedder.(rag.DocumentEmbedder); ok {
		embed = de.EmbedDocument
	}

	batch := make([]rag.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Text == "" || c.PaperID == "" {
			continue
		}
		vec, err := embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", c.PaperID, err)
		}
		chunk := rag.Chunk{ID: c.PaperID, Text: c.Text, Vector: vec}
		if c.ChunkID != "" {
			chunk.Metadata = map[string]any{"chunk_id": c.ChunkID}
		}
		batch = append(batch, chunk)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := store.Upsert(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// RedisConnOpt converts go-redis options (as resolved from REDIS_URL) into
// the asynq connection settings.
func RedisConnOpt(opt *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
}
