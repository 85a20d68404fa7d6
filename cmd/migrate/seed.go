package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"llmpedia-backend/internal/app"
	"llmpedia-backend/internal/queue"
	"llmpedia-backend/services"
)

const seedBatchSize = 64

// readChunks parses one JSON object per line and splits long texts into
// passages numbered <chunk_id or paper_id>:<n>. Blank lines are skipped; a
// malformed line is an error naming its line number.
func readChunks(r io.Reader, chunker *services.Chunker, batchSize int, fn func([]queue.ChunkPayload) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	batch := make([]queue.ChunkPayload, 0, batchSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c queue.ChunkPayload
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if c.PaperID == "" || c.Text == "" {
			return fmt.Errorf("line %d: paper_id and text are required", line)
		}
		base := c.ChunkID
		if base == "" {
			base = c.PaperID
		}
		passages := chunker.Split(c.Text)
		for i, text := range passages {
			p := queue.ChunkPayload{PaperID: c.PaperID, ChunkID: c.ChunkID, Text: text}
			if len(passages) > 1 {
				p.ChunkID = fmt.Sprintf("%s:%d", base, i)
			}
			batch = append(batch, p)
			if len(batch) == batchSize {
				if err := fn(batch); err != nil {
					return err
				}
				batch = make([]queue.ChunkPayload, 0, batchSize)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// seedFile loads path into collection in passages of at most maxChars,
// inline or through the worker when enqueue is set.
func seedFile(ctx context.Context, cols *app.Collections, collection, path string, maxChars int, enqueue queue.Enqueuer) (int, error) {
	if _, err := cols.Registry.Lookup(collection); err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	total := 0
	err = readChunks(f, services.NewChunker(maxChars, maxChars/10), seedBatchSize, func(batch []queue.ChunkPayload) error {
		if enqueue != nil {
			task, err := queue.NewIndexChunksTask(collection, batch)
			if err != nil {
				return err
			}
			if _, err := enqueue.EnqueueContext(ctx, task); err != nil {
				return err
			}
			total += len(batch)
			return nil
		}
		n, err := queue.IndexChunks(ctx, cols.Registry, collection, batch)
		total += n
		return err
	})
	return total, err
}
