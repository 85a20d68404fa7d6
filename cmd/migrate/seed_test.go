package main

import (
	"strings"
	"testing"

	"llmpedia-backend/internal/queue"
	"llmpedia-backend/services"
)

func TestReadChunksBatches(t *testing.T) {
	input := `{"paper_id": "2106.09685", "text": "LoRA"}

{"paper_id": "2305.18290", "text": "DPO", "chunk_id": "dpo-0"}
{"paper_id": "2307.09288", "text": "Llama 2"}
`
	var batches [][]queue.ChunkPayload
	err := readChunks(strings.NewReader(input), services.NewChunker(2000, 200), 2, func(b []queue.ChunkPayload) error {
		batches = append(batches, b)
		return nil
	})
	if err != nil {
		t.Fatalf("readChunks: %v", err)
	}
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("batches = %v", batches)
	}
	if batches[0][1].ChunkID != "dpo-0" {
		t.Errorf("chunk id = %q", batches[0][1].ChunkID)
	}
}

func TestReadChunksRejectsBadLines(t *testing.T) {
	tests := map[string]string{
		"malformed":     "{\"paper_id\": \"2106.09685\", \"text\": \"ok\"}\n{not json\n",
		"missing text":  "{\"paper_id\": \"2106.09685\"}\n",
		"missing paper": "{\"text\": \"orphan\"}\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			err := readChunks(strings.NewReader(input), services.NewChunker(2000, 200), 10, func([]queue.ChunkPayload) error { return nil })
			if err == nil || !strings.Contains(err.Error(), "line") {
				t.Fatalf("err = %v, want a line-numbered error", err)
			}
		})
	}
}

func TestReadChunksSplitsLongText(t *testing.T) {
	long := strings.Repeat("Preference optimization without a reward model. ", 10)
	input := `{"paper_id": "2305.18290", "chunk_id": "dpo", "text": "` + long + `"}`

	var got []queue.ChunkPayload
	err := readChunks(strings.NewReader(input), services.NewChunker(200, 0), 64, func(b []queue.ChunkPayload) error {
		got = append(got, b...)
		return nil
	})
	if err != nil {
		t.Fatalf("readChunks: %v", err)
	}
	if len(got) < 2 || got[0].ChunkID != "dpo:0" || got[1].ChunkID != "dpo:1" {
		t.Fatalf("chunks = %+v", got)
	}
	for _, c := range got {
		if c.PaperID != "2305.18290" || len(c.Text) > 200 {
			t.Errorf("chunk = %+v", c)
		}
	}
}

func TestReadChunksNumbersPassagesByPaperID(t *testing.T) {
	long := strings.Repeat("Low-rank adapters keep the base weights frozen. ", 10)
	input := `{"paper_id": "2106.09685", "text": "` + long + `"}
{"paper_id": "2305.18290", "text": "DPO"}`

	var got []queue.ChunkPayload
	err := readChunks(strings.NewReader(input), services.NewChunker(200, 0), 64, func(b []queue.ChunkPayload) error {
		got = append(got, b...)
		return nil
	})
	if err != nil {
		t.Fatalf("readChunks: %v", err)
	}
	if len(got) < 3 || got[0].ChunkID != "2106.09685:0" || got[1].ChunkID != "2106.09685:1" {
		t.Fatalf("chunks = %+v", got)
	}
	if last := got[len(got)-1]; last.PaperID != "2305.18290" || last.ChunkID != "" {
		t.Errorf("unsplit line got chunk id %q", last.ChunkID)
	}
}
