package rag

import "fmt"

// DefaultTopN caps how many reranked documents reach the assembler.
const DefaultTopN = 7

// DefaultK is how many candidates are retrieved before reranking.
const DefaultK = 20

func candidateKey(c Chunk) string {
	return c.ID + "\x00" + c.Text
}

// ValidateRanking checks a reranker's output against its input: at most topN
// entries, each one drawn from candidates, no duplicates, ranks strictly
// increasing from 1.
func ValidateRanking(candidates []Candidate, ranked []RankedCandidate, topN int) error {
	if len(ranked) > topN {
		return fmt.Errorf("%w: %d results for top %d", ErrRerankUnavailable, len(ranked), topN)
	}

	available := make(map[string]int, len(candidates))
	for _, c := range candidates {
		available[candidateKey(c.Chunk)]++
	}

	for i, rc := range ranked {
		key := candidateKey(rc.Chunk)
		if available[key] == 0 {
			return fmt.Errorf("%w: result %q is not one of the candidates", ErrRerankUnavailable, rc.Chunk.ID)
		}
		available[key]--
		if rc.Rank != i+1 {
			return fmt.Errorf("%w: result %d has rank %d", ErrRerankUnavailable, i, rc.Rank)
		}
	}
	return nil
}
