// Package music provides the playback result model. This file implements the
// aggregator which runs every search kind for a phrase concurrently and
// merges what comes back.
//
// Failure of a single searcher is logged and skipped; an error is only
// surfaced when every configured searcher failed.
package music

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Aggregator queries each configured Searcher and merges the results.
type Aggregator struct {
	Searchers []Searcher
}

// Search returns the union of results from all searchers ordered by
// descending confidence. Results sharing a URI are reported once, keeping the
// higher confidence.
func (a Aggregator) Search(ctx context.Context, phrase string) ([]Result, error) {
	if len(a.Searchers) == 0 {
		return nil, nil
	}
	type result struct {
		name    string
		results []Result
		err     error
	}
	var wg sync.WaitGroup
	resCh := make(chan result, len(a.Searchers))
	for _, s := range a.Searchers {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Search(ctx, phrase)
			resCh <- result{name: s.Name(), results: res, err: err}
		}()
	}
	wg.Wait()
	close(resCh)

	seen := make(map[string]int)
	var merged []Result
	var firstErr error
	successes := 0
	for r := range resCh {
		if r.err != nil {
			log.WithError(r.err).WithField("searcher", r.name).Warn("search failed")
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		successes++
		for _, res := range r.results {
			uri := res.URI()
			if i, ok := seen[uri]; ok {
				if res.Confidence() > merged[i].Confidence() {
					merged[i] = res
				}
				continue
			}
			seen[uri] = len(merged)
			merged = append(merged, res)
		}
	}
	if successes == 0 && firstErr != nil {
		return nil, firstErr
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence() > merged[j].Confidence()
	})
	return merged, nil
}
