package api

import (
	"net/http"
	"time"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/ingest"
	"github.com/cashboard/cashboard/internal/service"
)

type syncResponse struct {
	Results  []ingest.Result `json:"results"`
	Inserted int             `json:"inserted"`
	Updated  int             `json:"updated"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors"`
}

// handleSyncIngest runs the ingestion pipeline over the scraper output
// directory: the latest export per bank is processed and the per-file
// results are summed. Listing the directory is retried because the data
// fetcher may be mid-write when sync fires.
func (s *Server) handleSyncIngest(w http.ResponseWriter, r *http.Request) {
	var results []ingest.Result

	err := common.WithRetry(r.Context(), func() error {
		var ingestErr error
		results, ingestErr = s.ingestor.IngestLatest(r.Context(), s.outputDir)
		return ingestErr
	}, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := syncResponse{Results: results, Errors: []string{}}
	for _, result := range results {
		resp.Inserted += result.Inserted
		resp.Updated += result.Updated
		resp.Skipped += result.Skipped
		resp.Errors = append(resp.Errors, result.Errors...)
	}

	writeJSON(w, http.StatusOK, resp)
}
