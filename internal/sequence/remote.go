package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/seqsync/internal/models"
)

// maxResponseSize caps a sequence document read from the remote service.
const maxResponseSize = 10 << 20 // 10 MB

// Remote fetches SequenceData as JSON from GET {baseURL}/sequences/{id}.
// Concurrent fetches of the same id share one request.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	maxBody    int64
	group      singleflight.Group
}

var _ Provider = (*Remote)(nil)

// NewRemote creates a remote provider. A zero timeout means 10 seconds.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxBody:    maxResponseSize,
	}
}

// FetchSequence implements Provider.
func (r *Remote) FetchSequence(ctx context.Context, structureID string) (*models.SequenceData, error) {
	v, err, _ := r.group.Do(structureID, func() (any, error) {
		return r.fetch(ctx, structureID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SequenceData), nil
}

func (r *Remote) fetch(ctx context.Context, structureID string) (*models.SequenceData, error) {
	fail := func(kind Kind, err error) (*models.SequenceData, error) {
		return nil, &FetchError{Kind: kind, StructureID: structureID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/sequences/"+url.PathEscape(structureID), nil)
	if err != nil {
		return fail(KindNetwork, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fail(KindNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fail(KindNotFound, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fail(KindNetwork, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return fail(KindNetwork, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > r.maxBody {
		return fail(KindParse, fmt.Errorf("response exceeds %d bytes", r.maxBody))
	}

	var data models.SequenceData
	if err := json.Unmarshal(body, &data); err != nil {
		return fail(KindParse, fmt.Errorf("decode: %w", err))
	}
	if err := data.Validate(); err != nil {
		return fail(KindParse, err)
	}
	if data.ID == "" {
		data.ID = structureID
	}
	return &data, nil
}
