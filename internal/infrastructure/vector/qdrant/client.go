package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/resilience"
)

const (
	upsertBatchSize = 256

	payloadContent = "content"
	payloadParent  = "parent_content"
)

// pointNamespace seeds deterministic point ids so re-indexing a version
// overwrites its own points.
var pointNamespace = uuid.MustParse("6f1c9a52-3d4e-5b7a-9c21-0e8f4d2b7a13")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PointID is the stable point id of a chunk within a corpus version.
func PointID(version, chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(version+"/"+chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) IndexChunks(ctx context.Context, version string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("qdrant index: corpus version is required")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, point{
				ID:      PointID(version, chunks[i].ChunkID),
				Vector:  vectors[i],
				Payload: chunkPayload(version, chunks[i]),
			})
		}
		if err := c.call(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if must := mustConditions(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.call(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredChunk{
			Chunk: chunkFromPayload(r.Payload),
			Score: r.Score,
		})
	}
	return out, nil
}

// PruneVersions deletes every point whose corpus version is not in keep.
func (c *Client) PruneVersions(ctx context.Context, keep []string) error {
	values := make([]string, 0, len(keep))
	for _, v := range keep {
		if strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("qdrant prune: refusing to delete every corpus version")
	}

	reqBody := map[string]any{
		"filter": map[string]any{
			"must_not": []map[string]any{
				{
					"key":   domain.MetaCorpusVersion,
					"match": map[string]any{"any": values},
				},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.call(ctx, http.MethodPost, path, reqBody, nil, "prune")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/collections", nil, nil, "ping")
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.call(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")

	// 409 if the collection already exists.
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.code == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}

	indexBody := map[string]any{
		"field_name":   domain.MetaCorpusVersion,
		"field_schema": "keyword",
	}
	indexPath := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
	if err := c.call(ctx, http.MethodPut, indexPath, indexBody, nil, "ensure payload index"); err != nil {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = raw
	}

	do := func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &statusError{operation: operation, code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(msg))}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	var err error
	if c.executor == nil {
		err = do(ctx)
	} else {
		err = c.executor.Execute(ctx, "qdrant."+strings.ReplaceAll(operation, " ", "_"), do, classifyQdrantError)
	}
	if err != nil && classifyQdrantError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return err
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

var classifyQdrantError = resilience.TransientClassifier(func(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code == http.StatusTooManyRequests || statusErr.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
})

func mustConditions(filter domain.SearchFilter) []map[string]any {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": filter[k]},
		})
	}
	return must
}

func chunkPayload(version string, chunk domain.DocumentChunk) map[string]any {
	payload := map[string]any{
		domain.MetaChunkID:       chunk.ChunkID,
		domain.MetaLevel:         string(chunk.Level),
		domain.MetaPage:          chunk.Page,
		domain.MetaCorpusVersion: version,
		payloadContent:           chunk.Content,
	}
	if chunk.ParentContent != "" {
		payload[payloadParent] = chunk.ParentContent
	}
	for k, v := range chunk.Reference.Metadata() {
		payload[k] = v
	}
	return payload
}

func chunkFromPayload(payload map[string]any) domain.DocumentChunk {
	meta := make(map[string]string, len(payload))
	for k := range payload {
		meta[k] = getStringPayload(payload, k)
	}
	page, _ := strconv.Atoi(meta[domain.MetaPage])
	return domain.DocumentChunk{
		ChunkID:       meta[domain.MetaChunkID],
		Content:       meta[payloadContent],
		Reference:     domain.ReferenceFromMetadata(meta),
		Page:          page,
		Level:         domain.ChunkLevel(meta[domain.MetaLevel]),
		ParentContent: meta[payloadParent],
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
