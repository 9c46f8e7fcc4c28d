package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Skotchmaster/quiz_platform/internal/models"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
)

const DefaultIndex = "quiz_users"

type userDoc struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// UserIndex keeps a searchable copy of non-deleted accounts in Elasticsearch.
type UserIndex struct {
	ES    *elasticsearch.Client
	Index string
}

// NewClient connects and checks the cluster answers before returning.
func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("info", res)
	}
	return client, nil
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &UserIndex{ES: es, Index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (i *UserIndex) EnsureIndex(ctx context.Context) error {
	res, err := i.ES.Indices.Exists([]string{i.Index}, i.ES.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":        map[string]any{"type": "long"},
				"email":     map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
				"full_name": map[string]any{"type": "text"},
				"role":      map[string]any{"type": "keyword"},
				"status":    map[string]any{"type": "keyword"},
			},
		},
	}
	body, err := encode(mapping)
	if err != nil {
		return err
	}

	res, err = i.ES.Indices.Create(i.Index,
		i.ES.Indices.Create.WithContext(ctx),
		i.ES.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (i *UserIndex) IndexUser(ctx context.Context, u *models.User) error {
	if u.IsDeleted {
		return i.DeleteUser(ctx, u.ID)
	}

	body, err := encode(userDoc{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role.Name,
		Status:   string(u.Status),
	})
	if err != nil {
		return err
	}

	res, err := i.ES.Index(i.Index, body,
		i.ES.Index.WithContext(ctx),
		i.ES.Index.WithDocumentID(docID(u.ID)),
	)
	if err != nil {
		return fmt.Errorf("index user %d: %w", u.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index user", res)
	}
	return nil
}

// DeleteUser is a no-op for documents that are already gone.
func (i *UserIndex) DeleteUser(ctx context.Context, id uint) error {
	res, err := i.ES.Delete(i.Index, docID(id), i.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete user", res)
	}
	return nil
}

// SearchUsers returns the total hit count and the ids of the requested page,
// best match first.
func (i *UserIndex) SearchUsers(ctx context.Context, q string, offset, limit int) (int64, []uint, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"email^2", "full_name"},
				"fuzziness": "AUTO",
			},
		},
		"_source": []string{"id"},
		"from":    offset,
		"size":    limit,
	}
	body, err := encode(query)
	if err != nil {
		return 0, nil, err
	}

	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(i.Index),
		i.ES.Search.WithBody(body),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search users: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search users", res)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source userDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return r.Hits.Total.Value, ids, nil
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func encode(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return &buf, nil
}

var ErrElastic = errors.New("elasticsearch error")

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("%w: %s: %s: %s", ErrElastic, op, res.Status(), bytes.TrimSpace(body))
}
