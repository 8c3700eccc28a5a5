package tasks

//go:generate go run go.uber.org/mock/mockgen -source=./tasks.go -destination=./mocks/tasks_mock.go -package=mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"lodge/config"
)

// Tasks is the external housekeeping-task collaborator. The engine only ever
// asks it one question: how many incomplete tasks still reference a property.
type Tasks interface {
	IncompleteCount(ctx context.Context, propertyID string) (int, error)
}

type tasksImpl struct {
	baseURL string
	client  *http.Client
}

func New(config *config.Config) Tasks {
	return &tasksImpl{
		baseURL: config.External.Tasks.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(config.External.Tasks.TimeoutSeconds) * time.Second,
		},
	}
}

type incompleteCountResponse struct {
	Data struct {
		Count int `json:"count"`
	} `json:"data"`
}

func (t *tasksImpl) IncompleteCount(ctx context.Context, propertyID string) (int, error) {
	endpoint := fmt.Sprintf("%s/v1/tasks/incomplete-count?property_id=%s", t.baseURL, url.QueryEscape(propertyID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build task lookup request: %w", err)
	}

	res, err := t.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("propertyID", propertyID).Msg("task collaborator unreachable")

		return 0, fmt.Errorf("task lookup failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("task lookup returned status %d", res.StatusCode)
	}

	body := incompleteCountResponse{}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode task lookup response: %w", err)
	}

	return body.Data.Count, nil
}
