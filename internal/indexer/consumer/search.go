package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
)

// SearchEvent is the Kafka payload requesting a search. Either Query or
// QueryString must be set; QueryString is parsed against Field as the
// default field.
type SearchEvent struct {
	RequestID       string        `json:"request_id"`
	Index           string        `json:"index"`
	Field           string        `json:"field"`
	Query           *parser.Query `json:"query,omitempty"`
	QueryString     string        `json:"query_string,omitempty"`
	AnalyzeWildcard bool          `json:"analyze_wildcard,omitempty"`
	Limit           int           `json:"limit"`
}

// SearchResponseEvent is published for every search request.
type SearchResponseEvent struct {
	RequestID  string                 `json:"request_id"`
	Result     *executor.SearchResult `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Code       string                 `json:"code,omitempty"`
	AnsweredAt time.Time              `json:"answered_at"`
}

// Searcher runs a single-field query.
type Searcher interface {
	Search(ctx context.Context, index, field string, q parser.Query, limit int) (*executor.SearchResult, error)
}

// Publisher sends events to a topic. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// HandleSearch returns a MessageHandler answering SearchEvent messages. A
// failing query is answered with an error response; only a failure to
// publish the response is returned to the consumer.
func HandleSearch(searcher Searcher, out Publisher) kafka.MessageHandler {
	logger := slog.Default().With("component", "search-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			logger.Error("failed to decode search event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		resp := SearchResponseEvent{RequestID: event.RequestID}
		result, err := runSearch(ctx, searcher, &event)
		if err != nil {
			logger.Warn("search request failed", "request_id", event.RequestID, "error", err)
			resp.Error = err.Error()
			resp.Code = apperrors.Code(err)
		} else {
			resp.Result = result
		}
		resp.AnsweredAt = time.Now().UTC()

		if err := out.Publish(ctx, kafka.Event{Key: event.RequestID, Value: resp}); err != nil {
			return fmt.Errorf("publishing response to %s: %w", event.RequestID, err)
		}
		return nil
	}
}

func runSearch(ctx context.Context, searcher Searcher, event *SearchEvent) (*executor.SearchResult, error) {
	field, q := event.Field, event.Query
	if q == nil {
		if event.QueryString == "" {
			return nil, apperrors.New(apperrors.ErrInvalidInput, "search event carries no query")
		}
		plan, err := parser.Parse(event.QueryString, event.Field, event.AnalyzeWildcard)
		if err != nil {
			return nil, err
		}
		field, q = plan.Field, &plan.Query
	}
	return searcher.Search(ctx, event.Index, field, *q, event.Limit)
}
