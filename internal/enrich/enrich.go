// Package enrich hands persisted articles to downstream classification and
// embedding collaborators. The catalog core never depends on a model; it only
// announces that articles are ready.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// DefaultTopic is the topic articles-ready events are published to.
const DefaultTopic = "articles.ready"

// Noop discards enrichment requests.
type Noop struct{}

// Enrich does nothing.
func (Noop) Enrich(context.Context, catalog.Document, []catalog.Article) error { return nil }

// ArticleRef identifies one persisted row in an ArticlesReady event.
type ArticleRef struct {
	ID              int64               `json:"id"`
	CanonicalNumber string              `json:"canonical_number"`
	Kind            catalog.ContentKind `json:"content_kind"`
	VersionLabel    string              `json:"version_label"`
	IsCurrent       bool                `json:"is_current"`
	Status          catalog.Status      `json:"status"`
}

// ArticlesReady is published once per processed document.
type ArticlesReady struct {
	DocumentID int64        `json:"document_id"`
	URN        string       `json:"urn,omitempty"`
	Year       int          `json:"year"`
	Number     string       `json:"number"`
	ActType    string       `json:"act_type"`
	Articles   []ArticleRef `json:"articles"`
}

// Notifier publishes an ArticlesReady event for each enriched document.
type Notifier struct {
	publisher catalog.Publisher
	topic     string
	logger    *zap.Logger
}

// NewNotifier builds a Notifier publishing to topic, or DefaultTopic when
// topic is empty.
func NewNotifier(publisher catalog.Publisher, topic string, logger *zap.Logger) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, topic: topic, logger: logger}
}

// Enrich publishes the event. Documents without persisted rows are skipped.
func (n *Notifier) Enrich(ctx context.Context, doc catalog.Document, articles []catalog.Article) error {
	if len(articles) == 0 {
		return nil
	}
	event := ArticlesReady{
		DocumentID: doc.ID,
		URN:        doc.URN,
		Year:       doc.Year,
		Number:     doc.Number,
		ActType:    doc.ActType,
		Articles:   make([]ArticleRef, 0, len(articles)),
	}
	for _, a := range articles {
		event.Articles = append(event.Articles, ArticleRef{
			ID:              a.ID,
			CanonicalNumber: a.CanonicalNumber,
			Kind:            a.Kind,
			VersionLabel:    a.VersionLabel,
			IsCurrent:       a.IsCurrent,
			Status:          a.Status,
		})
	}
	id, err := n.publisher.Publish(ctx, n.topic, event)
	if err != nil {
		return fmt.Errorf("publish articles ready: %w", err)
	}
	n.logger.Debug("articles ready published",
		zap.String("topic", n.topic),
		zap.String("message_id", id),
		zap.Int64("document_id", doc.ID),
		zap.Int("articles", len(articles)),
	)
	return nil
}
