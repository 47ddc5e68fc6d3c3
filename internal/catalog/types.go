// Package catalog defines the core domain types and ports for the article catalog.
package catalog

import (
	"fmt"
	"time"
)

// ContentKind distinguishes legal articles from attachments.
type ContentKind string

// Content kinds.
const (
	ContentKindArticle    ContentKind = "article"
	ContentKindAttachment ContentKind = "attachment"
)

// Status is the lifecycle state of a persisted article row.
type Status string

// Article statuses.
const (
	StatusInForce    Status = "vigente"
	StatusRepealed   Status = "abrogato"
	StatusSuperseded Status = "sostituito"
)

// OriginalLabel is the version label stored on every base row.
const OriginalLabel = "orig"

// UpdateLabel renders the version label for the Nth update.
func UpdateLabel(sequence int) string {
	return fmt.Sprintf("agg.%d", sequence)
}

// HintKind classifies what a navigation link says about the version it points at.
type HintKind int

// Version hint kinds.
const (
	// HintCurrent marks the live view of an article. It is resolved during
	// assembly and never stored as a label.
	HintCurrent HintKind = iota
	HintOriginal
	HintUpdate
)

func (k HintKind) String() string {
	switch k {
	case HintOriginal:
		return "original"
	case HintUpdate:
		return "update"
	default:
		return "current"
	}
}

// VersionHint is the raw version information carried by a navigation link.
// Sequence is zero for updates discovered without an explicit number.
type VersionHint struct {
	Kind     HintKind
	Sequence int
}

// ContainerTier records which extraction tier produced a version's text.
type ContainerTier string

// Extraction tiers, most precise first.
const (
	TierPrimary   ContainerTier = "primary"
	TierSecondary ContainerTier = "secondary"
	TierWholePage ContainerTier = "whole_page"
)

// Document is one legal act.
type Document struct {
	ID        int64     `json:"id"`
	URN       string    `json:"urn"`
	Number    string    `json:"number"`
	Year      int       `json:"year"`
	ActType   string    `json:"act_type"`
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url"`
	FullText  string    `json:"full_text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentTarget addresses a document to ingest.
type DocumentTarget struct {
	Year         int    `json:"year"`
	Number       string `json:"number"`
	Consolidated bool   `json:"consolidated"`
	// URL overrides the address built from year and number when set.
	URL string `json:"url,omitempty"`
}

func (t DocumentTarget) String() string {
	if t.URL != "" {
		return t.URL
	}
	return fmt.Sprintf("%d/%s", t.Year, t.Number)
}

// RawReference is one link found in a document's navigation.
type RawReference struct {
	// Label is the identity label of the article the link belongs to.
	Label string
	// VersionText is the text of a version link such as "orig." or "agg.2";
	// empty for the article's live view.
	VersionText string
	URL         string
	Hint        VersionHint
	Kind        ContentKind
	// Position is the discovery index within the page.
	Position int
}

// CorrelatedRef is an article reference found in a link inside the text.
type CorrelatedRef struct {
	Text   string `json:"text"`
	Href   string `json:"href"`
	Number string `json:"number"`
	Kind   string `json:"kind"`
}

// Attachment is a nested attachment referenced from an article version.
type Attachment struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Text   string `json:"text"`
}

// Version is the extracted content of one raw reference.
type Version struct {
	Ref            RawReference
	FullText       string
	NormalizedText string
	CorrelatedRefs []CorrelatedRef
	Attachments    []Attachment
	ValidFrom      *time.Time
	ValidTo        *time.Time
	SourceURL      string
	Tier           ContainerTier
}

// Article is a base or update row.
type Article struct {
	ID              int64           `json:"id"`
	DocumentID      int64           `json:"document_id"`
	CanonicalNumber string          `json:"canonical_number"`
	Kind            ContentKind     `json:"content_kind"`
	VersionLabel    string          `json:"version_label"`
	UpdateSequence  *int            `json:"update_sequence,omitempty"`
	BaseArticleID   *int64          `json:"base_article_id,omitempty"`
	FullText        string          `json:"full_text"`
	NormalizedText  string          `json:"normalized_text"`
	CorrelatedRefs  []CorrelatedRef `json:"correlated_refs"`
	Attachments     []Attachment    `json:"attachments"`
	ValidFrom       *time.Time      `json:"validity_start,omitempty"`
	ValidTo         *time.Time      `json:"validity_end,omitempty"`
	Status          Status          `json:"status"`
	IsCurrent       bool            `json:"is_current"`
	// CurrentText mirrors the current version's normalized text on the base row.
	CurrentText string `json:"current_text,omitempty"`
	SourceURL   string `json:"source_url"`
}

// IsBase reports whether the row is the base row of its chain.
func (a Article) IsBase() bool {
	return a.BaseArticleID == nil && a.UpdateSequence == nil
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

// Job statuses.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusNotFound  JobStatus = "not_found"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions follow the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusSkipped, JobStatusNotFound, JobStatusFailed:
		return true
	default:
		return false
	}
}

// JobCounters summarizes what one job produced.
type JobCounters struct {
	Groups          int `json:"groups"`
	GroupsSkipped   int `json:"groups_skipped"`
	GroupsFailed    int `json:"groups_failed"`
	RowsPersisted   int `json:"rows_persisted"`
	VersionsDropped int `json:"versions_dropped"`
}

// Job is one document ingestion request.
type Job struct {
	ID         string         `json:"id"`
	Target     DocumentTarget `json:"target"`
	Status     JobStatus      `json:"status"`
	Error      string         `json:"error,omitempty"`
	DocumentID int64          `json:"document_id,omitempty"`
	Counters   JobCounters    `json:"counters"`
	Submitted  time.Time      `json:"submitted"`
	Started    *time.Time     `json:"started,omitempty"`
	Finished   *time.Time     `json:"finished,omitempty"`
}
