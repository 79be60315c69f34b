// package models defines the data model for the qrtune scan history
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/qrtune/internal/links"
	"github.com/desertthunder/qrtune/internal/shared"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Scan is one resolved QR payload.
type Scan struct {
	id        string
	sequence  int
	raw       string
	kind      links.Kind
	subtype   links.Subtype
	mediaID   string
	client    string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewScan records raw as scanned by client, classifying it with [links.Parse].
func NewScan(raw, client string) *Scan {
	link := links.Parse(raw)
	now := time.Now().UTC()

	return &Scan{
		raw:       strings.TrimSpace(raw),
		kind:      link.Kind,
		subtype:   link.Subtype,
		mediaID:   link.ID,
		client:    client,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreScan rebuilds a Scan from stored columns.
func RestoreScan(id string, sequence int, raw string, kind links.Kind, subtype links.Subtype, mediaID, client string, createdAt, updatedAt time.Time, deletedAt *time.Time) *Scan {
	return &Scan{
		id:        id,
		sequence:  sequence,
		raw:       raw,
		kind:      kind,
		subtype:   subtype,
		mediaID:   mediaID,
		client:    client,
		createdAt: createdAt,
		updatedAt: updatedAt,
		deletedAt: deletedAt,
	}
}

func (s *Scan) ID() string             { return s.id }
func (s *Scan) Sequence() int          { return s.sequence }
func (s *Scan) Raw() string            { return s.raw }
func (s *Scan) Kind() links.Kind       { return s.kind }
func (s *Scan) Subtype() links.Subtype { return s.subtype }
func (s *Scan) MediaID() string        { return s.mediaID }
func (s *Scan) Client() string         { return s.client }
func (s *Scan) CreatedAt() time.Time   { return s.createdAt }
func (s *Scan) UpdatedAt() time.Time   { return s.updatedAt }
func (s *Scan) DeletedAt() *time.Time  { return s.deletedAt }

func (s *Scan) SetID(id string)           { s.id = id }
func (s *Scan) SetSequence(seq int)       { s.sequence = seq }
func (s *Scan) SetUpdatedAt(t time.Time)  { s.updatedAt = t }
func (s *Scan) SetDeletedAt(t *time.Time) { s.deletedAt = t }

// Reclassify replaces the raw text and re-parses it.
func (s *Scan) Reclassify(raw string) {
	link := links.Parse(raw)
	s.raw = strings.TrimSpace(raw)
	s.kind = link.Kind
	s.subtype = link.Subtype
	s.mediaID = link.ID
}

// Link returns the parsed link this scan recorded.
func (s *Scan) Link() links.Link {
	l := links.Link{Kind: s.kind, Subtype: s.subtype, ID: s.mediaID}
	if s.mediaID == "" {
		l.Raw = s.raw
	}
	return l
}

// Validate checks the scan has text and a known kind.
func (s *Scan) Validate() error {
	if s.raw == "" {
		return fmt.Errorf("%w: scan text is required", shared.ErrInvalidInput)
	}
	switch s.kind {
	case links.KindSpotify, links.KindYouTube, links.KindUnknown:
	default:
		return fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidInput, s.kind)
	}
	return nil
}

// ScanView is the serialized form of a [Scan].
type ScanView struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"sequence"`
	Raw       string    `json:"raw"`
	Kind      string    `json:"kind"`
	Subtype   string    `json:"subtype,omitempty"`
	MediaID   string    `json:"media_id,omitempty"`
	OpenURL   string    `json:"open_url,omitempty"`
	Client    string    `json:"client,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// View flattens the scan for JSON output.
func (s *Scan) View() ScanView {
	return ScanView{
		ID:        s.id,
		Sequence:  s.sequence,
		Raw:       s.raw,
		Kind:      string(s.kind),
		Subtype:   string(s.subtype),
		MediaID:   s.mediaID,
		OpenURL:   s.Link().OpenURL(),
		Client:    s.client,
		CreatedAt: s.createdAt,
	}
}

// Views converts a list of scans.
func Views(scans []*Scan) []ScanView {
	views := make([]ScanView, 0, len(scans))
	for _, s := range scans {
		views = append(views, s.View())
	}
	return views
}
