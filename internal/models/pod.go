package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the synchronisation state of an offline proof-of-delivery bundle.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncFailed  SyncStatus = "failed"
	SyncSynced  SyncStatus = "synced"
)

// Blob is a binary attachment of a proof of delivery (photo, signature).
type Blob struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// OfflineBundle is a proof-of-delivery payload captured in the field that has not
// reached the backend yet.
type OfflineBundle struct {
	ID               uuid.UUID         `json:"id"`
	BookingReference string            `json:"booking_reference"`
	Blobs            []Blob            `json:"blobs"`
	Fields           map[string]string `json:"fields,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	SyncStatus       SyncStatus        `json:"sync_status"`
	Attempts         int               `json:"attempts"`
	LastError        string            `json:"last_error,omitempty"`
}

// NewOfflineBundle creates a pending bundle for a booking.
func NewOfflineBundle(bookingRef string, blobs []Blob, fields map[string]string, now time.Time) OfflineBundle {
	return OfflineBundle{
		ID:               uuid.New(),
		BookingReference: bookingRef,
		Blobs:            blobs,
		Fields:           fields,
		CreatedAt:        now,
		SyncStatus:       SyncPending,
	}
}

// ProofOfDelivery is the backend record of a completed delivery. BlobURLs maps the object
// name of every uploaded attachment ("<position>-<name>", or "attachment-<position>" when
// unnamed) to its public URL.
type ProofOfDelivery struct {
	BookingReference string            `json:"booking_reference"`
	Fields           map[string]string `json:"fields,omitempty"`
	BlobURLs         map[string]string `json:"blob_urls"`
	CapturedAt       time.Time         `json:"captured_at"`
}
