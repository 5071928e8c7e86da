package carrier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTransport indicates a network or HTTP failure talking to the carrier
	ErrTransport = errors.New("carrier: request failed")
	// ErrRateLimited indicates the carrier answered 429
	ErrRateLimited = errors.New("carrier: rate limited")
	// ErrNotFound indicates the carrier does not know the reference. A miss
	// is a valid answer, not a failure.
	ErrNotFound = errors.New("carrier: shipment not found")
	// ErrNotConfigured indicates a credential is missing or incomplete
	ErrNotConfigured = errors.New("carrier: credential not configured")
	// ErrUnknownCode is returned by the factory for unrecognized carrier slugs
	ErrUnknownCode = errors.New("carrier: unknown carrier code")
	// ErrInvalidResponse indicates the carrier answered with an unparseable body
	ErrInvalidResponse = errors.New("carrier: invalid response")
)

// ---------------------------------------------------------------------------
// Carrier code
// ---------------------------------------------------------------------------

// Code identifies a carrier integration
type Code string

const (
	// CodeSendit is the Sendit delivery-tracking integration
	CodeSendit Code = "SENDIT"
)

// IsValid returns true if the code names a known integration
func (c Code) IsValid() bool {
	return c == CodeSendit
}

// String returns the string representation of Code
func (c Code) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// Credential is one carrier account. Several credentials may coexist; exactly
// one should be flagged primary as the catch-all fallback.
type Credential struct {
	// Index is the 1-based position in configuration. Lower indexes win when
	// fan-out lookups return conflicting data for the same reference.
	Index int
	// Name is an optional display name
	Name string
	// SecretKey authenticates requests
	SecretKey string
	// BaseURL is the carrier API endpoint for this credential
	BaseURL string
	// Primary marks the catch-all credential used for unmapped stores
	Primary bool
	// Stores lists the store identifiers this credential is authoritative
	// for. A store appears in at most one credential's list.
	Stores []string
	// Active credentials participate in bulk reconciliation
	Active bool
}

// RateKey returns the rate-limiter key shared by all requests made with this
// credential
func (c Credential) RateKey() string {
	return fmt.Sprintf("carrier:%d", c.Index)
}

// Validate checks the credential is usable
func (c Credential) Validate() error {
	if c.SecretKey == "" || c.BaseURL == "" {
		return ErrNotConfigured
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shipments and status labels
// ---------------------------------------------------------------------------

// Shipment is the carrier's view of one order
type Shipment struct {
	// Reference is the order reference the shipment was created with
	Reference string
	// ShipmentID is the carrier-side shipment identifier
	ShipmentID string
	// TrackingNumber is the carrier tracking code
	TrackingNumber string
	// StatusCode is the carrier-native numeric status
	StatusCode int
	// StatusAt is when the carrier recorded the status, zero when unknown
	StatusAt time.Time
}

// Canonical shipping status labels
const (
	StatusCreated        = "created"
	StatusPickedUp       = "picked_up"
	StatusInTransit      = "in_transit"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusReturned       = "returned"
	StatusRefused        = "refused"
	StatusCancelled      = "cancelled"
)

// IsTerminalStatus reports whether a canonical label is terminal. Terminal
// labels never regress, regardless of what a later poll or webhook claims.
func IsTerminalStatus(label string) bool {
	switch label {
	case StatusDelivered, StatusReturned, StatusRefused, StatusCancelled:
		return true
	default:
		return false
	}
}

// TerminalStatuses returns the terminal canonical labels
func TerminalStatuses() []string {
	return []string{StatusDelivered, StatusReturned, StatusRefused, StatusCancelled}
}

// IsUnknownLabel reports whether a label is the rendering of an unmapped
// native code
func IsUnknownLabel(label string) bool {
	return strings.HasPrefix(label, "UNKNOWN(")
}

// UnknownLabel renders an unmapped native code. Mapping gaps degrade to a
// tagged label instead of failing the lookup.
func UnknownLabel(code int) string {
	return fmt.Sprintf("UNKNOWN(%d)", code)
}

// ---------------------------------------------------------------------------
// Client interface
// ---------------------------------------------------------------------------

// Client is the closed capability set every carrier integration implements.
// Integrations are selected through the Factory, never by probing for
// methods.
type Client interface {
	// Code returns the carrier slug this client handles
	Code() Code

	// FetchShipments fetches up to maxResults shipments for the credential,
	// paging internally
	FetchShipments(ctx context.Context, cred Credential, maxResults int) ([]Shipment, error)

	// FetchByReference fetches the shipment for a single order reference.
	// Returns ErrNotFound when the carrier does not know the reference.
	FetchByReference(ctx context.Context, cred Credential, reference string) (*Shipment, error)

	// MapStatus maps a carrier-native status code to a canonical label.
	// Unmapped codes render as UNKNOWN(<code>).
	MapStatus(code int) string

	// TestConnection verifies the credential against the carrier API
	TestConnection(ctx context.Context, cred Credential) error

	// SyncTrackingNumbers fetches tracking numbers for the given references
	SyncTrackingNumbers(ctx context.Context, cred Credential, references []string) (map[string]string, error)
}

// Factory builds a carrier client for a slug
type Factory func(code Code) (Client, error)
