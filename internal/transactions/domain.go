package transactions

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/shared"
)

// Status enumerates transaction states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// MaxTitleLength bounds a title in characters.
const MaxTitleLength = 255

// UserRef identifies a user attached to a transaction.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Transaction is a monetary record awaiting or holding approval.
type Transaction struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	PriceGBP     Money      `json:"priceGBP"`
	Status       Status     `json:"status"`
	CreatedByID  uuid.UUID  `json:"createdById"`
	CreatedBy    UserRef    `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	ApprovedByID *uuid.UUID `json:"approvedById"`
	ApprovedBy   *UserRef   `json:"approvedBy"`
	ApprovedAt   *time.Time `json:"approvedAt"`
}

// CreateInput carries the fields needed to record a transaction.
type CreateInput struct {
	Title          string
	PriceGBP       Money
	IdempotencyKey string
}

// Normalize trims the title and validates every field, returning a
// validation error that names each offending field.
func (in CreateInput) Normalize() (CreateInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	var problems []string
	switch {
	case in.Title == "":
		problems = append(problems, "title: is required")
	case utf8.RuneCountInString(in.Title) > MaxTitleLength:
		problems = append(problems, fmt.Sprintf("title: must be at most %d characters", MaxTitleLength))
	}
	if msg := in.PriceGBP.Validate(); msg != "" {
		problems = append(problems, "priceGBP: "+msg)
	}
	if len(problems) > 0 {
		return in, shared.NewError(shared.ErrValidation, "Validation failed: "+strings.Join(problems, "; "))
	}
	return in, nil
}
