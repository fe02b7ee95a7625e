package bulkmailer

import (
	"github.com/lattiq/bulkmailer/internal/core"
)

// Type aliases to re-export core types for the public API.
// This allows users to access types like bulkmailer.Message instead of
// core.Message, keeping implementation details internal.
type (
	Sender          = core.Sender
	Address         = core.Address
	Attachment      = core.Attachment
	Message         = core.Message
	Outcome         = core.Outcome
	SendResult      = core.SendResult
	SendError       = core.SendError
	ValidationError = core.ValidationError
)

// Outcome constants
const (
	OutcomeSent    = core.OutcomeSent
	OutcomeFailed  = core.OutcomeFailed
	OutcomeSkipped = core.OutcomeSkipped
)

// Error constructor and classification functions
var (
	NewSendError                = core.NewSendError
	NewTransientSendError       = core.NewTransientSendError
	NewValidationError          = core.NewValidationError
	NewValidationErrorWithValue = core.NewValidationErrorWithValue
	IsRetryable                 = core.IsRetryable
	IsTemporary                 = core.IsTemporary
	NormalizeEmail              = core.NormalizeEmail
)
