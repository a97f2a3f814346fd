package auction

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
)

// Kind classifies why an operation was rejected
type Kind uint8

const (
	KindValidation    Kind = iota + 1 // bad parameters
	KindState                         // operation invalid for the current order state
	KindAuthorization                 // caller is not owner/seller
	KindFunds                         // ledger could not move the funds
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindState:
		return "StateError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindFunds:
		return "FundsError"
	default:
		return "UnknownError"
	}
}

// Error is returned by every rejected operation.
// errors.Is matches a kind sentinel (ErrState) by Kind and a code sentinel (ErrBidTooLow) by Code.
type Error struct {
	Kind Kind
	Code string
	Msg  string

	cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		if e.Code == "" {
			return e.Kind.String()
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Msg)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind sentinels
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrState         = &Error{Kind: KindState}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrFunds         = &Error{Kind: KindFunds}
)

// Validation
var (
	ErrInvalidAmount      = &Error{Kind: KindValidation, Code: "InvalidAmount"}
	ErrInvalidRange       = &Error{Kind: KindValidation, Code: "InvalidRange"}
	ErrInvalidWindow      = &Error{Kind: KindValidation, Code: "InvalidWindow"}
	ErrPriceTooLow        = &Error{Kind: KindValidation, Code: "PriceTooLow"}
	ErrBidTooLow          = &Error{Kind: KindValidation, Code: "BidTooLow"}
	ErrBelowMinimumVoting = &Error{Kind: KindValidation, Code: "BelowMinimumVoting"}
	ErrItemNotFound       = &Error{Kind: KindValidation, Code: "ItemNotFound"}
	ErrOrderNotFound      = &Error{Kind: KindValidation, Code: "OrderNotFound"}
	ErrMetadataTooBig     = &Error{Kind: KindValidation, Code: "MetadataTooBig"}
)

// State
var (
	ErrOrderNotOpen      = &Error{Kind: KindState, Code: "OrderNotOpen"}
	ErrDeadlinePassed    = &Error{Kind: KindState, Code: "DeadlinePassed"}
	ErrDeadlineNotPassed = &Error{Kind: KindState, Code: "DeadlineNotPassed"}
	ErrHasBids           = &Error{Kind: KindState, Code: "HasBids"}
	ErrItemInAuction     = &Error{Kind: KindState, Code: "ItemInAuction"}
	ErrItemNotLocked     = &Error{Kind: KindState, Code: "ItemNotLocked"}
)

// Authorization
var (
	ErrNotOwner        = &Error{Kind: KindAuthorization, Code: "NotOwner"}
	ErrNotSeller       = &Error{Kind: KindAuthorization, Code: "NotSeller"}
	ErrSellerCannotBid = &Error{Kind: KindAuthorization, Code: "SellerCannotBid"}
)

// Funds
var (
	ErrInsufficientBalance = &Error{Kind: KindFunds, Code: "InsufficientBalance"}
	ErrLedgerInconsistent  = &Error{Kind: KindFunds, Code: "LedgerInconsistent"}
)

func fail(code *Error, format string, args ...any) error {
	return &Error{Kind: code.Kind, Code: code.Code, Msg: fmt.Sprintf(format, args...)}
}

// mapErr translates ledger and registry errors into the auction taxonomy
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}

	var code *Error
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		code = ErrInsufficientBalance
	case errors.Is(err, item.ErrItemNotFound):
		code = ErrItemNotFound
	case errors.Is(err, item.ErrNotOwner):
		code = ErrNotOwner
	case errors.Is(err, item.ErrItemInAuction):
		code = ErrItemInAuction
	case errors.Is(err, item.ErrNotInAuction):
		code = ErrItemNotLocked
	case errors.Is(err, item.ErrMetadataTooBig):
		code = ErrMetadataTooBig
	default:
		// ledger.ErrReservedUnderflow, ledger.ErrInvalidAmount and anything unexpected
		code = ErrLedgerInconsistent
	}
	return &Error{Kind: code.Kind, Code: code.Code, Msg: err.Error(), cause: err}
}

// KindOf returns the kind of an auction error, or 0 for foreign errors
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// CodeOf returns the code of an auction error, or "" for foreign errors
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
