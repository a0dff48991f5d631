package swap

import (
	"strings"

	xerrors "OpenMCP-Swap/internal/errors"
)

const (
	CodePoolNotFound        xerrors.Code = "POOL_NOT_FOUND"
	CodeDecimalsUnavailable xerrors.Code = "DECIMALS_UNAVAILABLE"
	CodeQuoteFailed         xerrors.Code = "QUOTE_FAILED"
	CodeApprovalFailed      xerrors.Code = "APPROVAL_FAILED"
	CodeSwapExecutionFailed xerrors.Code = "SWAP_EXECUTION_FAILED"
	CodeInvalidInput        xerrors.Code = "INVALID_INPUT"
)

func init() {
	xerrors.Register(CodePoolNotFound, xerrors.Attributes{
		Message:  "failed to find a suitable pool",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeDecimalsUnavailable, xerrors.Attributes{
		Message:  "token decimals unavailable",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeQuoteFailed, xerrors.Attributes{
		Message:  "failed to get quote",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeApprovalFailed, xerrors.Attributes{
		Message:  "token approval failed",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeSwapExecutionFailed, xerrors.Attributes{
		Message:  "swap execution failed",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeInvalidInput, xerrors.Attributes{
		Message:  "invalid swap input",
		Severity: xerrors.SeverityInfo,
	})
}

func newInvalidInput(field, message string) *xerrors.Error {
	return xerrors.New(CodeInvalidInput, message,
		xerrors.WithMetadata("field", field),
		xerrors.WithMetadata("step", string(StateIdle)))
}

// Render turns a swap failure into the message shown to the caller.
func Render(err error) string {
	if err == nil {
		return ""
	}
	e, ok := xerrors.From(err)
	if !ok {
		return "Failed to execute swap: " + err.Error()
	}
	switch e.Code() {
	case CodePoolNotFound:
		return "Failed to find a suitable pool"
	case CodeQuoteFailed:
		return "Failed to get quote"
	case CodeInvalidInput:
		return "Invalid swap request: " + e.Message()
	case CodeApprovalFailed:
		return "Failed to execute swap: approval failed: " + causeText(e)
	default:
		return "Failed to execute swap: " + causeText(e)
	}
}

func causeText(e *xerrors.Error) string {
	if cause := e.Cause(); cause != nil {
		return strings.TrimSpace(cause.Error())
	}
	return e.Message()
}
