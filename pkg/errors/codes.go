package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes used by the error-chain helpers.  ErrCodeOK is returned by
// GetCode for a nil error; ErrCodeUnknown marks errors that did not pass
// through this package.  Neither belongs to a module group and neither should
// be attached to a constructed AppError.
const (
	ErrCodeOK      ErrorCode = "OK"
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Prescription Processing Error Codes
const (
	ErrCodeTextEmpty           ErrorCode = "RX_001"
	ErrCodeTextNotPrescription ErrorCode = "RX_002"
	ErrCodeExtractionFailed    ErrorCode = "RX_003"
	ErrCodeNoMedicationsFound  ErrorCode = "RX_004"
	ErrCodeCandidateInvalid    ErrorCode = "RX_005"
	ErrCodeLexiconEntryInvalid ErrorCode = "RX_006"
)

// Medication Module Error Codes
const (
	ErrCodeMedicationNotFound      ErrorCode = "MED_001"
	ErrCodeMedicationAlreadyExists ErrorCode = "MED_002"
	ErrCodeMedicationNameInvalid   ErrorCode = "MED_003"
	ErrCodeMedicationInactive      ErrorCode = "MED_004"
	ErrCodeMedicationOwnerMismatch ErrorCode = "MED_005"
)

// Schedule / Reminder Module Error Codes
const (
	ErrCodeReminderNotFound       ErrorCode = "SCH_001"
	ErrCodeReminderTimeInvalid    ErrorCode = "SCH_002"
	ErrCodeReminderStoreFull      ErrorCode = "SCH_003"
	ErrCodeReminderDispatchFailed ErrorCode = "SCH_004"
	ErrCodeReminderAlreadySent    ErrorCode = "SCH_005"
)

// Adherence Module Error Codes
const (
	ErrCodeDoseLogNotFound         ErrorCode = "ADH_001"
	ErrCodeDoseAlreadyTaken        ErrorCode = "ADH_002"
	ErrCodeCompliancePeriodInvalid ErrorCode = "ADH_003"
)

// Scan Intake Error Codes
const (
	ErrCodeScanNotFound          ErrorCode = "SCAN_001"
	ErrCodeScanTooLarge          ErrorCode = "SCAN_002"
	ErrCodeScanFormatUnsupported ErrorCode = "SCAN_003"
	ErrCodeScanStoreFailed       ErrorCode = "SCAN_004"
)

// User Module Error Codes
const (
	ErrCodeUserNotFound        ErrorCode = "USER_001"
	ErrCodeUserTimezoneInvalid ErrorCode = "USER_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeTextEmpty:           http.StatusBadRequest,
	ErrCodeTextNotPrescription: http.StatusUnprocessableEntity,
	ErrCodeExtractionFailed:    http.StatusInternalServerError,
	ErrCodeNoMedicationsFound:  http.StatusUnprocessableEntity,
	ErrCodeCandidateInvalid:    http.StatusUnprocessableEntity,
	ErrCodeLexiconEntryInvalid: http.StatusBadRequest,

	ErrCodeMedicationNotFound:      http.StatusNotFound,
	ErrCodeMedicationAlreadyExists: http.StatusConflict,
	ErrCodeMedicationNameInvalid:   http.StatusBadRequest,
	ErrCodeMedicationInactive:      http.StatusConflict,
	ErrCodeMedicationOwnerMismatch: http.StatusForbidden,

	ErrCodeReminderNotFound:       http.StatusNotFound,
	ErrCodeReminderTimeInvalid:    http.StatusBadRequest,
	ErrCodeReminderStoreFull:      http.StatusServiceUnavailable,
	ErrCodeReminderDispatchFailed: http.StatusInternalServerError,
	ErrCodeReminderAlreadySent:    http.StatusConflict,

	ErrCodeDoseLogNotFound:         http.StatusNotFound,
	ErrCodeDoseAlreadyTaken:        http.StatusConflict,
	ErrCodeCompliancePeriodInvalid: http.StatusBadRequest,

	ErrCodeScanNotFound:          http.StatusNotFound,
	ErrCodeScanTooLarge:          http.StatusRequestEntityTooLarge,
	ErrCodeScanFormatUnsupported: http.StatusUnsupportedMediaType,
	ErrCodeScanStoreFailed:       http.StatusInternalServerError,

	ErrCodeUserNotFound:        http.StatusNotFound,
	ErrCodeUserTimezoneInvalid: http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeTextEmpty:           "prescription text is empty",
	ErrCodeTextNotPrescription: "text does not look like a prescription",
	ErrCodeExtractionFailed:    "medication extraction failed",
	ErrCodeNoMedicationsFound:  "no medications found in text",
	ErrCodeCandidateInvalid:    "medication candidate is invalid",
	ErrCodeLexiconEntryInvalid: "invalid lexicon entry",

	ErrCodeMedicationNotFound:      "medication not found",
	ErrCodeMedicationAlreadyExists: "medication already exists",
	ErrCodeMedicationNameInvalid:   "invalid medication name",
	ErrCodeMedicationInactive:      "medication is inactive",
	ErrCodeMedicationOwnerMismatch: "medication belongs to a different user",

	ErrCodeReminderNotFound:       "reminder not found",
	ErrCodeReminderTimeInvalid:    "invalid reminder time",
	ErrCodeReminderStoreFull:      "active reminder store is full",
	ErrCodeReminderDispatchFailed: "failed to dispatch reminder",
	ErrCodeReminderAlreadySent:    "reminder already sent today",

	ErrCodeDoseLogNotFound:         "dose log not found",
	ErrCodeDoseAlreadyTaken:        "dose already logged for this time",
	ErrCodeCompliancePeriodInvalid: "invalid compliance period",

	ErrCodeScanNotFound:          "prescription scan not found",
	ErrCodeScanTooLarge:          "prescription scan exceeds size limit",
	ErrCodeScanFormatUnsupported: "unsupported scan format",
	ErrCodeScanStoreFailed:       "failed to store prescription scan",

	ErrCodeUserNotFound:        "user not found",
	ErrCodeUserTimezoneInvalid: "invalid timezone",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
