package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "LOGIN_SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrParticipantOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrInstructorOnly  ErrCode = "INSTRUCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Session engine ────────────────────────────────────────────────
	ErrInvalidSessionState   ErrCode = "INVALID_SESSION_STATE"
	ErrSessionAlreadyExists  ErrCode = "SESSION_ALREADY_EXISTS"
	ErrSessionSubmitted      ErrCode = "SESSION_ALREADY_SUBMITTED"
	ErrSessionExpired        ErrCode = "SESSION_EXPIRED"
	ErrAssessmentUnavailable ErrCode = "ASSESSMENT_NOT_AVAILABLE"
	ErrVersionConflict       ErrCode = "VERSION_CONFLICT"

	// ─── Scoring ───────────────────────────────────────────────────────
	ErrJudgeUnavailable ErrCode = "JUDGE_UNAVAILABLE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Username or password is incorrect."
	case ErrSessionInvalidated:
		return "Your login session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrParticipantOnly:
		return "This resource is restricted to participants."
	case ErrInstructorOnly:
		return "This resource is restricted to instructors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."

	// ─── Session engine ────────────────────────────────────────────────
	case ErrInvalidSessionState:
		return "This action is not valid for the session's current state."
	case ErrSessionAlreadyExists:
		return "An attempt for this assessment is already in progress."
	case ErrSessionSubmitted:
		return "This session has already been submitted."
	case ErrSessionExpired:
		return "Time has expired for this session."
	case ErrAssessmentUnavailable:
		return "This assessment is not currently available."
	case ErrVersionConflict:
		return "The session changed while processing your request. Please retry."

	// ─── Scoring ───────────────────────────────────────────────────────
	case ErrJudgeUnavailable:
		return "Scoring is temporarily unavailable. Your submission is safe and will be scored shortly."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down and try again."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
