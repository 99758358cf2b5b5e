package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why a submission could not produce an analysis.
type Kind string

const (
	InvalidFileType       Kind = "invalid_file_type"
	FileTooLarge          Kind = "file_too_large"
	MicrophoneUnavailable Kind = "microphone_unavailable"
	EncodingFailed        Kind = "encoding_failed"
	AuthenticationFailed  Kind = "authentication_failed"
	ServiceUnavailable    Kind = "service_unavailable"
	EmptyResponse         Kind = "empty_response"
	MalformedResponse     Kind = "malformed_response"
	SchemaViolation       Kind = "schema_violation"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidFileType       = &Error{Kind: InvalidFileType}
	ErrFileTooLarge          = &Error{Kind: FileTooLarge}
	ErrMicrophoneUnavailable = &Error{Kind: MicrophoneUnavailable}
	ErrEncodingFailed        = &Error{Kind: EncodingFailed}
	ErrAuthenticationFailed  = &Error{Kind: AuthenticationFailed}
	ErrServiceUnavailable    = &Error{Kind: ServiceUnavailable}
	ErrEmptyResponse         = &Error{Kind: EmptyResponse}
	ErrMalformedResponse     = &Error{Kind: MalformedResponse}
	ErrSchemaViolation       = &Error{Kind: SchemaViolation}
)

// Error is a classified failure. Op names the stage that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New builds a classified error wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error with a formatted cause.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinels match wrapped failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsSourceKind reports whether the kind is raised before analysis begins.
func IsSourceKind(k Kind) bool {
	switch k {
	case InvalidFileType, FileTooLarge, MicrophoneUnavailable:
		return true
	}
	return false
}

// GenericAnalysisMessage is shown for every failure after analysis started.
const GenericAnalysisMessage = "Failed to analyze audio. Please ensure your API key is valid and the file is supported."

// UserMessage maps a kind to the text shown to the user.
func UserMessage(k Kind) string {
	switch k {
	case InvalidFileType:
		return "Please upload a valid audio file (MP3, WAV, etc.)"
	case FileTooLarge:
		return "File size too large. Please use a file under 20MB."
	case MicrophoneUnavailable:
		return "Could not access microphone. Please ensure permissions are granted."
	default:
		return GenericAnalysisMessage
	}
}
