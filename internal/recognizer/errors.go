package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/openai/openai-go/v3"

	"speechcmd/internal/audio"
	"speechcmd/pkg/stt"
)

type ErrorCode int

const (
	ErrorAudio ErrorCode = iota + 1
	ErrorClient
	ErrorInsufficientPermissions
	ErrorNetwork
	ErrorNetworkTimeout
	ErrorNoMatch
	ErrorRecognizerBusy
	ErrorServer
	ErrorSpeechTimeout
	ErrorLanguageNotSupported
	ErrorLanguageUnavailable
	ErrorServerDisconnected
	ErrorTooManyRequests
)

var errorText = map[ErrorCode]string{
	ErrorAudio:                   "Audio recording error",
	ErrorClient:                  "Other client side errors",
	ErrorInsufficientPermissions: "Insufficient permissions",
	ErrorNetwork:                 "Network error",
	ErrorNetworkTimeout:          "Network operation timed out",
	ErrorNoMatch:                 "No recognition result matched",
	ErrorRecognizerBusy:          "RecognitionService busy",
	ErrorServer:                  "Server sends error status",
	ErrorSpeechTimeout:           "No speech input",
	ErrorLanguageNotSupported:    "Language not supported",
	ErrorLanguageUnavailable:     "Language unavailable",
	ErrorServerDisconnected:      "Server disconnected",
	ErrorTooManyRequests:         "Too many requests",
}

// String is the human readable description of the code.
func (c ErrorCode) String() string {
	if s, ok := errorText[c]; ok {
		return s
	}
	return "Unknown speech error"
}

// Error is a failed recognition cycle.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "recognizer: " + e.Code.String()
	}
	return fmt.Sprintf("recognizer: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify wraps err into an *Error, picking the code from what went wrong.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return &Error{Code: codeOf(err), Err: err}
}

// CodeOf returns the code Classify would assign, 0 for nil.
func CodeOf(err error) ErrorCode {
	if e := Classify(err); e != nil {
		return e.Code
	}
	return 0
}

func codeOf(err error) ErrorCode {
	var (
		apiErr *openai.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, audio.ErrNoSpeech), errors.Is(err, stt.ErrNoAudio):
		return ErrorSpeechTimeout
	case errors.Is(err, stt.ErrNoLanguage):
		return ErrorLanguageNotSupported
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorNetworkTimeout
	case errors.As(err, &apiErr):
		return httpCode(apiErr.StatusCode)
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ErrorNetworkTimeout
		}
		return ErrorNetwork
	default:
		return ErrorClient
	}
}

func httpCode(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorInsufficientPermissions
	case status == http.StatusTooManyRequests:
		return ErrorTooManyRequests
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return ErrorServerDisconnected
	case status >= 500:
		return ErrorServer
	default:
		return ErrorClient
	}
}
