package errors

import (
	"encoding/xml"
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// envelope is the S3 REST error document:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<Error>
//	    <Code>NoSuchKey</Code>
//	    <Message>The resource you requested does not exist</Message>
//	</Error>
type envelope struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// RemoteMessage extracts the human-readable message from a backend error.
// It checks, in order, a smithy.APIError anywhere in the chain and an XML
// error envelope embedded in the error text. Any decode failure falls back
// to the raw error text.
func RemoteMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.ErrorMessage()); msg != "" {
			return msg
		}
	}

	raw := err.Error()
	if env, ok := decodeEnvelope(raw); ok && env.Message != "" {
		return env.Message
	}

	return raw
}

// RemoteCode extracts the backend error code, or "" when none is present.
func RemoteCode(err error) string {
	if err == nil {
		return ""
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}

	if env, ok := decodeEnvelope(err.Error()); ok {
		return env.Code
	}

	return ""
}

// decodeEnvelope finds an XML error document inside text and decodes it.
func decodeEnvelope(text string) (envelope, bool) {
	start := strings.Index(text, "<?xml")
	if start < 0 {
		start = strings.Index(text, "<Error>")
	}
	if start < 0 {
		return envelope{}, false
	}

	var env envelope
	if err := xml.Unmarshal([]byte(text[start:]), &env); err != nil {
		return envelope{}, false
	}
	env.Code = strings.TrimSpace(env.Code)
	env.Message = strings.TrimSpace(env.Message)

	return env, true
}
