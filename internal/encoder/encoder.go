package encoder

import (
	"encoding/base64"
	"io"
	"strings"

	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/types"
)

// Encode reads the whole payload body and returns it base64-encoded with no
// data-URI header. The body is closed if it is an io.Closer.
func Encode(p types.AudioPayload) (types.EncodedAudio, error) {
	if p.Body == nil {
		return types.EncodedAudio{}, failure.Newf(failure.EncodingFailed, "encoder", "payload %q has no body", p.DisplayName)
	}
	if c, ok := p.Body.(io.Closer); ok {
		defer c.Close()
	}

	var sb strings.Builder
	if p.Size > 0 {
		sb.Grow(base64.StdEncoding.EncodedLen(int(p.Size)))
	}
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	n, err := io.Copy(enc, p.Body)
	if err != nil {
		return types.EncodedAudio{}, failure.New(failure.EncodingFailed, "encoder", err)
	}
	if err := enc.Close(); err != nil {
		return types.EncodedAudio{}, failure.New(failure.EncodingFailed, "encoder", err)
	}
	if n == 0 {
		return types.EncodedAudio{}, failure.Newf(failure.EncodingFailed, "encoder", "payload %q is empty", p.DisplayName)
	}

	mimeType := p.MIMEType
	if mimeType == "" {
		mimeType = types.DefaultMIMEType
	}
	return types.EncodedAudio{Payload: StripEnvelope(sb.String()), MIMEType: mimeType}, nil
}

// StripEnvelope removes a leading data-URI header ("data:audio/mpeg;base64,")
// leaving only the payload characters.
func StripEnvelope(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Decode reverses Encode.
func Decode(e types.EncodedAudio) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(StripEnvelope(e.Payload))
	if err != nil {
		return nil, failure.New(failure.EncodingFailed, "encoder.decode", err)
	}
	return raw, nil
}
