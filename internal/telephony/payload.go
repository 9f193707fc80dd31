package telephony

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"gymcrm-calls/internal/calls"
)

const maxBodyBytes = 1 << 20

var (
	ErrMalformed    = errors.New("telephony: malformed payload")
	ErrUnauthorized = errors.New("telephony: unauthorized")
)

var validate = validator.New()

// Envelope is one PBX delivery before the event inside it is decoded.
//
// The PBX posts the event as a form field "json" next to its credentials
// (vpbx_api_key, sign). JSON bodies carrying the same fields, or the event
// object itself at the top level, are accepted as well.
type Envelope struct {
	// Payload is the event JSON exactly as received; signatures cover these bytes.
	Payload []byte
	APIKey  string
	Sign    string
}

type jsonEnvelope struct {
	JSON   *string `json:"json"`
	APIKey string  `json:"vpbx_api_key"`
	Sign   string  `json:"sign"`
}

// ReadEnvelope consumes r.Body and extracts the event payload.
func ReadEnvelope(r *http.Request) (Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: read body: %v", ErrMalformed, err)
	}
	if len(body) > maxBodyBytes {
		return Envelope{}, fmt.Errorf("%w: body too large", ErrMalformed)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var env Envelope
	switch mediaType {
	case "application/x-www-form-urlencoded":
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: form: %v", ErrMalformed, err)
		}
		env = Envelope{Payload: []byte(vals.Get("json")), APIKey: vals.Get("vpbx_api_key"), Sign: vals.Get("sign")}
	case "multipart/form-data":
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return Envelope{}, fmt.Errorf("%w: multipart: %v", ErrMalformed, err)
		}
		env = Envelope{
			Payload: []byte(r.PostFormValue("json")),
			APIKey:  r.PostFormValue("vpbx_api_key"),
			Sign:    r.PostFormValue("sign"),
		}
	default:
		var w jsonEnvelope
		if err := json.Unmarshal(body, &w); err != nil {
			return Envelope{}, fmt.Errorf("%w: json: %v", ErrMalformed, err)
		}
		env = Envelope{Payload: body, APIKey: w.APIKey, Sign: w.Sign}
		if w.JSON != nil {
			env.Payload = []byte(*w.JSON)
		}
	}

	if len(bytes.TrimSpace(env.Payload)) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty event", ErrMalformed)
	}
	return env, nil
}

type party struct {
	Number     string `json:"number"`
	Extension  string `json:"extension"`
	LineNumber string `json:"line_number"`
}

// StatePayload is the PBX call-state event.
type StatePayload struct {
	EntryID   string `json:"entry_id" validate:"required"`
	CallID    string `json:"call_id"`
	Timestamp int64  `json:"timestamp" validate:"required,gt=0"`
	Seq       *int64 `json:"seq" validate:"required,gte=0"`
	CallState string `json:"call_state" validate:"required"`
	From      party  `json:"from"`
	To        party  `json:"to"`
}

// SummaryPayload is the PBX call-summary event. entry_result is 1 for an
// answered call.
type SummaryPayload struct {
	EntryID     string `json:"entry_id" validate:"required"`
	EntryResult int    `json:"entry_result"`
	CreateTime  int64  `json:"create_time" validate:"required,gt=0"`
	EndTime     int64  `json:"end_time" validate:"required,gt=0"`
}

func DecodeState(payload []byte) (calls.StateEvent, error) {
	var p StatePayload
	if err := decodeAndValidate(payload, &p); err != nil {
		return calls.StateEvent{}, err
	}
	ev := calls.StateEvent{
		ExternalID:    p.EntryID,
		Seq:           *p.Seq,
		From:          p.From.Number,
		FromExtension: p.From.Extension,
		To:            p.To.Number,
		ToExtension:   p.To.Extension,
		ToLineNumber:  p.To.LineNumber,
		OccurredAt:    time.Unix(p.Timestamp, 0).UTC(),
	}
	// Internal calls are dropped downstream whatever state they report.
	if ev.Internal() {
		return ev, nil
	}
	st, ok := calls.ParseStatus(p.CallState)
	if !ok {
		return calls.StateEvent{}, fmt.Errorf("%w: unknown call_state %q", ErrMalformed, p.CallState)
	}
	ev.State = st
	return ev, nil
}

func DecodeSummary(payload []byte) (calls.SummaryEvent, error) {
	var p SummaryPayload
	if err := decodeAndValidate(payload, &p); err != nil {
		return calls.SummaryEvent{}, err
	}
	return calls.SummaryEvent{
		ExternalID: p.EntryID,
		Answered:   p.EntryResult == 1,
		StartedAt:  time.Unix(p.CreateTime, 0).UTC(),
		EndedAt:    time.Unix(p.EndTime, 0).UTC(),
	}, nil
}

func decodeAndValidate(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
