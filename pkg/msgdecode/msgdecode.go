package msgdecode

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/actionset"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/decoder"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/options"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/schema"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/timestamp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome classifies a decode call.
type Outcome int

const (
	Full Outcome = iota + 1
	Partial
	SchemaMissing
)

func (o Outcome) String() string {
	switch o {
	case Full:
		return "full"
	case Partial:
		return "partial"
	case SchemaMissing:
		return "schema_missing"
	default:
		return "none"
	}
}

// Result captures the outcome of Decode.
type Result struct {
	Number    int
	Name      string
	RawHex    string
	ByteCount int
	Outcome   Outcome
	Message   *decoder.Message
	Timestamp *time.Time
	Actions   *actionset.Result
	Warnings  []string
}

// Report describes the outcome for humans.
func (r Result) Report() string {
	switch r.Outcome {
	case Full:
		return "fully decoded"
	case Partial:
		report := fmt.Sprintf("partially decoded (%d fields failed", len(r.Message.Failures))
		if skipped := r.skippedSelectors(); skipped > 0 {
			report += fmt.Sprintf(", %d selectors skipped", skipped)
		}
		return report + ")"
	case SchemaMissing:
		return "schema missing"
	default:
		return "not decoded"
	}
}

func (r Result) skippedSelectors() int {
	n := 0
	for _, err := range r.Message.Errors {
		var se *decoder.SelectorError
		if errors.As(err, &se) {
			n++
		}
	}
	return n
}

type resultJSON struct {
	Message   int               `json:"message"`
	Name      string            `json:"name,omitempty"`
	Outcome   string            `json:"outcome"`
	Report    string            `json:"report"`
	ByteCount int               `json:"byte_count"`
	RawHex    string            `json:"raw_hex,omitempty"`
	Bits      int               `json:"bits_decoded,omitempty"`
	Fields    decoder.Fields    `json:"fields,omitempty"`
	Failures  []string          `json:"failures,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Actions   *actionset.Result `json:"actions,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

func (r Result) toJSON() resultJSON {
	out := resultJSON{
		Message:   r.Number,
		Name:      r.Name,
		Outcome:   r.Outcome.String(),
		Report:    r.Report(),
		ByteCount: r.ByteCount,
		RawHex:    r.RawHex,
		Actions:   r.Actions,
		Warnings:  r.Warnings,
	}
	if r.Message != nil {
		out.Bits = r.Message.Cursor
		out.Fields = r.Message.Fields()
		out.Failures = r.Message.Failures
		for _, err := range r.Message.Errors {
			out.Errors = append(out.Errors, err.Error())
		}
	}
	if r.Timestamp != nil {
		out.Timestamp = r.Timestamp.Format(TimestampLayout)
	}
	return out
}

// TimestampLayout renders decoded timestamps without zone information.
const TimestampLayout = "2006-01-02T15:04:05"

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}

// String renders a human-readable representation of the result.
func (r Result) String() string {
	data, err := json.MarshalIndent(r.toJSON(), "", "  ")
	if err != nil {
		return fmt.Sprintf("message: %d bytes:%d raw:%s (marshal error: %v)", r.Number, r.ByteCount, r.RawHex, err)
	}
	return string(data)
}

// Decoder decodes payloads with the schemas of a registry.
type Decoder struct {
	registry schema.Registry
	opts     Options
}

// New returns a Decoder. The registry is only read.
func New(registry schema.Registry, opts Options) *Decoder {
	return &Decoder{registry: registry, opts: opts}
}

// DecodeHex decodes a payload written as whitespace separated hex bytes.
func (d *Decoder) DecodeHex(ctx context.Context, number int, hex string) (Result, error) {
	raw, err := options.ParsePayloadHex(hex)
	if err != nil {
		return Result{}, err
	}
	return d.Decode(ctx, number, raw)
}

// Decode decodes raw as message number. A number without schema yields a
// SchemaMissing result and no error; a schema that cannot be loaded is an
// error.
func (d *Decoder) Decode(ctx context.Context, number int, raw []byte) (Result, error) {
	log := options.Logger(ctx).WithField("message", number)
	result := Result{
		Number:    number,
		RawHex:    fmt.Sprintf("%X", raw),
		ByteCount: len(raw),
	}
	s, err := d.registry.Lookup(number)
	if errors.Is(err, schema.ErrNotFound) {
		result.Outcome = SchemaMissing
		log.Debug("no schema for message")
		return result, nil
	}
	if err != nil {
		return result, err
	}

	msg := decoder.Decode(s, raw)
	result.Name = s.Name
	result.Message = msg
	result.Outcome = Full
	if !msg.Complete() {
		result.Outcome = Partial
	}
	d.decodeTimestamp(&result)
	d.decodeActions(&result)

	log.WithFields(logrus.Fields{
		"name":     s.Name,
		"outcome":  result.Outcome.String(),
		"bits":     msg.Cursor,
		"failures": len(msg.Failures),
	}).Debug("message decoded")
	return result, nil
}

func (d *Decoder) decodeTimestamp(r *Result) {
	fields := d.opts.Timestamp
	if fields.Empty() {
		return
	}
	ts, err := timestamp.FromSource(r.Message, fields)
	if err == nil {
		r.Timestamp = &ts
		return
	}
	// Messages that carry none of the fields simply have no timestamp.
	for _, name := range []string{fields.Time, fields.Offset, fields.Decade, fields.Day} {
		if _, ok := r.Message.Get(name); ok || r.Message.Failed(name) {
			r.Warnings = append(r.Warnings, err.Error())
			return
		}
	}
}

func (d *Decoder) decodeActions(r *Result) {
	field := d.opts.ActionSetField
	if d.opts.ActionTable == nil || field == "" {
		return
	}
	if r.Message.Failed(field) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("action set %s failed to decode", field))
		return
	}
	v, ok := r.Message.Get(field)
	if !ok {
		return
	}
	bitfield, ok := v.(decoder.BitString)
	if !ok {
		r.Warnings = append(r.Warnings, fmt.Sprintf("action set %s is %T, not a bitset", field, v))
		return
	}
	res := d.opts.ActionTable.Decode(string(bitfield))
	r.Actions = &res
	if len(res.Undecoded) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("action set bits %v have no table entry", res.Undecoded))
	}
	if len(res.OutOfRange) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("action table bits %v lie beyond the %d-bit field", res.OutOfRange, len(bitfield)))
	}
}
