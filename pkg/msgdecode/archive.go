package msgdecode

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/archive"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/options"
)

// LineResult is the outcome of one archive line. Result is only set for
// SQLARCH records.
type LineResult struct {
	Line   int
	Kind   archive.Kind
	ID     string
	Result *Result
	Err    error
}

// Summary counts archive lines per outcome.
type Summary struct {
	Lines         int `json:"lines"`
	Full          int `json:"full"`
	Partial       int `json:"partial"`
	SchemaMissing int `json:"schema_missing"`
	Skipped       int `json:"skipped"`
	Errors        int `json:"errors"`
}

func (s *Summary) add(l LineResult) {
	s.Lines++
	switch {
	case l.Err != nil:
		s.Errors++
	case l.Result == nil:
		s.Skipped++
	case l.Result.Outcome == Full:
		s.Full++
	case l.Result.Outcome == Partial:
		s.Partial++
	case l.Result.Outcome == SchemaMissing:
		s.SchemaMissing++
	}
}

// DecodeArchive decodes every SQLARCH record of an archive stream. ids maps
// the record identifier to a message number; an identifier it does not know
// is reported as a missing schema. Other record kinds are skipped. Per-line
// failures are reported in the line results; the returned error is only set
// when reading stopped early.
func (d *Decoder) DecodeArchive(ctx context.Context, r io.Reader, ids archive.Numberer, workers int) ([]LineResult, Summary, error) {
	log := options.Logger(ctx)
	lines, err := archive.Process(ctx, r, workers, func(ctx context.Context, rec archive.Record) (*Result, error) {
		if rec.Kind != archive.KindSQLArch {
			return nil, nil
		}
		body, err := rec.SQLArch()
		if err != nil {
			return nil, err
		}
		payload, err := body.Payload()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", body.ID, err)
		}
		number, ok := ids.Number(body.ID)
		if !ok {
			res := Result{
				Name:      body.ID,
				RawHex:    fmt.Sprintf("%X", payload),
				ByteCount: len(payload),
				Outcome:   SchemaMissing,
			}
			return &res, nil
		}
		res, err := d.Decode(ctx, number, payload)
		if err != nil {
			return nil, err
		}
		return &res, nil
	})

	var summary Summary
	out := make([]LineResult, len(lines))
	for i, l := range lines {
		lr := LineResult{Line: l.Number, Kind: l.Record.Kind, Result: l.Value, Err: l.Err}
		if lr.Kind == archive.KindSQLArch {
			if body, berr := l.Record.SQLArch(); berr == nil {
				lr.ID = body.ID
			}
		}
		if lr.Err != nil {
			log.WithFields(logrus.Fields{"line": lr.Line, "kind": lr.Kind}).WithError(lr.Err).Warn("archive line not decoded")
		}
		summary.add(lr)
		out[i] = lr
	}
	log.WithFields(logrus.Fields{
		"lines":          summary.Lines,
		"full":           summary.Full,
		"partial":        summary.Partial,
		"schema_missing": summary.SchemaMissing,
		"errors":         summary.Errors,
	}).Info("archive decoded")
	return out, summary, err
}
