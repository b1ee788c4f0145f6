package archive

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const maxLineSize = 4 << 20

// Line is the outcome of one non-empty archive line.
type Line[T any] struct {
	Number int
	Record Record
	Value  T
	Err    error
}

// Handler processes one classified record.
type Handler[T any] func(context.Context, Record) (T, error)

// Process reads newline-delimited records from r and runs fn on each of
// them with at most workers concurrent calls (all cores when workers <= 0).
// Lines that fail to parse or to process are returned with Err set; only a
// read error or a cancelled context stops the batch. Results keep the input
// line order.
func Process[T any](ctx context.Context, r io.Reader, workers int, fn Handler[T]) ([]Line[T], error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var pending []*Line[T]
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	number := 0
	for scanner.Scan() {
		number++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		line := &Line[T]{Number: number}
		data := append([]byte(nil), text...)
		pending = append(pending, line)
		g.Go(func() error {
			rec, err := ParseLine(data)
			rec.Line = line.Number
			line.Record = rec
			if err != nil {
				line.Err = err
				return nil
			}
			line.Value, line.Err = fn(gctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Line[T], len(pending))
	for i, l := range pending {
		out[i] = *l
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}
