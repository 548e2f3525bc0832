package ingest

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscore/internal/fetcher"
	"github.com/sells-group/leadscore/internal/model"
)

// LeadInserter is the storage capability the ingestor needs.
type LeadInserter interface {
	InsertLeads(ctx context.Context, leads []model.Lead) (model.InsertResult, error)
}

// Ingestor streams a CSV payload through ValidateRecord and bulk-inserts the
// accepted leads.
type Ingestor struct {
	store LeadInserter
	opts  fetcher.CSVOptions
}

// NewIngestor creates an Ingestor writing to store.
func NewIngestor(store LeadInserter) *Ingestor {
	return &Ingestor{store: store}
}

// WithCSVOptions overrides the parser options (delimiter, comment, lazy quotes).
func (in *Ingestor) WithCSVOptions(opts fetcher.CSVOptions) *Ingestor {
	in.opts = opts
	return in
}

// Ingest parses r, validates every row and inserts the accepted leads in one
// best-effort bulk insert. Row-level problems are reported in the result; only
// an unreadable stream or a storage failure returns an error.
func (in *Ingestor) Ingest(ctx context.Context, r io.Reader) (*model.IngestResult, error) {
	log := zap.L().With(zap.String("component", "ingest"))

	result := &model.IngestResult{ErrorDetails: []model.IngestError{}}
	var accepted []model.Lead

	rowCh, errCh := fetcher.StreamCSV(ctx, r, in.opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for rec := range rowCh {
			result.RowCount++
			lead, err := in.route(rec)
			if err != nil {
				result.ErrorDetails = append(result.ErrorDetails, model.IngestError{
					Row:     rec.Line,
					Message: rejectMessage(err),
					Data:    dataOf(rec),
				})
				continue
			}
			accepted = append(accepted, lead)
		}
		for err := range errCh {
			if err != nil {
				return err
			}
		}
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		if eris.Is(err, model.ErrStreamParse) {
			return nil, err
		}
		return nil, eris.Wrap(err, "ingest: read stream")
	}

	result.AcceptedCount = len(accepted)
	result.Errors = len(result.ErrorDetails)

	if len(accepted) > 0 {
		ins, err := in.store.InsertLeads(ctx, accepted)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: insert leads")
		}
		result.InsertedCount = ins.Inserted()
		result.Duplicates = ins.Duplicates()
	}

	log.Info("csv ingested",
		zap.Int("rows", result.RowCount),
		zap.Int("accepted", result.AcceptedCount),
		zap.Int("inserted", result.InsertedCount),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

func (in *Ingestor) route(rec fetcher.Record) (model.Lead, error) {
	if rec.Err != nil {
		return model.Lead{}, &RowError{
			Row:     rec.Line,
			Kind:    RejectMalformedRow,
			Message: rec.Err.Error(),
		}
	}
	return ValidateRecord(rec.Line, rec.Fields)
}

func rejectMessage(err error) string {
	var re *RowError
	if eris.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

func dataOf(rec fetcher.Record) map[string]string {
	if rec.Fields == nil {
		return map[string]string{}
	}
	return rec.Fields
}
