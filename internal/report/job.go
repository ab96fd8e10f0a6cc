package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/db"
	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/errs"
)

// Report sinks, used as metric labels
const (
	SinkCSV   = "csv"
	SinkNATS  = "nats"
	SinkStore = "postgres"
)

// Store persists reports
type Store interface {
	Save(ctx context.Context, rec *db.ReportRecord) error
}

// Job generates one report and delivers it to every configured sink.
// Publisher and Store may be nil.
type Job struct {
	Generator *Generator
	Writer    *Writer
	Publisher *Publisher
	Store     Store
}

// Request selects the report to build
type Request struct {
	Kind    string
	Tickers []string
	Weights []float64
}

// Result describes a delivered report
type Result struct {
	Report Report
	Path   string
	Sinks  []string
}

// Run builds the report and delivers it. The CSV file is always written;
// publish and store failures are returned after the file exists.
func (j *Job) Run(ctx context.Context, req Request) (*Result, error) {
	r, err := j.build(ctx, req)
	if err != nil {
		metrics.RecordError("report_build", "report")
		return nil, err
	}

	res := &Result{Report: r}

	if j.Writer != nil {
		path, err := j.Writer.Write(r)
		if err != nil {
			return nil, err
		}
		res.Path = path
		res.Sinks = append(res.Sinks, SinkCSV)
		metrics.RecordReport(r.Kind(), SinkCSV)
		log.Info().Str("kind", r.Kind()).Str("path", path).Msg("Daily report saved")
	}

	if j.Publisher != nil {
		if err := j.Publisher.Publish(ctx, r); err != nil {
			return res, fmt.Errorf("publish %s report: %w", r.Kind(), err)
		}
		res.Sinks = append(res.Sinks, SinkNATS)
		metrics.RecordReport(r.Kind(), SinkNATS)
	}

	if j.Store != nil {
		if err := j.save(ctx, r); err != nil {
			return res, fmt.Errorf("store %s report: %w", r.Kind(), err)
		}
		res.Sinks = append(res.Sinks, SinkStore)
		metrics.RecordReport(r.Kind(), SinkStore)
	}

	return res, nil
}

func (j *Job) build(ctx context.Context, req Request) (Report, error) {
	switch req.Kind {
	case KindAsset, "":
		ticker := DefaultTicker
		if len(req.Tickers) > 0 {
			ticker = req.Tickers[0]
		}
		r, err := j.Generator.Asset(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return r, nil
	case KindPortfolio:
		r, err := j.Generator.Portfolio(ctx, req.Tickers, req.Weights)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, errs.Config("report.Job", "unknown report kind %q (expected asset or portfolio)", req.Kind)
	}
}

func (j *Job) save(ctx context.Context, r Report) error {
	date, err := time.Parse(market.DateLayout, r.ReportDate())
	if err != nil {
		return fmt.Errorf("invalid report date %q: %w", r.ReportDate(), err)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return j.Store.Save(ctx, &db.ReportRecord{
		Kind:    r.Kind(),
		Date:    date,
		Subject: r.Subject(),
		Payload: payload,
	})
}
