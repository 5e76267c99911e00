package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/internal/services/meta"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/metrics"
)

const stageMeta = "meta"

// Ranker is the part of meta.Engine the use case drives.
type Ranker interface {
	Rank(ctx context.Context, rec models.FlatFeatureRecord, signals []models.SignalDecision) (*models.MetaSignal, error)
}

// MetaRanking turns a signals document into a currency-strength ranking and
// stores it. Failures here never touch the signals already written.
type MetaRanking struct {
	ranker  Ranker
	reader  domrepo.OutputReader
	sink    domrepo.OutputSink
	reports domrepo.ReportStore
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

// NewMetaRanking accepts a nil ranker when no currency models were loaded;
// Run then reports ErrMissingArtifact.
func NewMetaRanking(ranker Ranker, reader domrepo.OutputReader, sink domrepo.OutputSink) *MetaRanking {
	return &MetaRanking{ranker: ranker, reader: reader, sink: sink, metrics: metrics.Nop{}, now: time.Now}
}

func (uc *MetaRanking) SetLogger(l *applogger.Logger) { uc.l = l }

func (uc *MetaRanking) SetMetrics(m domrepo.Metrics) {
	if m != nil {
		uc.metrics = m
	}
}

func (uc *MetaRanking) SetStores(reports domrepo.ReportStore, pub domrepo.Publisher) {
	uc.reports, uc.pub = reports, pub
}

// RunLatest ranks the last signals.json written by the inference cycle.
func (uc *MetaRanking) RunLatest(ctx context.Context) (*models.MetaSignal, error) {
	doc, err := uc.reader.ReadSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}
	return uc.Run(ctx, doc)
}

func (uc *MetaRanking) Run(ctx context.Context, doc models.SignalsDocument) (*models.MetaSignal, error) {
	start := uc.now()
	if uc.ranker == nil {
		uc.metrics.RecordUnit(stageMeta, "missing_artifact")
		return nil, fmt.Errorf("%w: no currency models loaded", models.ErrMissingArtifact)
	}

	rec := meta.Flatten(doc.Signals)
	ms, err := uc.ranker.Rank(ctx, rec, doc.Signals)
	if err != nil {
		uc.metrics.RecordUnit(stageMeta, "error")
		uc.metrics.RecordError("meta_rank")
		if uc.l != nil {
			uc.l.Error("meta.rank", applogger.Int("features", len(rec)), applogger.Error(err))
		}
		return nil, err
	}
	ms.RunID = uuid.NewString()
	if ms.GeneratedAt.IsZero() {
		ms.GeneratedAt = uc.now().UTC()
	}

	if uc.sink != nil {
		if err := uc.sink.WriteMetaSignal(ctx, *ms); err != nil {
			uc.metrics.RecordError("write_meta")
			return nil, fmt.Errorf("write meta signal: %w", err)
		}
	}
	if uc.reports != nil {
		if err := uc.reports.SaveMetaSignal(ctx, *ms); err != nil {
			uc.metrics.RecordError("save_meta")
			if uc.l != nil {
				uc.l.Error("meta.save", applogger.String("run_id", ms.RunID), applogger.Error(err))
			}
		}
	}
	if uc.pub != nil {
		if err := uc.pub.PublishMetaSignal(ctx, *ms); err != nil {
			uc.metrics.RecordError("publish_meta")
			if uc.l != nil {
				uc.l.Error("meta.publish", applogger.String("run_id", ms.RunID), applogger.Error(err))
			}
		}
	}

	uc.metrics.RecordUnit(stageMeta, "ok")
	uc.metrics.RecordCycle(stageMeta, uc.now().Sub(start).Seconds())
	if uc.l != nil {
		uc.l.Info("meta.ranked",
			applogger.String("run_id", ms.RunID),
			applogger.String("pair", ms.RecommendedPair),
			applogger.Bool("levels", ms.TradeLevels != nil))
	}
	return ms, nil
}
