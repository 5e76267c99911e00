package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/internal/service/pricebook"
	pkgkafka "FxSignal/pkg/kafka"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/metrics"
	"FxSignal/pkg/util"
)

// KafkaBarsHandler consumes closed bars, keeps the price book current and
// appends them to the bar store.
type KafkaBarsHandler struct {
	topic   string
	writer  domrepo.BarWriter
	book    *pricebook.Book
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewKafkaBarsHandler(topic string, writer domrepo.BarWriter, book *pricebook.Book, m domrepo.Metrics) *KafkaBarsHandler {
	if m == nil {
		m = metrics.Nop{}
	}
	return &KafkaBarsHandler{topic: topic, writer: writer, book: book, metrics: m}
}

func (h *KafkaBarsHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, tf, time, open, high, low, close, volume};
// time is RFC3339, "2006-01-02 15:04:05" or unix seconds/millis.
type barMessage struct {
	Symbol string          `json:"symbol"`
	TF     string          `json:"tf"`
	Time   json.RawMessage `json:"time"`
	Open   float64         `json:"open"`
	High   float64         `json:"high"`
	Low    float64         `json:"low"`
	Close  float64         `json:"close"`
	Volume float64         `json:"volume"`
}

func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	bar, err := decodeBar(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	if h.book != nil && h.book.Update(pricebook.Quote{Symbol: bar.Symbol, Timeframe: bar.Timeframe, Price: bar.Close, Time: bar.Time}) {
		h.metrics.RecordLastPrice(bar.Symbol, bar.Close)
	}

	if h.writer == nil {
		return nil
	}
	start := time.Now()
	if err := h.writer.AppendBars(ctx, []models.SymbolBar{bar}); err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("append %s %s: %w", bar.Symbol, bar.Timeframe, err)
	}
	if h.l != nil {
		h.l.Debug("kafka.bars.stored",
			applogger.String("symbol", bar.Symbol),
			applogger.String("tf", bar.Timeframe),
			applogger.Duration("took", time.Since(start)))
	}
	return nil
}

func decodeBar(b []byte) (models.SymbolBar, error) {
	var m barMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return models.SymbolBar{}, fmt.Errorf("decode bar: %w", err)
	}
	m.Symbol = strings.ToUpper(strings.TrimSpace(m.Symbol))
	if len(m.Symbol) != 6 {
		return models.SymbolBar{}, fmt.Errorf("decode bar: bad symbol %q", m.Symbol)
	}
	if !domrepo.IsValidTimeframe(domrepo.Timeframe(m.TF)) {
		return models.SymbolBar{}, fmt.Errorf("decode bar: bad timeframe %q", m.TF)
	}
	raw := strings.Trim(string(m.Time), `"`)
	if ms := util.ParseIntDefault(raw, 0); ms > 1e11 {
		raw = strconv.Itoa(ms / 1000)
	}
	t, ok := util.ParseTime(raw)
	if !ok {
		return models.SymbolBar{}, fmt.Errorf("decode bar: bad time %s", m.Time)
	}
	if m.Close <= 0 {
		return models.SymbolBar{}, fmt.Errorf("decode bar: non-positive close %v", m.Close)
	}
	return models.SymbolBar{
		Symbol:    m.Symbol,
		Timeframe: m.TF,
		PriceBar:  models.PriceBar{Time: t, Open: m.Open, High: m.High, Low: m.Low, Close: m.Close, Volume: m.Volume},
	}, nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
