package metrics

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itm/eventstore/pkg/codec"
	"github.com/itm/eventstore/pkg/eventstore"
	"github.com/itm/eventstore/pkg/serde"
)

func TestCollector_WithStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollector(reg)

	cfg := eventstore.DefaultConfig()
	cfg.BasePath = filepath.Join(t.TempDir(), "events")
	cfg.DataBlockSize = 32
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Metrics = collector
	serde.Register(cfg.Serializers, serde.StringCodec())

	store, err := eventstore.Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreAt("A", 10))
	require.NoError(t, store.StoreAt("BB", 5))
	assert.Error(t, store.StoreAt("this payload does not fit in 32 bytes", 11))
	assert.Error(t, store.StoreAt(42, 12))

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.appendsTotal))
	assert.Equal(t, float64(2*codec.EntryOverhead+3), testutil.ToFloat64(collector.appendBytesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.monotonicViolationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.writeErrorsTotal.WithLabelValues("too_large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.writeErrorsTotal.WithLabelValues("serialize")))

	first, err := store.ReadAll()
	require.NoError(t, err)
	second, err := store.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.iteratorsOpen))

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.iteratorsOpen))
	require.NoError(t, second.Close())
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.iteratorsOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.iteratorsOpenedTotal))

	require.NoError(t, collector.UpdateStoreStats(store))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.records))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.payloadBytes))

	assert.Equal(t, 1, testutil.CollectAndCount(collector.appendDuration))
}

func TestNewCollector_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	assert.Panics(t, func() { NewCollector(reg) })
}
