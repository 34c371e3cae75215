package memory

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	blocksCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rcptr",
		Name:      "blocks_created_total",
		Help:      "Control blocks created, by storage kind.",
	}, []string{"kind"})

	blocksReleased = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rcptr",
		Name:      "blocks_released_total",
		Help:      "Control blocks released after both counters reached zero, by storage kind.",
	}, []string{"kind"})

	objectsDestroyed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rcptr",
		Name:      "objects_destroyed_total",
		Help:      "Managed objects destroyed on the last strong release, by storage kind.",
	}, []string{"kind"})
)

// kindCounters holds the children of one vector, indexed by BlockKind
type kindCounters [2]prometheus.Counter

func resolveKinds(vec *prometheus.CounterVec) kindCounters {
	return kindCounters{
		KindPointer: vec.WithLabelValues(KindPointer.String()),
		KindInPlace: vec.WithLabelValues(KindInPlace.String()),
	}
}

var (
	blocksCreatedBy    = resolveKinds(blocksCreated)
	blocksReleasedBy   = resolveKinds(blocksReleased)
	objectsDestroyedBy = resolveKinds(objectsDestroyed)
)

// RegisterMetrics registers the lifecycle counters on reg
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{blocksCreated, blocksReleased, objectsDestroyed} {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "memory: registering metrics")
		}
	}
	return nil
}

// Stats is a point-in-time reading of the lifecycle counters
type Stats struct {
	BlocksCreated    int64
	BlocksReleased   int64
	ObjectsDestroyed int64
}

// LiveBlocks returns the number of blocks created but not yet released
func (s Stats) LiveBlocks() int64 {
	return s.BlocksCreated - s.BlocksReleased
}

// Sub returns the difference s - o, for measuring a window of activity
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		BlocksCreated:    s.BlocksCreated - o.BlocksCreated,
		BlocksReleased:   s.BlocksReleased - o.BlocksReleased,
		ObjectsDestroyed: s.ObjectsDestroyed - o.ObjectsDestroyed,
	}
}

// ReadStats sums the lifecycle counters over both block kinds
func ReadStats() Stats {
	p := ReadStatsFor(KindPointer)
	i := ReadStatsFor(KindInPlace)
	return Stats{
		BlocksCreated:    p.BlocksCreated + i.BlocksCreated,
		BlocksReleased:   p.BlocksReleased + i.BlocksReleased,
		ObjectsDestroyed: p.ObjectsDestroyed + i.ObjectsDestroyed,
	}
}

// ReadStatsFor reads the lifecycle counters of one block kind
func ReadStatsFor(kind BlockKind) Stats {
	return Stats{
		BlocksCreated:    counterValue(blocksCreated, kind),
		BlocksReleased:   counterValue(blocksReleased, kind),
		ObjectsDestroyed: counterValue(objectsDestroyed, kind),
	}
}

func counterValue(vec *prometheus.CounterVec, kind BlockKind) int64 {
	var m dto.Metric
	if err := vec.WithLabelValues(kind.String()).Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}
