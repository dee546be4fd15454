package observability

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"pointsvault/core/events"
	"pointsvault/core/types"
)

// EventMetrics counts committed events and the volumes they carry. It is an
// events.Emitter so it can sit in the node's fan-out.
type EventMetrics struct {
	events     *prometheus.CounterVec
	minted     prometheus.Counter
	collateral *prometheus.CounterVec
	staked     *prometheus.CounterVec
}

// NewEventMetrics registers the event collectors with reg.
func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points",
			Subsystem: "events",
			Name:      "total",
			Help:      "Count of committed events segmented by type.",
		}, []string{"type"}),
		minted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "points",
			Subsystem: "events",
			Name:      "partner_minted_points_total",
			Help:      "Points minted by partners against collateral.",
		}),
		collateral: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points",
			Subsystem: "events",
			Name:      "collateral_amount_total",
			Help:      "Raw collateral moved segmented by direction and asset.",
		}, []string{"direction", "asset"}),
		staked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points",
			Subsystem: "events",
			Name:      "stake_principal_total",
			Help:      "Stake principal segmented by lifecycle step.",
		}, []string{"step"}),
	}
	reg.MustRegister(m.events, m.minted, m.collateral, m.staked)
	return m
}

var _ events.Emitter = (*EventMetrics)(nil)

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	payload, ok := evt.(*types.Event)
	if !ok {
		return
	}
	switch payload.Type {
	case events.TypePartnerPointsMinted:
		m.minted.Add(attrFloat(payload, "amount"))
	case events.TypePartnerCollateralAdded:
		m.collateral.WithLabelValues("in", labelAsset(payload.Attribute("asset"))).Add(attrFloat(payload, "amount"))
	case events.TypePartnerCollateralWithdrawn:
		m.collateral.WithLabelValues("out", labelAsset(payload.Attribute("asset"))).Add(attrFloat(payload, "amount"))
	case events.TypeStakeOpened:
		m.staked.WithLabelValues("opened").Add(attrFloat(payload, "principal"))
	case events.TypeStakeRedeemed:
		m.staked.WithLabelValues("redeemed").Add(attrFloat(payload, "principal"))
	case events.TypeStakeForfeited:
		m.staked.WithLabelValues("forfeited").Add(attrFloat(payload, "principal"))
	}
}

func attrFloat(evt *types.Event, key string) float64 {
	v, err := strconv.ParseUint(evt.Attribute(key), 10, 64)
	if err != nil {
		return 0
	}
	return float64(v)
}

func labelAsset(asset string) string {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}
