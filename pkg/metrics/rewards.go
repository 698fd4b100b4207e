package metrics

import "github.com/prometheus/client_golang/prometheus"

// RewardMetrics counts XP movements and level changes.
type RewardMetrics struct {
	xpAwarded    prometheus.Counter
	levelUps     *prometheus.CounterVec
	unlocks      prometheus.Counter
	awardFailure prometheus.Counter
}

func NewRewardMetrics(reg prometheus.Registerer) *RewardMetrics {
	if reg == nil {
		return &RewardMetrics{}
	}
	m := &RewardMetrics{
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "Total XP credited to users.",
		}),
		levelUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Level increases, labelled by the level reached.",
		}, []string{"level"}),
		unlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_unlocked_total",
			Help:      "Achievements unlocked.",
		}),
		awardFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_award_failures_total",
			Help:      "XP awards that failed to persist.",
		}),
	}
	reg.MustRegister(m.xpAwarded, m.levelUps, m.unlocks, m.awardFailure)
	return m
}

func (m *RewardMetrics) AddXP(amount int64) {
	if m == nil || m.xpAwarded == nil || amount <= 0 {
		return
	}
	m.xpAwarded.Add(float64(amount))
}

func (m *RewardMetrics) IncLevelUp(level string) {
	if m == nil || m.levelUps == nil {
		return
	}
	m.levelUps.WithLabelValues(normalizeLabel(level)).Inc()
}

func (m *RewardMetrics) AddUnlocks(n int) {
	if m == nil || m.unlocks == nil || n <= 0 {
		return
	}
	m.unlocks.Add(float64(n))
}

func (m *RewardMetrics) IncAwardFailure() {
	if m == nil || m.awardFailure == nil {
		return
	}
	m.awardFailure.Inc()
}
