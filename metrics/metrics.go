package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит счётчики путей записи ядра.
type Metrics struct {
	SelfScoresSubmitted prometheus.Counter
	RatingsSubmitted    prometheus.Counter
	VotesCast           prometheus.Counter
	VotingResets        prometheus.Counter
	PlayersRemoved      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SelfScoresSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "competition_self_scores_submitted_total",
			Help: "Number of self score submissions (including overwrites).",
		}),
		RatingsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "competition_peer_ratings_submitted_total",
			Help: "Number of peer rating submissions (including overwrites).",
		}),
		VotesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "competition_captain_votes_cast_total",
			Help: "Number of captain votes cast (including overwrites).",
		}),
		VotingResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "competition_captain_voting_resets_total",
			Help: "Number of captain voting resets.",
		}),
		PlayersRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "competition_players_removed_total",
			Help: "Number of completed player removal cascades.",
		}),
	}
}
