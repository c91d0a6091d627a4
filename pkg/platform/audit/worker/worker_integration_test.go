//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"derisk/internal/platform/config"
	"derisk/internal/platform/kafka"
	"derisk/pkg/platform/audit"
	"derisk/pkg/platform/audit/store/postgres"
	"derisk/pkg/testutil/containers"
)

const relayTopic = "derisk.settlement.it"

// RelaySuite moves outbox rows from Postgres onto a Redpanda topic.
type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	outbox   *postgres.Store
	producer *kafka.Producer
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.outbox = postgres.New(s.postgres.DB)

	var err error
	s.producer, err = kafka.NewProducer(config.KafkaConfig{Brokers: s.redpanda.Brokers, Topic: relayTopic},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.Require().NoError(s.producer.EnsureTopic(context.Background(), 1, 1))
	s.Require().NoError(s.producer.EnsureTopic(context.Background(), 1, 1), "existing topic is not an error")
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *RelaySuite) TestRelayDeliversOnceInOrder() {
	ctx := context.Background()
	score := uint8(70)
	s.Require().NoError(s.outbox.Append(ctx, audit.Event{
		Action: string(audit.EventScoreAttested), Subject: "aave-v3", Score: &score, Timestamp: time.Now(),
	}))
	s.Require().NoError(s.outbox.Append(ctx, audit.Event{
		Action: string(audit.EventPolicyClaimed), Subject: "aave-v3", PolicyID: 1, Amount: "1000", Timestamp: time.Now(),
	}))

	w := NewWorker(s.outbox, s.producer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := w.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = w.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Zero(n, "published rows are not relayed again")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(relayTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var actions []string
	deadline, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	for len(actions) < 2 {
		fetches := consumer.PollFetches(deadline)
		s.Require().NoError(deadline.Err(), "timed out waiting for relayed records")
		fetches.EachRecord(func(r *kgo.Record) {
			s.Equal("aave-v3", string(r.Key))
			var payload struct {
				Action   string `json:"action"`
				Category string `json:"category"`
			}
			s.Require().NoError(json.Unmarshal(r.Value, &payload))
			s.Equal(string(audit.CategorySettlement), payload.Category)
			actions = append(actions, payload.Action)
		})
	}
	s.Equal([]string{string(audit.EventScoreAttested), string(audit.EventPolicyClaimed)}, actions)

	events, err := s.outbox.ListBySubject(ctx, "aave-v3")
	s.Require().NoError(err)
	s.Len(events, 2)
}
