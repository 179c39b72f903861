package ledger

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type LedgerSuite struct {
	suite.Suite

	container *pgContainer.PostgresContainer
	ledger    *Ledger
}

func TestLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed ledger suite in -short mode")
	}
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	container, err := pgContainer.Run(ctx,
		"postgres:17",
		pgContainer.WithDatabase("ledger"),
		pgContainer.WithUsername("user"),
		pgContainer.WithPassword("pass"),
		pgContainer.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	l, err := Open(ctx, Config{DSN: dsn, RetentionWindow: time.Millisecond, SweepInterval: time.Hour})
	s.Require().NoError(err)
	s.ledger = l
}

func (s *LedgerSuite) TearDownSuite() {
	if s.ledger != nil {
		s.ledger.Close()
	}
	if s.container != nil {
		if err := testcontainers.TerminateContainer(s.container); err != nil {
			log.Printf("failed to terminate postgres container: %s", err)
		}
	}
}

func (s *LedgerSuite) TestRecordDispatchAndOutcome() {
	ctx := context.Background()
	ws := uuid.New()

	require.NoError(s.T(), s.ledger.RecordDispatch(ctx, "w1", ws, "create"))

	inFlight, err := s.ledger.InFlightAtStartup(ctx)
	require.NoError(s.T(), err)
	require.Contains(s.T(), inFlight, "w1")

	require.NoError(s.T(), s.ledger.RecordOutcome(ctx, "w1", true))

	inFlight, err = s.ledger.InFlightAtStartup(ctx)
	require.NoError(s.T(), err)
	require.NotContains(s.T(), inFlight, "w1")
}

func (s *LedgerSuite) TestSweepPurgesFinishedPastRetention() {
	ctx := context.Background()
	ws := uuid.New()

	require.NoError(s.T(), s.ledger.RecordDispatch(ctx, "w2", ws, "delete"))
	require.NoError(s.T(), s.ledger.RecordOutcome(ctx, "w2", true))

	time.Sleep(5 * time.Millisecond) // past the 1ms retention window configured above

	require.NoError(s.T(), s.ledger.sweepOnce(ctx))

	var count int
	row := s.ledger.db.QueryRowContext(ctx, `SELECT count(*) FROM dispatched_jobs WHERE workspace = 'w2'`)
	require.NoError(s.T(), row.Scan(&count))
	require.Equal(s.T(), 0, count)
}

func (s *LedgerSuite) TestOpenWithEmptyDSNIsNoop() {
	l, err := Open(context.Background(), Config{})
	require.NoError(s.T(), err)
	require.Nil(s.T(), l)
	require.NoError(s.T(), l.Close()) // nil receiver must be safe
}
