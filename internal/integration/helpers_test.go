//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/augurworld/augur/internal/adapter/gridstore"
	"github.com/augurworld/augur/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("augur-test"))
	testcontainers.CleanupContainer(t, kc)
	require.NoError(t, err, "start kafka container")

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startRedis runs a Redis server and returns its host:port.
func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start redis container")

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

// seedGrid builds an in-memory grid of nine cells around Lima.
func seedGrid(ctx context.Context, t *testing.T) (*gridstore.Store, *domain.Schema) {
	t.Helper()
	schema, err := domain.NewSchema([]int{2030, 2040, 2050}, []int{10, 20, 30, 50, 100})
	require.NoError(t, err)

	db, err := gridstore.Open(ctx, gridstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, gridstore.CreateTable(ctx, db, "augur", schema))

	var cells []domain.GridCell
	for _, lat := range []float64{-12.15, -12.101622, -12.05} {
		for _, lng := range []float64{-77.0, -76.985037, -76.95} {
			cell := domain.GridCell{Point: domain.GridPoint{Lat: lat, Lng: lng}, Fields: map[string]*float64{}}
			for i, name := range schema.Fields() {
				v := 50 + float64(i)
				cell.Fields[name] = &v
			}
			cells = append(cells, cell)
		}
	}
	require.NoError(t, gridstore.InsertCells(ctx, db, "augur", schema, cells))

	store, err := gridstore.NewStore(db, "augur", 0.05, discardLogger())
	require.NoError(t, err)
	return store, schema
}
