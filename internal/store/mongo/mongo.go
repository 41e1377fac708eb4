package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Annad25/gpu-monitor/internal/domain"
	"github.com/Annad25/gpu-monitor/internal/store"
)

const (
	databaseName      = "gpu_monitor"
	activeCollection  = "crashes"
	historyCollection = "crash_history"

	pingTimeout = 5 * time.Second
)

var _ store.IncidentStore = (*Store)(nil)

// Store is the MongoDB-backed incident store shared by all monitor
// instances watching the same mesh. MarkDown maps to a single atomic
// update with upsert, so concurrent writers converge on one record per
// peer and witness sets merge by union.
type Store struct {
	client  *mongo.Client
	active  *mongo.Collection
	history *mongo.Collection
}

// New connects with the stable server API. Connection establishment is
// lazy in the driver, so New only fails on an unusable URI; reachability
// is the caller's business via Ping (the monitor loop gates every tick on
// it and runs degraded until the store answers).
func New(ctx context.Context, uri string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	db := client.Database(databaseName)
	return &Store{
		client:  client,
		active:  db.Collection(activeCollection),
		history: db.Collection(historyCollection),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Find(ctx context.Context, ip string) (*domain.Incident, error) {
	var inc domain.Incident
	err := s.active.FindOne(ctx, bson.M{"_id": ip}).Decode(&inc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find incident %s: %w", ip, err)
	}
	return &inc, nil
}

func (s *Store) MarkDown(ctx context.Context, ip, name string, observedAt time.Time, witness string) error {
	_, err := s.active.UpdateOne(ctx,
		bson.M{"_id": ip},
		bson.M{
			"$set": bson.M{"status": domain.StatusDown, "target_name": name},
			"$setOnInsert": bson.M{
				"down_since":         observedAt,
				"last_alert_sent_at": nil,
			},
			"$addToSet": bson.M{"witnesses": witness},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mark down %s: %w", ip, err)
	}
	return nil
}

func (s *Store) SetLastAlert(ctx context.Context, ip string, at time.Time) error {
	_, err := s.active.UpdateOne(ctx,
		bson.M{"_id": ip},
		bson.M{"$set": bson.M{"last_alert_sent_at": at}},
	)
	if err != nil {
		return fmt.Errorf("set last alert %s: %w", ip, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ip string) error {
	if _, err := s.active.DeleteOne(ctx, bson.M{"_id": ip}); err != nil {
		return fmt.Errorf("delete incident %s: %w", ip, err)
	}
	return nil
}

func (s *Store) Archive(ctx context.Context, rec *domain.HistoryRecord) error {
	if _, err := s.history.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("archive %s: %w", rec.ID, err)
	}
	return nil
}
