package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/rwool/priority-queue/pkg/emails"
	"github.com/rwool/priority-queue/pkg/service"
	"github.com/rwool/priority-queue/pkg/service/queue"
)

// Config contains all of the configuration for running the services.
type Config struct {
	Backend       string
	MongoURI      string
	MongoDatabase string
	MongoJournal  bool
	RedisAddress  string
	ListenAddress string
	// Queues are extra queue definitions of the form name:defaultPriority.
	Queues []string
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getRedisClient(address string) (*redis.Client, error) {
	if address == "" {
		return nil, errors.New("missing Redis address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     os.Getenv("REDIS_PASS"),
		DB:           0,
		MaxRetries:   10,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return client, nil
}

func getMongoDatabase(ctx context.Context, uri, database string) (*mongo.Database, func(), error) {
	if uri == "" {
		return nil, nil, errors.New("missing MongoDB URI")
	}
	if database == "" {
		return nil, nil, errors.New("missing MongoDB database")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to connect to MongoDB")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.Wrap(err, "unable to reach MongoDB")
	}
	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}
	return client.Database(database), disconnect, nil
}

func parseQueueFlag(s string) (queue.Definition, error) {
	name, prio, ok := strings.Cut(s, ":")
	def := queue.Definition{Collection: name, Fields: queue.DefaultFields()}
	if ok {
		p, err := strconv.ParseInt(prio, 10, 64)
		if err != nil {
			return queue.Definition{}, errors.Wrapf(err, "invalid default priority for queue %q", name)
		}
		def.DefaultPriority = p
	}
	return def, nil
}

// openQueues connects to the configured backend and creates every queue.
//
// The returned function releases the connection.
func openQueues(ctx context.Context, conf Config, l log.Logger) (*service.Registry, func(), error) {
	defs := []queue.Definition{emails.Definition()}
	for _, s := range conf.Queues {
		def, err := parseQueueFlag(s)
		if err != nil {
			return nil, nil, err
		}
		defs = append(defs, def)
	}

	var (
		store   queue.Store
		closeFn = func() {}
		indexer *queue.MongoAdapter
	)
	switch conf.Backend {
	case "mongo":
		db, disconnect, err := getMongoDatabase(ctx, conf.MongoURI, conf.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		adapter := queue.NewMongoAdapter(db, queue.WithJournal(conf.MongoJournal))
		store, closeFn, indexer = adapter, disconnect, adapter
	case "redis":
		rc, err := getRedisClient(conf.RedisAddress)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = queue.NewRedisAdapter(rc), func() { _ = rc.Close() }
	default:
		return nil, nil, errors.Errorf("unknown backend %q", conf.Backend)
	}

	reporter := queue.NewLogReporter(l)
	qs := make([]*queue.Queue, 0, len(defs))
	for _, def := range defs {
		q, err := queue.New(def, store, queue.WithReporter(reporter))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		if indexer != nil {
			if err := indexer.EnsureIndexes(ctx, queue.Collection{Name: def.Collection, Fields: q.Definition().Fields}); err != nil {
				closeFn()
				return nil, nil, err
			}
		}
		qs = append(qs, q)
	}

	reg, err := service.NewRegistry(qs...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return reg, closeFn, nil
}
