package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	gohttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rwool/priority-queue/pkg/endpoint"
	"github.com/rwool/priority-queue/pkg/http"
	"github.com/rwool/priority-queue/pkg/queuesubscribe"
	"github.com/rwool/priority-queue/pkg/service"
)

func main() {
	l := log.NewJSONLogger(os.Stderr)
	if err := newRootCmd(l).Execute(); err != nil {
		_ = l.Log("LEVEL", "ERROR", "MESSAGE", err)
		os.Exit(1)
	}
}

func newRootCmd(l log.Logger) *cobra.Command {
	conf := &Config{}
	root := &cobra.Command{
		Use:           "pqueue",
		Short:         "Persistent priority queues backed by MongoDB or Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&conf.Backend, "backend", envOr("QUEUE_BACKEND", "mongo"), "storage backend, mongo or redis")
	f.StringVar(&conf.MongoURI, "mongo-uri", envOr("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	f.StringVar(&conf.MongoDatabase, "mongo-database", envOr("MONGO_DATABASE", "pqueue"), "MongoDB database holding the queues")
	f.BoolVar(&conf.MongoJournal, "journal", envBoolOr("MONGO_JOURNAL", true), "wait for journaled writes on MongoDB")
	f.StringVar(&conf.RedisAddress, "redis-address", envOr("REDIS_ADDRESS", "localhost:6379"), "Redis address")
	f.StringSliceVar(&conf.Queues, "queue", nil, "extra queue as name:defaultPriority, repeatable")

	root.AddCommand(
		newServeCmd(conf, l),
		newInsertCmd(conf, l),
		newExtractCmd(conf, l),
		newCountCmd(conf, l),
		newConsumeCmd(conf, l),
	)
	return root
}

// withAPI opens the configured queues and hands an APIService over them to fn.
func withAPI(ctx context.Context, conf *Config, l log.Logger, fn func(service.APIService) error) error {
	reg, closeFn, err := openQueues(ctx, *conf, l)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(service.NewAPIService(reg, l))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return errors.WithStack(enc.Encode(v))
}

func newServeCmd(conf *Config, l log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the queue API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, closeFn, err := openQueues(ctx, *conf, l)
			if err != nil {
				return err
			}
			defer closeFn()

			fieldKeys := []string{"method", "queue", "error"}
			requests := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "pqueue",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Number of requests received.",
			}, fieldKeys)
			latency := kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
				Namespace: "pqueue",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Total duration of requests in seconds.",
			}, fieldKeys)

			// Business logic.
			var api service.APIService = service.NewAPIService(reg, l)
			api = service.InstrumentingMiddleware(requests, latency)(api)
			api = service.LoggingMiddleware(l)(api)

			// Transports.
			mux := gohttp.NewServeMux()
			mux.Handle("/queues/", http.NewAPIHTTPHandler(endpoint.MakeAPIEndpoints(api), nil))
			mux.Handle("/metrics", promhttp.Handler())

			server, err := serveHTTP(conf.ListenAddress, mux)
			if err != nil {
				return err
			}
			_ = l.Log("LEVEL", "INFO", "MESSAGE", fmt.Sprintf("Serving queues %s on %s", strings.Join(reg.Names(), ", "), conf.ListenAddress))
			server(ctx, l)
			return nil
		},
	}
	cmd.Flags().StringVar(&conf.ListenAddress, "listen", envOr("LISTEN_ADDRESS", "0.0.0.0:8080"), "HTTP listen address")
	return cmd
}

func newInsertCmd(conf *Config, l log.Logger) *cobra.Command {
	var (
		priority     int64
		descriptions []string
	)
	cmd := &cobra.Command{
		Use:   "insert <queue> <value>",
		Short: "Insert an element into a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.InsertRequest{Queue: args[0], Value: args[1]}
			if cmd.Flags().Changed("priority") {
				req.Priority = priority
			}
			if len(descriptions) > 0 {
				d, err := parseDescription(descriptions)
				if err != nil {
					return err
				}
				req.Description = d
			}
			return withAPI(cmd.Context(), conf, l, func(api service.APIService) error {
				resp, err := api.Insert(cmd.Context(), req)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, resp); err != nil {
					return err
				}
				if !resp.Inserted {
					return errors.Errorf("element was not stored in queue %q", req.Queue)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&priority, "priority", 0, "element priority, the queue default when unset")
	cmd.Flags().StringArrayVar(&descriptions, "description", nil, "description entry as key=value, repeatable")
	return cmd
}

func parseDescription(pairs []string) (map[string]interface{}, error) {
	d := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid description entry %q, expected key=value", p)
		}
		d[k] = v
	}
	return d, nil
}

func newExtractCmd(conf *Config, l log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <queue>",
		Short: "Claim the highest priority element of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), conf, l, func(api service.APIService) error {
				resp, err := api.Extract(cmd.Context(), service.ExtractRequest{Queue: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func newCountCmd(conf *Config, l log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "count <queue>",
		Short: "Count the unclaimed elements of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), conf, l, func(api service.APIService) error {
				resp, err := api.Count(cmd.Context(), service.CountRequest{Queue: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func newConsumeCmd(conf *Config, l log.Logger) *cobra.Command {
	var (
		poll        time.Duration
		concurrency int64
	)
	cmd := &cobra.Command{
		Use:   "consume <queue>",
		Short: "Claim elements of a queue as they arrive and print them as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, closeFn, err := openQueues(ctx, *conf, l)
			if err != nil {
				return err
			}
			defer closeFn()
			q, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}

			worker := service.NewWorkerService(service.WorkerServiceConfig{
				Out: cmd.OutOrStdout(),
				Log: l,
			})
			subscriber := queuesubscribe.MakeWorkerHandler(queuesubscribe.Config{
				Endpoint:     endpoint.MakeWorkerDeliverEndpoint(worker),
				Queue:        q,
				Log:          l,
				PollInterval: poll,
				Concurrency:  concurrency,
			})
			subscriber(ctx)
			return nil
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "wait between polls of an empty queue")
	cmd.Flags().Int64Var(&concurrency, "concurrency", 4, "elements delivered at once")
	return cmd
}

func serveHTTP(address string, h gohttp.Handler) (func(context.Context, log.Logger), error) {
	// Separate listening and serving to capture listen errors.
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create TCP listener")
	}

	srv := &gohttp.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	return func(ctx context.Context, logger log.Logger) {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = logger.Log("LEVEL", "WARN", "MESSAGE", err)
			}
		}()
		if err := srv.Serve(ln); err != nil && err != gohttp.ErrServerClosed {
			_ = logger.Log("LEVEL", "ERROR", "MESSAGE", err)
		}
	}, nil
}
