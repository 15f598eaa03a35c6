package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	redisAdapter "coupong/adapters/redis"
	"coupong/core"
	"coupong/coupon"
	"coupong/projection"
)

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "queuectl",
		Usage:     "inspect and operate coupon leaderboard queues",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis-addr", Value: "localhost:6379", EnvVars: []string{"COUPONG_REDIS_ADDR"}},
			&cli.StringFlag{Name: "redis-password", EnvVars: []string{"COUPONG_REDIS_PASSWORD"}},
			&cli.IntFlag{Name: "redis-db", EnvVars: []string{"COUPONG_REDIS_DB"}},
			&cli.StringFlag{Name: "queue-prefix", Value: core.DefaultQueuePrefix, EnvVars: []string{"COUPONG_QUEUE_PREFIX"}},
			&cli.StringFlag{Name: "leaderboard-prefix", Value: core.DefaultLeaderboardPrefix, EnvVars: []string{"COUPONG_LEADERBOARD_PREFIX"}},
			&cli.BoolFlag{Name: "no-sync", Usage: "skip writing the stored leaderboard after changes"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "queue a member (score defaults to now in epoch milliseconds)",
				ArgsUsage: "<category> <member>",
				Flags:     []cli.Flag{&cli.Float64Flag{Name: "score"}},
				Action: withQueue(2, func(c *cli.Context, q *coupon.Queue) error {
					score := c.Float64("score")
					if !c.IsSet("score") {
						score = float64(time.Now().UnixMilli())
					}
					res, err := q.AddToZSet(c.Context, category(c), member(c), score)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "inserted=%t synced=%t\n", res.Inserted, res.Synced)
					return nil
				}),
			},
			{
				Name:      "members",
				Usage:     "list every queued member in score order",
				ArgsUsage: "<category>",
				Action: withQueue(1, func(c *cli.Context, q *coupon.Queue) error {
					members, err := q.GetZSet(c.Context, category(c))
					if err != nil {
						return err
					}
					printMembers(c.App.Writer, members)
					return nil
				}),
			},
			{
				Name:      "top",
				Usage:     "list the first members of a queue",
				ArgsUsage: "<category>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10},
					&cli.BoolFlag{Name: "scores"},
				},
				Action: withQueue(1, func(c *cli.Context, q *coupon.Queue) error {
					if !c.Bool("scores") {
						members, err := q.GetTopRankSet(c.Context, category(c), c.Int("limit"))
						if err != nil {
							return err
						}
						printMembers(c.App.Writer, members)
						return nil
					}
					entries, err := q.GetTopRankSetWithScore(c.Context, category(c), c.Int("limit"))
					if err != nil {
						return err
					}
					for _, e := range entries {
						fmt.Fprintf(c.App.Writer, "%s\t%.0f\n", e.Member, e.Score)
					}
					return nil
				}),
			},
			{
				Name:      "remove",
				Usage:     "remove a member from a queue",
				ArgsUsage: "<category> <member>",
				Action: withQueue(2, func(c *cli.Context, q *coupon.Queue) error {
					res, err := q.RemoveItemFromZSet(c.Context, category(c), member(c))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "removed=%t synced=%t\n", res.Removed, res.Synced)
					return nil
				}),
			},
			{
				Name:      "clear",
				Usage:     "empty a queue",
				ArgsUsage: "<category>",
				Action: withQueue(1, func(c *cli.Context, q *coupon.Queue) error {
					res, err := q.ClearQueue(c.Context, category(c))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "removed=%d synced=%t\n", res.Removed, res.Synced)
					return nil
				}),
			},
			{
				Name:      "check",
				Usage:     "report whether a member is queued",
				ArgsUsage: "<category> <member>",
				Action: withQueue(2, func(c *cli.Context, q *coupon.Queue) error {
					in, err := q.IsUserInQueue(c.Context, category(c), member(c))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "queued=%t\n", in)
					return nil
				}),
			},
			{
				Name:  "ping",
				Usage: "check the redis connection",
				Action: withQueue(0, func(c *cli.Context, q *coupon.Queue) error {
					if err := q.Ping(c.Context); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "PONG")
					return nil
				}),
			},
		},
	}
}

func category(c *cli.Context) core.Category { return core.Category(c.Args().Get(0)) }
func member(c *cli.Context) core.MemberID   { return core.MemberID(c.Args().Get(1)) }

func printMembers(w io.Writer, members []core.MemberID) {
	for _, m := range members {
		fmt.Fprintln(w, m)
	}
}

// withQueue checks the argument count, connects, and hands the action an assembled queue.
func withQueue(nargs int, fn func(c *cli.Context, q *coupon.Queue) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != nargs {
			return fmt.Errorf("%s: expected %d argument(s): %s", c.Command.Name, nargs, c.Command.ArgsUsage)
		}
		q, closeFn, err := connect(c)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(c, q)
	}
}

func connect(c *cli.Context) (*coupon.Queue, func(), error) {
	cfg := redisAdapter.DefaultConfig()
	cfg.Addr = c.String("redis-addr")
	cfg.Password = c.String("redis-password")
	cfg.DB = c.Int("redis-db")
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("redis config: %w", err)
	}
	client, err := redisAdapter.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	keys := core.KeySpace{QueuePrefix: c.String("queue-prefix"), LeaderboardPrefix: c.String("leaderboard-prefix")}
	opts := []coupon.Option{
		coupon.WithRedisClient(client),
		coupon.WithKeySpace(keys),
		coupon.WithLogger(logger),
	}
	if !c.Bool("no-sync") {
		opts = append(opts, coupon.WithProjection(projection.ModeStore, redisAdapter.NewSnapshotStore(client, keys), nil))
	}
	q, err := coupon.New(opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return q, func() {
		q.Close()
		_ = client.Close()
	}, nil
}
