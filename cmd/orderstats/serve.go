package orderstats

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/orderstats-go/orderstats/orderstatsgrpc"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve estimator sessions over gRPC",
		Long: `The 'serve' command starts the OrderStats gRPC service on --listen. Clients create named sessions that each
host one estimator, then update and query them. The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			lis, err := net.Listen("tcp", a.config.GetString("listen"))
			if err != nil {
				return err
			}
			return a.serve(ctx, lis)
		},
	}
	flags := cmd.Flags()
	flags.StringP("listen", "l", ":7070", "address to listen on")
	flags.Int64("max-concurrency", 64, "maximum number of requests handled concurrently")
	return cmd
}

// serve serves the OrderStats service on lis until ctx is done.
func (a *app) serve(ctx context.Context, lis net.Listener) error {
	server := orderstatsgrpc.NewServer(
		orderstatsgrpc.WithMaxConcurrency(max(a.config.GetInt64("max-concurrency"), 1)),
		orderstatsgrpc.WithLogger(a.logger),
	)
	grpcServer := grpc.NewServer()
	server.Register(grpcServer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("serving", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		a.logger.Info("stopped", "sessions", server.Sessions())
		return nil
	})
	return g.Wait()
}
