package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"reservoir/handler"
	"reservoir/worker"
	"reservoir/worker/pricesync"

	"github.com/asaskevich/EventBus"
	"github.com/drone/signal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "run reservoir api server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		db, err := provideDatabase()
		if err != nil {
			logrus.WithError(err).Fatal("open database")
		}

		bus := EventBus.New()
		poolService := providePool(db, bus)
		reserves := provideReserveStore(db)

		svr := handler.New(rootCmd.Version, poolService, reserves)

		addr := cfg.API.Addr
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetInt("port")
			addr = fmt.Sprintf(":%d", port)
		}
		server := &http.Server{
			Addr:    addr,
			Handler: svr.Handler(),
		}

		ctx, quit := context.WithCancel(ctx)
		signal.WithContextFunc(ctx, func() {
			quit()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logrus.WithError(err).Error("graceful shutdown server failed")
			}
		})

		workers := []worker.Worker{
			pricesync.New(reserves, provideOracle()),
		}

		g, ctx := errgroup.WithContext(ctx)
		for i := range workers {
			w := workers[i]
			g.Go(func() error {
				return w.Run(ctx)
			})
		}
		g.Go(func() error {
			logrus.Infoln("serve at", addr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})

		if err := g.Wait(); err != nil && err != context.Canceled {
			logrus.WithError(err).Fatal("server aborted")
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntP("port", "p", 9000, "server port")
}
