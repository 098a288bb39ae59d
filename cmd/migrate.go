package cmd

import (
	"time"

	"reservoir/core"
	"reservoir/pkg/ray"
	poolconfigstore "reservoir/store/poolconfig"
	reservestore "reservoir/store/reserve"
	userstore "reservoir/store/user"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "create tables and seed the configured reserves",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		db, err := provideDatabase()
		if err != nil {
			logrus.WithError(err).Fatal("open database")
		}

		if err := reservestore.Migrate(db); err != nil {
			logrus.WithError(err).Fatal("migrate reserves")
		}
		if err := userstore.Migrate(db); err != nil {
			logrus.WithError(err).Fatal("migrate users")
		}
		if err := poolconfigstore.Migrate(db); err != nil {
			logrus.WithError(err).Fatal("migrate pool config")
		}

		configs := providePoolConfigStore(db)
		poolCfg, err := configs.Get(ctx, nil)
		if err != nil {
			logrus.WithError(err).Fatal("load pool config")
		}
		poolCfg.BorrowFeeBps = cfg.Pool.BorrowFeeBps
		poolCfg.WithdrawFeeBps = cfg.Pool.WithdrawFeeBps
		poolCfg.Treasury = cfg.Pool.Treasury
		poolCfg.LiquidationModule = cfg.Pool.LiquidationModule
		if err := configs.Save(ctx, nil, poolCfg); err != nil {
			logrus.WithError(err).Fatal("save pool config")
		}

		reserves := provideReserveStore(db)
		for _, seed := range cfg.Reserves {
			reserve := &core.Reserve{
				Asset:                   seed.Asset,
				Symbol:                  seed.Symbol,
				LiquidityIndex:          core.NewBigInt(ray.Unit),
				VariableBorrowIndex:     core.NewBigInt(ray.Unit),
				AvailableLiquidity:      core.NewBigIntFromInt64(0),
				LastUpdateTimestamp:     time.Now().Unix(),
				ReceiptTokenAddress:     seed.ReceiptTokenAddress,
				DebtTokenAddress:        seed.DebtTokenAddress,
				RateStrategyAddress:     seed.RateStrategyAddress,
				Decimals:                seed.Decimals,
				LoanToValueBps:          seed.LoanToValueBps,
				LiquidationThresholdBps: seed.LiquidationThresholdBps,
				LiquidationBonusBps:     seed.LiquidationBonusBps,
				ReserveFactorBps:        seed.ReserveFactorBps,
				Active:                  true,
			}
			if err := reserves.Register(ctx, nil, reserve); err != nil {
				logrus.WithError(err).Fatalln("register reserve", seed.Asset)
			}
			logrus.Infoln("reserve ready:", seed.Asset, "slot", reserve.ReserveID)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
