package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"reservoir/pkg/ray"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var reservesCmd = &cobra.Command{
	Use:   "reserves",
	Short: "print the reserve table",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		db, err := provideDatabase()
		if err != nil {
			logrus.WithError(err).Fatal("open database")
		}

		reserves, err := provideReserveStore(db).All(ctx, nil)
		if err != nil {
			logrus.WithError(err).Fatal("load reserves")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tASSET\tSYMBOL\tACTIVE\tLIQUIDITY\tLIQ INDEX\tBORROW INDEX\tBORROW RATE")
		for _, r := range reserves {
			fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%s\t%s\t%s\t%s\n",
				r.ReserveID,
				r.Asset,
				r.Symbol,
				r.Active,
				r.AvailableLiquidity.String(),
				ray.ToDecimal(r.LiquidityIndex.Big()),
				ray.ToDecimal(r.VariableBorrowIndex.Big()),
				ray.ToDecimal(r.CurrentVariableBorrowRate.Big()),
			)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reservesCmd)
}
