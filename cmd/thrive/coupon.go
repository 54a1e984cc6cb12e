package thrive

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/neurothrive/thrive/internal/model"
	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var couponCmd = &cobra.Command{
	Use:   "coupon",
	Short: "Browse coupons pulled from the CRM",
}

var (
	couponAll   bool
	couponLimit int
	couponPlan  string
)

func printCoupons(cmd *cobra.Command, coupons []model.Coupon) {
	fmt.Fprintln(cmd.OutOrStdout(), "ID\tITEM\tDISCOUNT\tTYPE\tEXPIRES\tACTIVE")
	for _, c := range coupons {
		active := "no"
		if c.IsActive {
			active = "yes"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.2f\t%s\t%s\t%s\n", c.ID, c.ItemName, c.DiscountAmount, c.DiscountType, localDay(c.ExpirationDate), active)
	}
}

var couponListCmd = &cobra.Command{
	Use:   "list",
	Short: "List coupons",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			coupons, err := service.ListCoupons(sqldb, service.CouponFilter{ActiveOnly: !couponAll, Limit: couponLimit})
			if err != nil {
				return err
			}
			printCoupons(cmd, coupons)
			return nil
		})
	},
}

var couponMatchCmd = &cobra.Command{
	Use:   "match [item names...]",
	Short: "Find active coupons for items (default: pending grocery list)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			names := args
			if len(names) == 0 {
				items, err := service.ListGroceryItems(sqldb, service.GroceryFilter{MealPlanID: couponPlan, Pending: true, Limit: 1000})
				if err != nil {
					return err
				}
				for _, it := range items {
					names = append(names, it.ItemName)
				}
			}
			coupons, err := service.MatchCoupons(sqldb, names)
			if err != nil {
				return err
			}
			printCoupons(cmd, coupons)
			return nil
		})
	},
}

var couponExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Deactivate coupons past their expiration date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			n, err := service.DeactivateExpiredCoupons(sqldb, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %d coupon(s)\n", n)
			return nil
		})
	},
}

var couponPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local coupons with the CRM's active coupons",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			rec, err := env.reconciler()
			if err != nil {
				return err
			}
			n, err := rec.PullCoupons(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d coupon(s)\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(couponCmd)
	couponCmd.AddCommand(couponListCmd, couponMatchCmd, couponExpireCmd, couponPullCmd)

	couponListCmd.Flags().BoolVar(&couponAll, "all", false, "Include inactive coupons")
	couponListCmd.Flags().IntVar(&couponLimit, "limit", 50, "Max rows")
	couponMatchCmd.Flags().StringVar(&couponPlan, "plan", "", "Match against this meal plan's pending groceries")
}
