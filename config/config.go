package config

import (
	"fmt"

	"reservoir/core"

	configUtil "github.com/fox-one/pkg/config"
)

const maxBps = 10000

// Load load config file, env vars prefixed RESERVOIR override file values
func Load(configFile string, config *core.Config) error {
	configUtil.AutomaticLoadEnv("RESERVOIR")
	if err := configUtil.LoadYaml(configFile, config); err != nil {
		return err
	}

	defaults(config)
	return validate(config)
}

func defaults(config *core.Config) {
	if config.DB.Path == "" {
		config.DB.Path = "reservoir.db"
	}

	if config.API.Addr == "" {
		config.API.Addr = ":9000"
	}

	if config.Oracle.CacheSeconds <= 0 {
		config.Oracle.CacheSeconds = 60
	}
}

func validate(config *core.Config) error {
	if config.Pool.BorrowFeeBps > maxBps || config.Pool.WithdrawFeeBps > maxBps {
		return fmt.Errorf("config: pool fee above %d bps", maxBps)
	}

	if len(config.Reserves) > core.MaxReserves {
		return fmt.Errorf("config: %d reserve seeds, at most %d supported", len(config.Reserves), core.MaxReserves)
	}

	for _, seed := range config.Reserves {
		if seed.Asset == "" {
			return fmt.Errorf("config: reserve seed %q missing asset address", seed.Symbol)
		}

		if seed.LoanToValueBps > seed.LiquidationThresholdBps {
			return fmt.Errorf("config: reserve %s ltv above liquidation threshold", seed.Symbol)
		}

		if seed.LiquidationThresholdBps > maxBps || seed.ReserveFactorBps > maxBps {
			return fmt.Errorf("config: reserve %s risk parameter above %d bps", seed.Symbol, maxBps)
		}

		if seed.LiquidationBonusBps < maxBps {
			return fmt.Errorf("config: reserve %s liquidation bonus below par", seed.Symbol)
		}
	}

	return nil
}
