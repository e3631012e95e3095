// Package config loads service configuration from YAML or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkovtun/costbook/internal/domain"
)

const (
	defaultStateFile    = "position_state.json"
	defaultWalDir       = "./wal/fills"
	defaultListenAddr   = ":8080"
	defaultPollInterval = 5 * time.Minute
)

// Config is the resolved service configuration.
type Config struct {
	// Platform is the exchange supplying closed-order history: binance or bybit.
	Platform string
	// Pairs are the tracked trading pairs.
	Pairs []domain.Pair
	// StateFile is the position_state.json path.
	StateFile string
	// WalDir holds the fills audit journal.
	WalDir string
	// ListenAddr is the web API address.
	ListenAddr string
	// ReconcileOnStart rebuilds empty local books from exchange history at boot.
	ReconcileOnStart bool
	// PollInterval is how often local books are re-checked against exchange history.
	PollInterval time.Duration
}

// ConfigTmp is the on-disk YAML shape, resolved into Config with defaults.
type ConfigTmp struct {
	Platform         string        `yaml:"platform"`
	Pairs            []string      `yaml:"pairs"`
	StateFile        string        `yaml:"state_file,omitempty"`
	WalDir           string        `yaml:"wal_dir,omitempty"`
	ListenAddr       string        `yaml:"listen_addr,omitempty"`
	ReconcileOnStart bool          `yaml:"reconcile_on_start,omitempty"`
	PollInterval     time.Duration `yaml:"poll_interval,omitempty"`
}

// Get resolves configuration: --config selects a YAML file, otherwise CLI
// flags apply.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "binance", "exchange platform: binance or bybit")
	pairsFlag := flag.String("pairs", "BTC_USDT", "comma-separated trade pairs, example: BTC_USDT,ETH_USDT")
	stateFile := flag.String("statefile", defaultStateFile, "path to position state file")
	walDir := flag.String("waldir", defaultWalDir, "directory for the fills journal")
	listenAddr := flag.String("listen", defaultListenAddr, "web API listen address")
	reconcile := flag.Bool("reconcile", true, "reconcile empty local books from exchange history on start")
	pollInterval := flag.Duration("pollinterval", defaultPollInterval, "interval between history re-checks")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	tmp := ConfigTmp{
		Platform:         *platform,
		Pairs:            strings.Split(*pairsFlag, ","),
		StateFile:        *stateFile,
		WalDir:           *walDir,
		ListenAddr:       *listenAddr,
		ReconcileOnStart: *reconcile,
		PollInterval:     *pollInterval,
	}

	return resolve(tmp)
}

func getYaml(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return Config{}, err
	}

	return resolve(tmp)
}

func resolve(tmp ConfigTmp) (Config, error) {
	switch tmp.Platform {
	case "binance", "bybit":
	default:
		return Config{}, fmt.Errorf("unsupported platform %q", tmp.Platform)
	}

	if len(tmp.Pairs) == 0 {
		return Config{}, fmt.Errorf("at least one pair is required")
	}

	pairs := make([]domain.Pair, 0, len(tmp.Pairs))
	for _, raw := range tmp.Pairs {
		pair, err := domain.PairFromString(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, err
		}
		pairs = append(pairs, pair)
	}

	cfg := Config{
		Platform:         tmp.Platform,
		Pairs:            pairs,
		StateFile:        tmp.StateFile,
		WalDir:           tmp.WalDir,
		ListenAddr:       tmp.ListenAddr,
		ReconcileOnStart: tmp.ReconcileOnStart,
		PollInterval:     tmp.PollInterval,
	}

	if cfg.StateFile == "" {
		cfg.StateFile = defaultStateFile
	}
	if cfg.WalDir == "" {
		cfg.WalDir = defaultWalDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return cfg, nil
}
