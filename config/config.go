package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// TokensFile is the yaml asset registry; TransfersFile is the decoded
	// transfer input, one transaction per line. OracleFile carries the
	// pre-decoded on-chain observations and may be empty.
	TokensFile    string
	TransfersFile string
	OracleFile    string

	// WALDir is the root directory for the record stores.
	WALDir string

	// ReportMinBalance filters dust positions out of the final report,
	// in display units of the asset.
	ReportMinBalance decimal.Decimal
}

type configTmp struct {
	TokensFile          string `yaml:"tokens_file"`
	TransfersFile       string `yaml:"transfers_file"`
	OracleFile          string `yaml:"oracle_file,omitempty"`
	WALDir              string `yaml:"wal_dir,omitempty"`
	ReportMinBalanceStr string `yaml:"report_min_balance,omitempty"`
}

func Get() (Config, error) {
	config := flag.String("config", "", "path to yaml config")
	tokens := flag.String("tokens", "tokens.yaml", "path to asset registry yaml")
	transfers := flag.String("transfers", "", "path to decoded transfer input")
	oracleFile := flag.String("oracle", "", "path to decoded oracle observations")
	walDir := flag.String("waldir", "./wal", "root directory for WAL stores")
	minBalance := flag.String("reportminbalance", "0", "minimum position size included in the report")
	flag.Parse()

	if *config != "" {
		return getYaml(*config)
	}

	if *transfers == "" {
		return Config{}, fmt.Errorf("either --config or --transfers is required")
	}

	min, err := decimal.NewFromString(*minBalance)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --reportminbalance provided, --reportminbalance=%s", *minBalance)
	}

	return Config{
		TokensFile:       *tokens,
		TransfersFile:    *transfers,
		OracleFile:       *oracleFile,
		WALDir:           *walDir,
		ReportMinBalance: min,
	}, nil
}

func getYaml(path string) (Config, error) {
	var tmp configTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	if tmp.TokensFile == "" {
		return Config{}, fmt.Errorf("missing 'tokens_file' param in yaml config")
	}
	if tmp.TransfersFile == "" {
		return Config{}, fmt.Errorf("missing 'transfers_file' param in yaml config")
	}

	cfg := Config{
		TokensFile:       tmp.TokensFile,
		TransfersFile:    tmp.TransfersFile,
		OracleFile:       tmp.OracleFile,
		WALDir:           tmp.WALDir,
		ReportMinBalance: decimal.Zero,
	}
	if cfg.WALDir == "" {
		cfg.WALDir = "./wal"
	}

	if tmp.ReportMinBalanceStr != "" {
		min, err := decimal.NewFromString(tmp.ReportMinBalanceStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'report_min_balance' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.ReportMinBalance = min
	}

	return cfg, nil
}
