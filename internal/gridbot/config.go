package gridbot

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the bot's .env template.
const (
	defaultGridLevels     = 5
	defaultPricePrecision = 3
	defaultCycleInterval  = 60 * time.Second

	maxTokenSlots = 10
)

var (
	defaultSpacingMicros        = uint64(20_000)         // $0.02
	defaultOrderSizeUSDMicros   = 10 * microsScale       // $10
	defaultMaxPositionUSDMicros = 100 * microsScale      // $100
	defaultRangeMinMicros       = uint64(300_000)        // $0.30
	defaultRangeMaxMicros       = uint64(700_000)        // $0.70
	defaultMinOrderSizeMicros   = uint64(100_000)        // 0.1 shares
	defaultMaxOrderSizeMicros   = 10_000 * microsScale   // 10000 shares
	minPriceMicros              = uint64(10_000)         // $0.01
	maxPriceMicros              = uint64(990_000)        // $0.99
)

// TokenConfig holds the per-market grid parameters.
type TokenConfig struct {
	TokenID string
	Name    string

	GridLevels           int
	SpacingMicros        uint64
	OrderSizeUSDMicros   uint64
	MaxPositionUSDMicros uint64
	RangeMinMicros       uint64
	RangeMaxMicros       uint64
	PricePrecision       int

	MinOrderSizeMicros uint64 // shares
	MaxOrderSizeMicros uint64 // shares
}

// PriceQuantumMicros is one unit of the configured price precision.
func (c TokenConfig) PriceQuantumMicros() uint64 {
	return priceQuantum(c.PricePrecision)
}

// Validate runs the startup-only configuration checks. Anything it rejects
// is fatal; nothing here is re-checked per cycle.
func (c TokenConfig) Validate() error {
	if strings.TrimSpace(c.TokenID) == "" {
		return fmt.Errorf("token id required")
	}
	if c.GridLevels <= 0 {
		return fmt.Errorf("grid levels must be positive, got %d", c.GridLevels)
	}
	if c.SpacingMicros == 0 || c.SpacingMicros >= microsScale {
		return fmt.Errorf("grid spacing must be between 0 and 1, got %s", formatMicros(c.SpacingMicros))
	}
	if c.OrderSizeUSDMicros == 0 {
		return fmt.Errorf("order size must be positive")
	}
	if c.MaxPositionUSDMicros == 0 {
		return fmt.Errorf("max position must be positive")
	}
	if c.RangeMinMicros == 0 || c.RangeMinMicros >= microsScale {
		return fmt.Errorf("range min must be between 0 and 1, got %s", formatMicros(c.RangeMinMicros))
	}
	if c.RangeMaxMicros == 0 || c.RangeMaxMicros >= microsScale {
		return fmt.Errorf("range max must be between 0 and 1, got %s", formatMicros(c.RangeMaxMicros))
	}
	if c.RangeMinMicros >= c.RangeMaxMicros {
		return fmt.Errorf("range min must be less than range max, got %s >= %s",
			formatMicros(c.RangeMinMicros), formatMicros(c.RangeMaxMicros))
	}
	if c.PricePrecision < 1 || c.PricePrecision > 4 {
		return fmt.Errorf("price precision must be 1..4, got %d", c.PricePrecision)
	}
	// Spacing must be representable at the configured precision, or every
	// planned price would drift off the grid when rounded.
	if q := c.PriceQuantumMicros(); c.SpacingMicros%q != 0 {
		return fmt.Errorf("price precision %d too coarse for grid spacing %s",
			c.PricePrecision, formatMicros(c.SpacingMicros))
	}
	if c.MinOrderSizeMicros > c.MaxOrderSizeMicros {
		return fmt.Errorf("min order size %s exceeds max order size %s",
			formatMicros(c.MinOrderSizeMicros), formatMicros(c.MaxOrderSizeMicros))
	}
	return nil
}

// Config is the whole-process configuration assembled from flags and env.
type Config struct {
	Tokens []TokenConfig

	CycleInterval  time.Duration
	RequestTimeout time.Duration

	ClobHost  string
	GammaHost string

	Source    string // "poll" or "stream"
	StreamURL string

	PrivateKeyHex string
	Funder        string
	SignatureType int

	APIKey        string
	APISecret     string
	APIPassphrase string
	APINonce      uint64
	UseServerTime bool

	EnableTrading  bool
	OutFile        string
	CheckpointPath string
	RPCURL         string
}

func (c Config) Validate() error {
	if len(c.Tokens) == 0 {
		return fmt.Errorf("no tokens configured: set TOKEN_ID or TOKEN_ID_1..TOKEN_ID_%d", maxTokenSlots)
	}
	if len(c.Tokens) > maxTokenSlots {
		return fmt.Errorf("too many tokens: %d (max %d)", len(c.Tokens), maxTokenSlots)
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for i, tc := range c.Tokens {
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("token %d (%s): %w", i+1, tc.Name, err)
		}
		if _, dup := seen[tc.TokenID]; dup {
			return fmt.Errorf("token %d (%s): duplicate token id", i+1, tc.Name)
		}
		seen[tc.TokenID] = struct{}{}
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	switch c.Source {
	case "poll", "stream":
	default:
		return fmt.Errorf("unknown source %q (want poll or stream)", c.Source)
	}
	return nil
}

// ParseArgs builds the runtime config from command-line flags with env-var
// defaults, plus the TOKEN_ID_n multi-token env scheme.
func ParseArgs() (Config, error) {
	defaults, err := tokenDefaultsFromEnv()
	if err != nil {
		return Config{}, err
	}

	cycleDefault := defaultCycleInterval
	if env := strings.TrimSpace(os.Getenv("CYCLE_INTERVAL")); env != "" {
		secs, err := strconv.Atoi(env)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid CYCLE_INTERVAL %q: want seconds > 0", env)
		}
		cycleDefault = time.Duration(secs) * time.Second
	}

	enableTradingDefault := false
	if env := strings.TrimSpace(os.Getenv("ENABLE_TRADING")); env != "" {
		v, err := strconv.ParseBool(env)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ENABLE_TRADING %q: %w", env, err)
		}
		enableTradingDefault = v
	}

	signatureTypeDefault := 0
	if env := strings.TrimSpace(os.Getenv("CLOB_SIGNATURE_TYPE")); env != "" {
		v, err := strconv.Atoi(env)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CLOB_SIGNATURE_TYPE %q: %w", env, err)
		}
		signatureTypeDefault = v
	}
	// The proxy-wallet env implies a SAFE signature unless overridden.
	proxyWallet := strings.TrimSpace(os.Getenv("POLYMARKET_PROXY_WALLET"))
	if proxyWallet != "" && signatureTypeDefault == 0 {
		signatureTypeDefault = 2
	}

	var cfg Config
	flag.DurationVar(&cfg.CycleInterval, "interval", cycleDefault, "Cycle interval (CYCLE_INTERVAL env, seconds)")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", 15*time.Second, "Per-request timeout for exchange and metadata calls")
	flag.StringVar(&cfg.ClobHost, "clob-url", "", "CLOB API base URL (default https://clob.polymarket.com)")
	flag.StringVar(&cfg.GammaHost, "gamma-url", "", "Gamma API base URL (default https://gamma-api.polymarket.com)")
	flag.StringVar(&cfg.Source, "source", firstNonEmpty(strings.TrimSpace(os.Getenv("PRICE_SOURCE")), "poll"), "Price source: poll (Gamma+book) or stream (RTDS, falls back to poll)")
	flag.StringVar(&cfg.StreamURL, "stream-url", "", "RTDS WebSocket URL (default wss://ws-live-data.polymarket.com)")
	flag.StringVar(&cfg.PrivateKeyHex, "private-key", "", "Private key hex (0x...) (or POLYMARKET_PRIVATE_KEY/PRIVATE_KEY env)")
	flag.StringVar(&cfg.Funder, "funder", firstNonEmpty(proxyWallet, strings.TrimSpace(os.Getenv("FUNDER"))), "Funder address (proxy wallet) (POLYMARKET_PROXY_WALLET/FUNDER env; default: signer)")
	flag.IntVar(&cfg.SignatureType, "signature-type", signatureTypeDefault, "Signature type: 0=EOA, 1=POLY_PROXY, 2=POLY_GNOSIS_SAFE")
	flag.StringVar(&cfg.APIKey, "api-key", strings.TrimSpace(os.Getenv("POLYMARKET_API_KEY")), "CLOB API key (otherwise derived from the private key)")
	flag.StringVar(&cfg.APISecret, "api-secret", strings.TrimSpace(os.Getenv("POLYMARKET_API_SECRET")), "CLOB API secret")
	flag.StringVar(&cfg.APIPassphrase, "api-passphrase", strings.TrimSpace(os.Getenv("POLYMARKET_API_PASSPHRASE")), "CLOB API passphrase")
	flag.Uint64Var(&cfg.APINonce, "api-nonce", 0, "Nonce for API key derive/create")
	flag.BoolVar(&cfg.UseServerTime, "use-server-time", true, "Use /time for signed requests")
	flag.BoolVar(&cfg.EnableTrading, "enable-trading", enableTradingDefault, "Actually place/cancel orders (default is dry-run) (ENABLE_TRADING env)")
	flag.StringVar(&cfg.OutFile, "out", strings.TrimSpace(os.Getenv("GRID_OUT_FILE")), "Optional JSONL event log path (GRID_OUT_FILE env)")
	flag.StringVar(&cfg.CheckpointPath, "checkpoint", strings.TrimSpace(os.Getenv("GRID_CHECKPOINT")), "Optional position checkpoint file (GRID_CHECKPOINT env)")
	flag.Parse()

	if cfg.PrivateKeyHex == "" {
		cfg.PrivateKeyHex = firstNonEmpty(
			strings.TrimSpace(os.Getenv("POLYMARKET_PRIVATE_KEY")),
			strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		)
	}
	cfg.RPCURL = firstNonEmpty(strings.TrimSpace(os.Getenv("RPC_URL")), strings.TrimSpace(os.Getenv("RPC_WS_URL")))

	tokens, err := tokensFromEnv(defaults)
	if err != nil {
		return Config{}, err
	}
	cfg.Tokens = tokens

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// tokenDefaultsFromEnv reads the shared grid parameters that apply to every
// token unless overridden by a _n suffixed variable.
func tokenDefaultsFromEnv() (TokenConfig, error) {
	d := TokenConfig{
		GridLevels:           defaultGridLevels,
		SpacingMicros:        defaultSpacingMicros,
		OrderSizeUSDMicros:   defaultOrderSizeUSDMicros,
		MaxPositionUSDMicros: defaultMaxPositionUSDMicros,
		RangeMinMicros:       defaultRangeMinMicros,
		RangeMaxMicros:       defaultRangeMaxMicros,
		PricePrecision:       defaultPricePrecision,
		MinOrderSizeMicros:   defaultMinOrderSizeMicros,
		MaxOrderSizeMicros:   defaultMaxOrderSizeMicros,
	}
	var err error
	if d.GridLevels, err = envInt("GRID_LEVELS", d.GridLevels); err != nil {
		return d, err
	}
	if d.PricePrecision, err = envInt("PRICE_PRECISION", d.PricePrecision); err != nil {
		return d, err
	}
	if d.SpacingMicros, err = envMicros("GRID_SPACING", d.SpacingMicros); err != nil {
		return d, err
	}
	if d.OrderSizeUSDMicros, err = envMicros("ORDER_SIZE_USD", d.OrderSizeUSDMicros); err != nil {
		return d, err
	}
	if d.MaxPositionUSDMicros, err = envMicros("MAX_POSITION_USD", d.MaxPositionUSDMicros); err != nil {
		return d, err
	}
	if d.RangeMinMicros, err = envMicros("RANGE_MIN", d.RangeMinMicros); err != nil {
		return d, err
	}
	if d.RangeMaxMicros, err = envMicros("RANGE_MAX", d.RangeMaxMicros); err != nil {
		return d, err
	}
	if d.MinOrderSizeMicros, err = envMicros("MIN_ORDER_SIZE", d.MinOrderSizeMicros); err != nil {
		return d, err
	}
	if d.MaxOrderSizeMicros, err = envMicros("MAX_ORDER_SIZE", d.MaxOrderSizeMicros); err != nil {
		return d, err
	}
	return d, nil
}

// tokensFromEnv assembles the token list: TOKEN_ID_1..TOKEN_ID_10 slots with
// per-slot overrides, falling back to a single TOKEN_ID.
func tokensFromEnv(defaults TokenConfig) ([]TokenConfig, error) {
	var tokens []TokenConfig
	for i := 1; i <= maxTokenSlots; i++ {
		id := strings.TrimSpace(os.Getenv(fmt.Sprintf("TOKEN_ID_%d", i)))
		if id == "" {
			continue
		}
		tc := defaults
		tc.TokenID = id
		tc.Name = strings.TrimSpace(os.Getenv(fmt.Sprintf("TOKEN_NAME_%d", i)))
		if tc.Name == "" {
			tc.Name = fmt.Sprintf("Market %d", i)
		}
		var err error
		suffix := fmt.Sprintf("_%d", i)
		if tc.GridLevels, err = envInt("GRID_LEVELS"+suffix, tc.GridLevels); err != nil {
			return nil, err
		}
		if tc.PricePrecision, err = envInt("PRICE_PRECISION"+suffix, tc.PricePrecision); err != nil {
			return nil, err
		}
		if tc.SpacingMicros, err = envMicros("GRID_SPACING"+suffix, tc.SpacingMicros); err != nil {
			return nil, err
		}
		if tc.OrderSizeUSDMicros, err = envMicros("ORDER_SIZE_USD"+suffix, tc.OrderSizeUSDMicros); err != nil {
			return nil, err
		}
		if tc.MaxPositionUSDMicros, err = envMicros("MAX_POSITION_USD"+suffix, tc.MaxPositionUSDMicros); err != nil {
			return nil, err
		}
		if tc.RangeMinMicros, err = envMicros("RANGE_MIN"+suffix, tc.RangeMinMicros); err != nil {
			return nil, err
		}
		if tc.RangeMaxMicros, err = envMicros("RANGE_MAX"+suffix, tc.RangeMaxMicros); err != nil {
			return nil, err
		}
		tokens = append(tokens, tc)
	}

	if len(tokens) == 0 {
		if id := strings.TrimSpace(os.Getenv("TOKEN_ID")); id != "" {
			tc := defaults
			tc.TokenID = id
			tc.Name = firstNonEmpty(strings.TrimSpace(os.Getenv("TOKEN_NAME")), "Single Market")
			tokens = append(tokens, tc)
		}
	}
	return tokens, nil
}

func envInt(key string, def int) (int, error) {
	env := strings.TrimSpace(os.Getenv(key))
	if env == "" {
		return def, nil
	}
	v, err := strconv.Atoi(env)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, env, err)
	}
	return v, nil
}

func envMicros(key string, def uint64) (uint64, error) {
	env := strings.TrimSpace(os.Getenv(key))
	if env == "" {
		return def, nil
	}
	v, err := parseDecimalMicros(env)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, env, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
