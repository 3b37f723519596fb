package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

const aggregatorABIJSON = `[
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// OnchainOptions parameterise the on-chain price-feed fetcher.
type OnchainOptions struct {
	RPCURL  string
	Feeds   map[chain.Chain]string
	Timeout time.Duration
}

// Onchain reads USD prices from Chainlink-style aggregator contracts over
// Ethereum RPC. It has no historical capability, so FetchHourlyHistory
// reports an empty best-effort result.
type Onchain struct {
	opts      OnchainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex

	decimalsMux sync.Mutex
	decimalsFor map[chain.Chain]int32
}

// NewOnchain builds a new on-chain fetcher.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	return &Onchain{
		opts:        opts,
		logger:      logger.With().Str("component", "onchain_fetcher").Logger(),
		decimalsFor: make(map[chain.Chain]int32),
	}
}

// FetchCurrentPrice reads the latest answer from the chain's configured
// price feed. The asset address argument is unused here; the feed already
// binds the asset.
func (o *Onchain) FetchCurrentPrice(ctx context.Context, c chain.Chain, _ string) (decimal.Decimal, error) {
	if o.opts.RPCURL == "" {
		return decimal.Decimal{}, errors.New("ethereum rpc url not configured")
	}
	feed, ok := o.opts.Feeds[c]
	if !ok || feed == "" {
		return decimal.Decimal{}, fmt.Errorf("no price feed configured for chain %s", c)
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	addr := common.HexToAddress(feed)

	answer, err := o.latestAnswer(ctx, client, addr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	exponent, err := o.feedDecimals(ctx, client, c, addr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return decimal.NewFromBigInt(answer, -exponent), nil
}

// FetchHourlyHistory always returns an empty result: aggregator contracts
// expose only the latest round without a timestamp index worth walking.
func (o *Onchain) FetchHourlyHistory(ctx context.Context, c chain.Chain, _ string) ([]HistoricalPrice, error) {
	o.logger.Debug().Str("chain", c.String()).Msg("onchain source has no historical capability; returning no samples")
	return []HistoricalPrice{}, nil
}

func (o *Onchain) latestAnswer(ctx context.Context, client *ethclient.Client, addr common.Address) (*big.Int, error) {
	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 5 {
		return nil, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode latestRoundData answer")
	}
	if answer.Sign() <= 0 {
		return nil, errors.New("price feed returned a non-positive answer")
	}
	return answer, nil
}

func (o *Onchain) feedDecimals(ctx context.Context, client *ethclient.Client, c chain.Chain, addr common.Address) (int32, error) {
	o.decimalsMux.Lock()
	if cached, ok := o.decimalsFor[c]; ok {
		o.decimalsMux.Unlock()
		return cached, nil
	}
	o.decimalsMux.Unlock()

	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return 0, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return 0, err
	}

	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, errors.New("unexpected decimals response")
	}

	value, ok := outputs[0].(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}

	o.decimalsMux.Lock()
	o.decimalsFor[c] = int32(value)
	o.decimalsMux.Unlock()

	return int32(value), nil
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ PriceFetcher = (*Onchain)(nil)
