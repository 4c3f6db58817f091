package adapter

import (
	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/price"
	"github.com/chain-ledger/internal/ratelimit"
	"github.com/chain-ledger/internal/upstream"
)

// Clients holds one upstream client per provider. All of them share the
// rate limit registry they were built with.
type Clients struct {
	Blockstream    *upstream.Client
	BlockchainInfo *upstream.Client
	Etherscan      *upstream.Client
	Blockfrost     *upstream.Client
	Solana         *upstream.Client
	SolanaFallback *upstream.Client
	XRPScan        *upstream.Client
	Subscan        *upstream.Client
	Sui            *upstream.Client
	CryptoAPIs     *upstream.Client
	CoinGecko      *upstream.Client
	CryptoCompare  *upstream.Client
	Yoroi          *upstream.Client
	Copper         *upstream.Client

	EtherscanAPIKey string
}

// NewClients builds the provider clients from configuration
func NewClients(cfg *config.Config, limiter *ratelimit.Registry) *Clients {
	p := cfg.Providers
	common := []upstream.Option{
		upstream.WithTimeout(p.HTTPTimeout),
		upstream.WithLimiter(limiter),
		upstream.WithRetry(cfg.Retry),
	}
	with := func(extra ...upstream.Option) []upstream.Option {
		return append(append([]upstream.Option{}, common...), extra...)
	}

	clients := &Clients{
		Blockstream:    upstream.New(config.ProviderBlockstream, p.BlockstreamURL, with()...),
		BlockchainInfo: upstream.New(config.ProviderBlockchainInfo, p.BlockchainInfoURL, with()...),
		Etherscan:      upstream.New(config.ProviderEtherscan, p.EtherscanURL, with()...),
		Blockfrost: upstream.New(config.ProviderBlockfrost, p.BlockfrostURL,
			with(upstream.WithHeader("project_id", p.BlockfrostAPIKey))...),
		Solana:  upstream.New(config.ProviderSolana, p.SolanaRPCURL, with()...),
		XRPScan: upstream.New(config.ProviderXRPScan, p.XRPScanURL, with()...),
		Subscan: upstream.New(config.ProviderSubscan, p.SubscanURL,
			with(upstream.WithHeader("X-API-Key", p.SubscanAPIKey))...),
		Sui: upstream.New(config.ProviderSui, p.SuiRPCURL, with()...),
		CryptoAPIs: upstream.New(config.ProviderCryptoAPIs, p.CryptoAPIsURL,
			with(upstream.WithHeader("X-API-Key", p.CryptoAPIsKey))...),
		CoinGecko:     upstream.New(config.ProviderCoinGecko, p.CoinGeckoURL, with()...),
		CryptoCompare: upstream.New(config.ProviderCryptoCompare, p.CryptoCompareURL, with()...),
		Yoroi:         upstream.New(config.ProviderYoroi, p.YoroiURL, with()...),
		Copper:        upstream.New(config.ProviderCopper, p.CopperURL, with()...),

		EtherscanAPIKey: p.EtherscanAPIKey,
	}
	if p.SolanaFallbackURL != "" {
		clients.SolanaFallback = upstream.New(config.ProviderSolana, p.SolanaFallbackURL, with()...)
	}
	return clients
}

// NewDefaultRegistry registers every history and balance adapter
func NewDefaultRegistry(c *Clients, prices PriceSource) *Registry {
	r := NewRegistry()

	btc := NewBitcoinAdapter(c.Blockstream, c.BlockchainInfo, prices)
	r.RegisterHistory(btc)
	r.RegisterBalance(btc)

	etherscan := NewEtherscanClient(c.Etherscan, c.EtherscanAPIKey)
	eth := NewEthereumAdapter(etherscan, prices)
	r.RegisterHistory(eth)
	r.RegisterBalance(eth)
	for _, token := range Tokens {
		t := NewTokenAdapter(etherscan, token, prices)
		r.RegisterHistory(t)
		r.RegisterBalance(t)
	}

	ada := NewCardanoAdapter(c.Blockfrost, prices)
	r.RegisterHistory(ada)
	r.RegisterBalance(ada)

	sol := NewSolanaAdapter(c.Solana, prices)
	r.RegisterHistory(sol)
	r.RegisterBalance(sol)

	usdc := NewUSDCSolanaAdapter(NewEndpointPool(c.Solana, c.SolanaFallback), prices)
	r.RegisterHistory(usdc)
	r.RegisterBalance(usdc)

	balances := NewCryptoAPIsClient(c.CryptoAPIs)

	xrp := NewXRPAdapter(c.XRPScan, balances, prices)
	r.RegisterHistory(xrp)
	r.RegisterBalance(xrp)

	dot := NewPolkadotAdapter(c.Subscan, prices)
	r.RegisterHistory(dot)
	r.RegisterBalance(dot)

	sui := NewSuiAdapter(c.Sui, balances, prices)
	r.RegisterHistory(sui)
	r.RegisterBalance(sui)

	return r
}

// NewPriceRouter routes each asset to its oracle. CoinGecko answers
// everything not routed elsewhere.
func NewPriceRouter(c *Clients) *price.Router {
	coingecko := price.NewCoinGecko(c.CoinGecko)
	cryptocompare := price.NewCryptoCompare(c.CryptoCompare)
	yoroi := price.NewYoroi(c.Yoroi)

	return price.NewRouter(coingecko).
		Historical(cryptocompare, price.AssetDOT, price.AssetSUI).
		Historical(yoroi, price.AssetADA).
		Current(yoroi, price.AssetADA)
}
