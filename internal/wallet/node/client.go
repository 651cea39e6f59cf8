package node

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/util"
)

var ErrUnavailable = errors.New("all RPC nodes are unavailable")

// RPCClient is a passthrough to one of several nodes. A call that fails at the transport level
// is tried once on each remaining node, errors returned by a node are final.
type RPCClient struct {
	urls    []string
	clients []*ethclient.Client
	timeout time.Duration

	mu      sync.RWMutex
	current int
}

// NewRPCClient dials every URL. Unreachable nodes are skipped until first use.
func NewRPCClient(ctx context.Context, urls []string, timeout time.Duration) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	log := util.LogFromContext(ctx)

	clients := make([]*ethclient.Client, len(urls))
	connected := 0
	for i, url := range urls {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			log.Warn().Str("url", url).Err(err).Msg("Failed to connect to RPC node, will retry on use")
			continue
		}
		clients[i] = client
		connected++
	}

	if connected == 0 {
		return nil, errors.Wrap(ErrUnavailable, "failed to connect to any RPC node")
	}

	return &RPCClient{
		urls:    urls,
		clients: clients,
		timeout: timeout,
	}, nil
}

// Close closes all node connections.
func (c *RPCClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		if client != nil {
			client.Close()
		}
	}
}

func (c *RPCClient) client(ctx context.Context, idx int) (*ethclient.Client, error) {
	c.mu.RLock()
	client := c.clients[idx]
	c.mu.RUnlock()

	if client != nil {
		return client, nil
	}

	client, err := ethclient.DialContext(ctx, c.urls[idx])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients[idx] != nil {
		client.Close()
		return c.clients[idx], nil
	}
	c.clients[idx] = client

	return client, nil
}

// do runs fn against the current node and fails over to the next ones on transport errors.
func (c *RPCClient) do(ctx context.Context, op string, fn func(ctx context.Context, client *ethclient.Client) error) error {
	log := util.LogFromContext(ctx)

	c.mu.RLock()
	start := c.current
	c.mu.RUnlock()

	var lastErr error
	for i := range c.urls {
		idx := (start + i) % len(c.urls)

		client, err := c.client(ctx, idx)
		if err != nil {
			lastErr = err
			log.Warn().Str("url", c.urls[idx]).Err(err).Msg("Failed to dial RPC node")
			continue
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		err = fn(callCtx, client)
		cancel()

		if err == nil {
			if idx != start {
				c.mu.Lock()
				c.current = idx
				c.mu.Unlock()
			}
			return nil
		}

		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return errors.Wrapf(err, "failed to %s", op)
		}
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "failed to %s", op)
		}

		lastErr = err
		log.Warn().Str("url", c.urls[idx]).Str("op", op).Err(err).Msg("RPC node call failed, trying next node")
	}

	return errors.Wrapf(ErrUnavailable, "failed to %s: %v", op, lastErr)
}

// ClientVersion returns the web3_clientVersion of the serving node.
func (c *RPCClient) ClientVersion(ctx context.Context) (string, error) {
	var version string
	err := c.do(ctx, "get client version", func(ctx context.Context, client *ethclient.Client) error {
		return client.Client().CallContext(ctx, &version, "web3_clientVersion")
	})

	return version, err
}

func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.do(ctx, "get block number", func(ctx context.Context, client *ethclient.Client) (err error) {
		number, err = client.BlockNumber(ctx)
		return err
	})

	return number, err
}

// BalanceAt returns the balance of account at the latest block.
func (c *RPCClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "get balance", func(ctx context.Context, client *ethclient.Client) (err error) {
		balance, err = client.BalanceAt(ctx, account, nil)
		return err
	})

	return balance, err
}

func (c *RPCClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "get pending nonce", func(ctx context.Context, client *ethclient.Client) (err error) {
		nonce, err = client.PendingNonceAt(ctx, account)
		return err
	})

	return nonce, err
}

func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.do(ctx, "suggest gas price", func(ctx context.Context, client *ethclient.Client) (err error) {
		price, err = client.SuggestGasPrice(ctx)
		return err
	})

	return price, err
}

func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	var chainID *big.Int
	err := c.do(ctx, "get chain id", func(ctx context.Context, client *ethclient.Client) (err error) {
		chainID, err = client.ChainID(ctx)
		return err
	})

	return chainID, err
}

func (c *RPCClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, "estimate gas", func(ctx context.Context, client *ethclient.Client) (err error) {
		gas, err = client.EstimateGas(ctx, msg)
		return err
	})

	return gas, err
}

// SendRawTransaction broadcasts a signed legacy serialization given as hex, with or without 0x.
// The payload is decoded first so that garbage never reaches the node.
func (c *RPCClient) SendRawTransaction(ctx context.Context, signedHex string) (common.Hash, error) {
	raw, err := util.DecodePrefixedHex(signedHex)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to decode signed transaction")
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to parse signed transaction")
	}

	var hash common.Hash
	err = c.do(ctx, "send raw transaction", func(ctx context.Context, client *ethclient.Client) error {
		return client.Client().CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw))
	})
	if err != nil {
		return common.Hash{}, err
	}

	if hash != tx.Hash() {
		util.LogFromContext(ctx).Warn().
			Str("node_hash", hash.Hex()).
			Str("local_hash", tx.Hash().Hex()).
			Msg("Node reported a different transaction hash")
	}

	return hash, nil
}
