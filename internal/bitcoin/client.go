package bitcoin

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// Client wraps the Bitcoin Core RPC connection used to feed the
// co-spend miner: blocks are fetched with previous-output metadata so
// each transaction can be turned into a set of spending addresses.
type Client struct {
	RPC    *rpcclient.Client
	Config Config
}

type Config struct {
	Host string
	User string
	Pass string
}

// NewClient connects to the node and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true, // Bitcoin Core only supports HTTP POST mode
		DisableTLS:   true, // local node without TLS
	}

	log.Printf("Connecting to Bitcoin RPC at %s...", cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}

	blockCount, err := client.GetBlockCount()
	if err != nil {
		client.Shutdown()
		return nil, err
	}
	log.Printf("Connected to Bitcoin Node. Current Block Height: %d", blockCount)

	return &Client{RPC: client, Config: cfg}, nil
}

func (c *Client) Shutdown() {
	c.RPC.Shutdown()
}

// GetBlockCount returns the current chain height.
func (c *Client) GetBlockCount() (int64, error) {
	return c.RPC.GetBlockCount()
}

// blockVerbose3 is the slice of the verbosity-3 getblock response the
// scanner needs: for every transaction the addresses of the previous
// outputs its inputs spend. Verbosity 3 (Core >= 25) inlines the
// prevout, which avoids a second lookup per input.
type blockVerbose3 struct {
	Height int64 `json:"height"`
	Tx     []struct {
		Txid string `json:"txid"`
		Vin  []struct {
			Coinbase string `json:"coinbase"`
			Prevout  *struct {
				Value        float64 `json:"value"`
				ScriptPubKey struct {
					Address string `json:"address"`
				} `json:"scriptPubKey"`
			} `json:"prevout"`
		} `json:"vin"`
	} `json:"tx"`
}

// BlockInputAddresses returns, for each non-coinbase transaction of
// the block at the given height, the distinct addresses whose coins
// the transaction spends.
func (c *Client) BlockInputAddresses(height int64) ([][]string, error) {
	hash, err := c.RPC.GetBlockHash(height)
	if err != nil {
		return nil, fmt.Errorf("getblockhash %d: %v", height, err)
	}
	raw, err := c.RPC.RawRequest("getblock", []json.RawMessage{
		mustJSON(hash.String()),
		json.RawMessage(`3`),
	})
	if err != nil {
		return nil, fmt.Errorf("getblock %s: %v", hash, err)
	}
	var blk blockVerbose3
	if err := json.Unmarshal(raw, &blk); err != nil {
		return nil, fmt.Errorf("decode block %s: %v", hash, err)
	}
	out := make([][]string, 0, len(blk.Tx))
	for _, tx := range blk.Tx {
		seen := make(map[string]bool)
		var addrs []string
		coinbase := false
		for _, in := range tx.Vin {
			if in.Coinbase != "" {
				coinbase = true
				break
			}
			if in.Prevout == nil {
				continue
			}
			a := in.Prevout.ScriptPubKey.Address
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			addrs = append(addrs, a)
		}
		if coinbase || len(addrs) == 0 {
			continue
		}
		out = append(out, addrs)
	}
	return out, nil
}

// GetBlockHash exposes the hash lookup for callers that track
// progress by hash.
func (c *Client) GetBlockHash(height int64) (*chainhash.Hash, error) {
	return c.RPC.GetBlockHash(height)
}

// BTCToSats converts a float64 BTC value to satoshis using
// btcutil.NewAmount, which rounds correctly instead of truncating.
func BTCToSats(btc float64) int64 {
	amt, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0
	}
	return int64(amt)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
