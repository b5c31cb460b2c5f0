// Package corerpc implements the chain-data getters in package collect by
// using the Bitcoin Core JSON-RPC API.
package corerpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	col "github.com/bitcoinprice/utxoracle/collect"
)

// Getters verifies connectivity with the node and returns the three chain-data
// getters consumed by the collect package.
func Getters(cfg Config) (col.TipGetter, col.BlockTimeGetter, col.RawBlockGetter, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := c.getBlockCount(); err != nil {
		return nil, nil, nil, err
	}
	tip := func() (int64, error) {
		return c.getBlockCount()
	}
	blockTime := func(height int64) (int64, string, error) {
		hash, err := c.getBlockHash(height)
		if err != nil {
			return 0, "", err
		}
		hdr, err := c.getBlockHeader(hash)
		if err != nil {
			return 0, "", err
		}
		return hdr.Time, hash, nil
	}
	rawBlock := func(hash string) ([]byte, error) {
		return c.getRawBlock(hash)
	}
	return tip, blockTime, rawBlock, nil
}

type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// Path to Bitcoin Core's .cookie file; used when Username is unset.
	CookieFile string `json:"cookiefile" yaml:"cookiefile"`

	// HTTP timeout in seconds
	Timeout int `json:"timeout" yaml:"timeout"`
}

type request struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	Id      int64       `json:"id"`
}

type response struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   interface{}     `json:"error"`
	Id      int64           `json:"id"`
}

type blockHeader struct {
	Height int64 `json:"height"`
	Time   int64 `json:"time"`
}

type client struct {
	currid     int64
	httpclient *http.Client
	user, pass string
	cfg        Config
}

func newClient(cfg Config) (*client, error) {
	user, pass := cfg.Username, cfg.Password
	if user == "" && cfg.CookieFile != "" {
		var err error
		if user, pass, err = readCookie(cfg.CookieFile); err != nil {
			return nil, fmt.Errorf("reading cookie file: %v", err)
		}
	}
	c := &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	return &client{cfg: cfg, httpclient: c, user: user, pass: pass}, nil
}

// readCookie parses Core's .cookie file, which holds "user:password".
func readCookie(path string) (user, pass string, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	s := strings.TrimSpace(string(b))
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", "", fmt.Errorf("malformed cookie file %s", path)
	}
	return s[:i], s[i+1:], nil
}

func (c *client) newRequest(method string, params interface{}) *request {
	return &request{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
		Id:      atomic.AddInt64(&c.currid, 1),
	}
}

func (c *client) getBlockCount() (height int64, err error) {
	resp, err := c.send(c.newRequest("getblockcount", nil))
	if err != nil {
		return
	}
	err = json.Unmarshal(resp, &height)
	return
}

func (c *client) getBlockHash(height int64) (hash string, err error) {
	resp, err := c.send(c.newRequest("getblockhash", []int64{height}))
	if err != nil {
		return
	}
	err = json.Unmarshal(resp, &hash)
	return
}

func (c *client) getBlockHeader(hash string) (*blockHeader, error) {
	resp, err := c.send(c.newRequest("getblockheader", []interface{}{hash, true}))
	if err != nil {
		return nil, err
	}
	hdr := new(blockHeader)
	err = json.Unmarshal(resp, hdr)
	return hdr, err
}

// getRawBlock fetches the block at verbosity 0, i.e. as a hex string of the
// full serialized block.
func (c *client) getRawBlock(hash string) ([]byte, error) {
	resp, err := c.send(c.newRequest("getblock", []interface{}{hash, 0}))
	if err != nil {
		return nil, err
	}
	var blockhex string
	if err := json.Unmarshal(resp, &blockhex); err != nil {
		return nil, err
	}
	return hex.DecodeString(blockhex)
}

// Send an RPC req.
func (c *client) send(rpcreq *request) (json.RawMessage, error) {
	reqbody, err := json.Marshal(rpcreq)
	if err != nil {
		return nil, err
	}
	respbody, err := c.sendhttp(reqbody)
	if err != nil {
		return nil, err
	}
	var rpcresp response
	if err := json.Unmarshal(respbody, &rpcresp); err != nil {
		return nil, err
	}
	// Error on mismatched Id field
	if rpcresp.Id != rpcreq.Id {
		return nil, fmt.Errorf("mismatched RPC id")
	}
	if rpcresp.Error != nil {
		return nil, fmt.Errorf("%v", rpcresp.Error)
	}
	return rpcresp.Result, nil
}

// Send the HTTP request
func (c *client) sendhttp(body []byte) ([]byte, error) {
	url := "http://" + net.JoinHostPort(c.cfg.Host, c.cfg.Port)
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.pass)
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b := new(bytes.Buffer)
	if _, err := b.ReadFrom(resp.Body); err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%v: %s", resp.Status, b.Bytes())
	}

	return b.Bytes(), nil
}
