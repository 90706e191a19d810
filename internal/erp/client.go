// Package erp is the JSON-RPC access layer for the ERP backend. It manages a
// lazily established service-account session and exposes the generic CRUD
// primitives every feature is built on.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"hrgate-backend/internal/config"
)

// Identity is the acting identity for a call. The zero value means the
// service account established by Authenticate.
type Identity struct {
	UID      int64
	Password string
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i.UID == 0 }

// Record is a generic ERP record as returned by read/search_read.
type Record map[string]any

// Client talks to the ERP's JSON-RPC endpoint. The cached session uid is
// process-wide and shared by all requests; it is re-acquired once when a call
// fails with an access-denied fault.
type Client struct {
	url      string
	database string
	username string
	password string

	httpClient *http.Client
	logger     *slog.Logger

	mu  sync.Mutex
	uid int64

	reqID atomic.Int64
}

// NewClient builds a client from configuration. No connection is made until
// the first call.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	return &Client{
		url:      cfg.ERPURL,
		database: cfg.ERPDatabase,
		username: cfg.ERPUsername,
		password: cfg.ERPPassword,
		// No per-call timeout: a long-running remote method must not be cut
		// off mid-write. Callers cancel via ctx.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp transport: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode rpc response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	return decoded.Result, nil
}

// Authenticate establishes the service-account session. Idempotent: repeated
// calls return the cached uid without another round trip.
func (c *Client) Authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}
	uid, err := c.login(ctx, c.username, c.password)
	if err != nil {
		return 0, err
	}
	c.uid = uid
	c.logger.Info("erp session established", "uid", uid)
	return uid, nil
}

// Login verifies arbitrary user credentials against the ERP and returns that
// user's uid. Used by the auth flow; does not touch the cached session.
func (c *Client) Login(ctx context.Context, login, password string) (int64, error) {
	return c.login(ctx, login, password)
}

func (c *Client) login(ctx context.Context, login, password string) (int64, error) {
	result, err := c.call(ctx, "common", "login", []any{c.database, login, password})
	if err != nil {
		return 0, err
	}
	var uid int64
	if err := json.Unmarshal(result, &uid); err != nil {
		// The ERP answers `false` for bad credentials rather than a fault.
		return 0, ErrAuthenticationFailed
	}
	if uid == 0 {
		return 0, ErrAuthenticationFailed
	}
	return uid, nil
}

// invalidateSession drops the cached uid so the next call re-authenticates.
func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.uid = 0
	c.mu.Unlock()
}

// ExecuteKw invokes method on model under the given identity. A zero identity
// runs as the service account. Fails with *RPCError on any remote fault; no
// automatic retry beyond a single re-authentication when the service session
// was rejected.
func (c *Client) ExecuteKw(ctx context.Context, as Identity, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.executeKw(ctx, as, model, method, args, kwargs)
	callDuration.WithLabelValues(model, method).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	callsTotal.WithLabelValues(model, method, outcome).Inc()
	return result, err
}

func (c *Client) executeKw(ctx context.Context, as Identity, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	uid, password := as.UID, as.Password
	if as.IsZero() {
		var err error
		uid, err = c.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		password = c.password
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	callArgs := []any{c.database, uid, password, model, method, args, kwargs}
	result, err := c.call(ctx, "object", "execute_kw", callArgs)
	if err != nil && as.IsZero() && IsAccessDenied(err) {
		// Service session was revoked remotely; re-acquire once and retry.
		c.invalidateSession()
		uid, authErr := c.Authenticate(ctx)
		if authErr != nil {
			return nil, authErr
		}
		callArgs[1] = uid
		result, err = c.call(ctx, "object", "execute_kw", callArgs)
	}
	return result, err
}

// Search runs a two-phase search-then-read. Returns an empty slice without a
// read round trip when no ids match: reading with an empty id set is treated
// specially by the remote protocol.
func (c *Client) Search(ctx context.Context, as Identity, model string, domain []any, fields []string, limit int) ([]Record, error) {
	kwargs := map[string]any{}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	raw, err := c.ExecuteKw(ctx, as, model, "search", []any{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode search ids: %w", err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	return c.Read(ctx, as, model, ids, fields)
}

// Read fetches the given fields for a set of record ids.
func (c *Client) Read(ctx context.Context, as Identity, model string, ids []int64, fields []string) ([]Record, error) {
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	raw, err := c.ExecuteKw(ctx, as, model, "read", []any{ids}, kwargs)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode read result: %w", err)
	}
	return records, nil
}

// SearchRead runs a combined search+read in a single round trip. Order is
// remote-defined unless kwargs carries an explicit "order".
func (c *Client) SearchRead(ctx context.Context, as Identity, model string, domain []any, fields []string, limit int, kwargs map[string]any) ([]Record, error) {
	merged := map[string]any{}
	for k, v := range kwargs {
		merged[k] = v
	}
	if len(fields) > 0 {
		merged["fields"] = fields
	}
	if limit > 0 {
		merged["limit"] = limit
	}
	raw, err := c.ExecuteKw(ctx, as, model, "search_read", []any{domain}, merged)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode search_read result: %w", err)
	}
	return records, nil
}

// SearchCount returns the number of records matching domain.
func (c *Client) SearchCount(ctx context.Context, as Identity, model string, domain []any) (int64, error) {
	raw, err := c.ExecuteKw(ctx, as, model, "search_count", []any{domain}, nil)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := json.Unmarshal(raw, &count); err != nil {
		return 0, fmt.Errorf("decode search_count result: %w", err)
	}
	return count, nil
}

// Create inserts a record and returns its id. context entries (if any) are
// passed through to the remote execution context.
func (c *Client) Create(ctx context.Context, as Identity, model string, values map[string]any, execCtx map[string]any) (int64, error) {
	kwargs := map[string]any{}
	if len(execCtx) > 0 {
		kwargs["context"] = execCtx
	}
	raw, err := c.ExecuteKw(ctx, as, model, "create", []any{values}, kwargs)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("decode create result: %w", err)
	}
	return id, nil
}

// Write mutates one or more records.
func (c *Client) Write(ctx context.Context, as Identity, model string, values map[string]any, ids ...int64) error {
	_, err := c.ExecuteKw(ctx, as, model, "write", []any{ids, values}, nil)
	return err
}

// Unlink deletes one or more records.
func (c *Client) Unlink(ctx context.Context, as Identity, model string, ids ...int64) error {
	_, err := c.ExecuteKw(ctx, as, model, "unlink", []any{ids}, nil)
	return err
}

// CallMethod invokes a named business action on a set of records. The result
// schema varies per method; callers decode the raw payload themselves.
func (c *Client) CallMethod(ctx context.Context, as Identity, model, method string, ids []int64, execCtx map[string]any) (json.RawMessage, error) {
	kwargs := map[string]any{}
	if len(execCtx) > 0 {
		kwargs["context"] = execCtx
	}
	return c.ExecuteKw(ctx, as, model, method, []any{ids}, kwargs)
}

// Health verifies the ERP endpoint answers the version handshake.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.call(ctx, "common", "version", []any{})
	return err
}
