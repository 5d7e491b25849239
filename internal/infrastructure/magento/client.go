package magento

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/magesync/backend/internal/domain/integration"
)

// Client talks to the Magento SOAP v2 API. It is safe for concurrent use;
// all calls share one connection pool and one rate limiter.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Ensure Client implements the RemoteCatalog port
var _ integration.RemoteCatalog = (*Client)(nil)

// NewClient creates a client. Missing credentials do not fail construction;
// they surface as ErrAuthFailed on the first Login.
func NewClient(config Config, logger *zap.Logger) *Client {
	config.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithSpanNameFormatter(soapSpanName)),
		},
		limiter: limiter,
		logger:  logger.Named("magento"),
	}
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// Login opens a remote session. Every failure, transport included, is
// reported as ErrAuthFailed since no progress is possible without a token.
func (c *Client) Login(ctx context.Context) (string, error) {
	cfg := c.config
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	resp, err := c.call(ctx, "login",
		stringParam("username", cfg.Username),
		stringParam("apiKey", cfg.APIKey),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", integration.ErrAuthFailed, err)
	}

	payload, _ := payloadOf(resp)
	token := strings.TrimSpace(payload.value())
	if len(token) <= minTokenLength {
		return "", fmt.Errorf("%w: login returned no usable session id", integration.ErrAuthFailed)
	}
	return token, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// SalesOrderList lists orders updated at or after since
func (c *Client) SalesOrderList(ctx context.Context, token string, since time.Time) ([]integration.RawRecord, error) {
	resp, err := c.call(ctx, "salesOrderList",
		stringParam("sessionId", token),
		updatedSinceParam("filters", since),
	)
	if err != nil {
		return nil, err
	}
	return decodeList(resp), nil
}

// SalesOrderInfo fetches one order with its items
func (c *Client) SalesOrderInfo(ctx context.Context, token, incrementID string) (integration.RawRecord, error) {
	resp, err := c.call(ctx, "salesOrderInfo",
		stringParam("sessionId", token),
		stringParam("orderIncrementId", incrementID),
	)
	if err != nil {
		return integration.RawRecord{}, err
	}
	return decodeRecord(resp)
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// CustomerList lists customers updated at or after since
func (c *Client) CustomerList(ctx context.Context, token string, since time.Time) ([]integration.RawRecord, error) {
	resp, err := c.call(ctx, "customerCustomerList",
		stringParam("sessionId", token),
		updatedSinceParam("filters", since),
	)
	if err != nil {
		return nil, err
	}
	return decodeList(resp), nil
}

// CustomerAddressInfo fetches one customer address
func (c *Client) CustomerAddressInfo(ctx context.Context, token, addressID string) (integration.RawRecord, error) {
	resp, err := c.call(ctx, "customerAddressInfo",
		stringParam("sessionId", token),
		stringParam("addressId", addressID),
	)
	if err != nil {
		return integration.RawRecord{}, err
	}
	return decodeRecord(resp)
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// CatalogProductList lists every product of a store view
func (c *Client) CatalogProductList(ctx context.Context, token, storeView string) ([]integration.RawRecord, error) {
	resp, err := c.call(ctx, "catalogProductList",
		stringParam("sessionId", token),
		nilParam("filters"),
		optionalParam("storeView", storeView),
	)
	if err != nil {
		return nil, err
	}
	return decodeList(resp), nil
}

// CatalogProductInfo fetches one product by id or sku
func (c *Client) CatalogProductInfo(ctx context.Context, token, identifier, storeView string, idType integration.IdentifierType) (integration.RawRecord, error) {
	if !idType.IsValid() {
		idType = integration.IdentifierTypeID
	}
	resp, err := c.call(ctx, "catalogProductInfo",
		stringParam("sessionId", token),
		stringParam("productId", identifier),
		optionalParam("storeView", storeView),
		nilParam("attributes"),
		stringParam("identifierType", string(idType)),
	)
	if err != nil {
		return integration.RawRecord{}, err
	}
	return decodeRecord(resp)
}

// StockItemList fetches the stock items of several products in one call
func (c *Client) StockItemList(ctx context.Context, token string, productIDs []string) ([]integration.RawRecord, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	resp, err := c.call(ctx, "catalogInventoryStockItemList",
		stringParam("sessionId", token),
		arrayParam("products", productIDs),
	)
	if err != nil {
		return nil, err
	}
	return decodeList(resp), nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// soapSpanName names client spans after the SOAP operation
func soapSpanName(_ string, r *http.Request) string {
	return "magento." + strings.TrimPrefix(r.Header.Get("SOAPAction"), "urn:Magento#")
}

// call performs one SOAP operation and returns its response element.
// A fault in the body wins over the HTTP status, so that a session fault
// delivered with a 500 is still recognised as such.
func (c *Client) call(ctx context.Context, operation string, params ...param) (*xmlNode, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := renderEnvelope(operation, params)
	if err != nil {
		return nil, fmt.Errorf("magento: failed to render %s envelope: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("magento: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:Magento#"+operation)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", integration.ErrRemoteHTTP, operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %v", integration.ErrRemoteHTTP, operation, err)
	}

	c.logger.Debug("SOAP call",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("latency", time.Since(started)),
	)

	root, parseErr := parseXML(data)
	if parseErr == nil {
		if fault := faultOf(root); fault != nil {
			return nil, fmt.Errorf("magento %s: %w", operation, fault)
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &integration.RemoteHTTPError{
			StatusCode: resp.StatusCode,
			Body:       excerpt(data, errorExcerptBytes),
		}
	}

	if parseErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", integration.ErrRemoteParse, operation, parseErr)
	}
	return responseOf(root)
}

// excerpt returns at most n bytes of data without splitting a rune
func excerpt(data []byte, n int) string {
	s := strings.TrimSpace(string(data))
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
