package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout  = 10 * time.Second
	RequestIDHeader = "X-Request-ID"
)

// Client is the request/response pipeline shared by every service talking to one base URL.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	headers        http.Header
	middleware     []Middleware
	onNetworkError func(*NetworkError)
	doer           Doer
}

type Option func(*Client)

// WithTimeout overrides the 10 second request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying client. Its timeout and jar are kept as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithMiddleware appends middleware; the first registered runs outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithNetworkErrorHook is called once for every request that fails in the transport.
func WithNetworkErrorHook(fn func(*NetworkError)) Option {
	return func(c *Client) {
		c.onNetworkError = fn
	}
}

// New creates a client for baseURL with JSON defaults and a cookie jar, so credentials set by the
// server as cookies are sent back on later requests.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[httpclient.New] base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "[httpclient.New] invalid base URL")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "[httpclient.New] cookie jar")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		headers: http.Header{},
	}
	c.headers.Set("Content-Type", "application/json")
	c.headers.Set("Accept", "application/json")
	c.headers.Set("X-Requested-With", "XMLHttpRequest")

	for _, opt := range opts {
		opt(c)
	}
	c.doer = Chain(c.httpClient, c.middleware...)
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient is the client underneath the middleware chain.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

type requestOptions struct {
	query   url.Values
	headers http.Header
}

type RequestOption func(*requestOptions)

// WithQuery adds query parameters to a single request.
func WithQuery(query url.Values) RequestOption {
	return func(o *requestOptions) {
		for k, vs := range query {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithParam adds one query parameter to a single request.
func WithParam(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.query.Add(key, value)
	}
}

// WithRequestHeader sets a header on a single request.
func WithRequestHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers.Set(key, value)
	}
}

// Send performs one request. body is sent as-is when it is a []byte, otherwise it is JSON encoded.
// A transport failure returns *NetworkError, a non-2xx response returns *StatusError; errors raised
// by middleware are returned unchanged.
func (c *Client) Send(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := &requestOptions{query: url.Values{}, headers: http.Header{}}
	for _, opt := range opts {
		opt(ro)
	}

	target, err := c.resolve(path, ro.query)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.Send] marshal body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Send] new request")
	}
	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range ro.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	res, err := c.doer.Do(req)
	if err != nil {
		return nil, c.transportError(req, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.transportError(req, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newStatusError(res.StatusCode, data)
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
	}, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	var target string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target = path
	} else {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}
	if len(query) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", errors.Wrap(err, "[Client.resolve] parse url")
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// transportError converts failures of the underlying http.Client into a NetworkError. Anything
// else came from middleware and keeps its identity.
func (c *Client) transportError(req *http.Request, err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	ne := &NetworkError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	if c.onNetworkError != nil {
		c.onNetworkError(ne)
	}
	return ne
}

// Do sends a request and decodes a JSON response into T.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...RequestOption) (T, error) {
	var out T
	res, err := c.Send(ctx, method, path, body, opts...)
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, fmt.Errorf("[httpclient.Do] decode %s %s: %w", method, path, err)
	}
	return out, nil
}

func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, http.MethodGet, path, nil, opts...)
}

func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, http.MethodPost, path, body, opts...)
}

func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, http.MethodPut, path, body, opts...)
}

func Delete[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, http.MethodDelete, path, nil, opts...)
}
