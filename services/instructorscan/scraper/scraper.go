// Package scraper logs into the club's booking site and turns its
// roster and booking endpoints into availability snapshots.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"instructorscan-backend/lib/htmlutil"
	"instructorscan-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var ErrLoginFailed = fmt.Errorf("the booking site rejected the login")

// StatusError is any non-2xx response from the booking site.
type StatusError struct {
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("booking site returned status %d", e.StatusCode)
}

const (
	usernameField = "txtEmailMM"
	passwordField = "txtPasswordMM"
	loginFormName = "login"
)

type ClientOptions struct {
	RootUrl  string `json:"root_url"`
	Username string `json:"username"`
	Password string `json:"password"`
	// paths relative to RootUrl
	LoginPage     string `json:"login_page"`
	LoginEndpoint string `json:"login_endpoint"`
}

// Client owns one authenticated session against the booking site. The
// session is established lazily on first use and lives in the cookie
// jar until Reset or Close.
type Client struct {
	http     *resty.Client
	opts     ClientOptions
	loggedIn bool
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.RootUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.RootUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "instructorscan/http")

	return &Client{
		http: client,
		opts: opts,
	}, nil
}

// EnsureLogin logs in on the first call and is a no-op afterwards. A
// single client never re-logs-in mid scan unless Reset explicitly
// discards the session.
func (c *Client) EnsureLogin(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	err := c.login(ctx)
	if err != nil {
		return err
	}
	c.loggedIn = true
	return nil
}

func (c *Client) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(c.opts.LoginPage)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return fmt.Errorf("fetch login page: %w", err)
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "login page returned an error status")
		return fmt.Errorf("fetch login page: %w", StatusError{res.StatusCode()})
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return fmt.Errorf("parse login page: %w", err)
	}

	// the site serves a pile of hidden inputs that must be echoed back
	// verbatim, so every field is read generically and only the
	// credential fields are overridden
	fields, err := htmlutil.FormInputs(doc, loginFormName)
	if err != nil {
		span.SetStatus(codes.Error, "failed to find login form")
		return fmt.Errorf("%w: %s", ErrLoginFailed, err)
	}
	fields[usernameField] = c.opts.Username
	fields[passwordField] = c.opts.Password

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(c.opts.LoginEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return fmt.Errorf("submit login: %w", err)
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return fmt.Errorf("%w: %s", ErrLoginFailed, StatusError{res.StatusCode()})
	}

	return nil
}

// PostForm issues an authenticated form-encoded POST and returns the
// response body.
func (c *Client) PostForm(ctx context.Context, endpoint string, fields map[string]string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(endpoint)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, StatusError{res.StatusCode()}
	}
	return res.Body(), nil
}

// PostEmpty issues an authenticated POST with no body.
func (c *Client) PostEmpty(ctx context.Context, endpoint string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Post(endpoint)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, StatusError{res.StatusCode()}
	}
	return res.Body(), nil
}

// Reset discards the authenticated session so the next request logs in
// again.
func (c *Client) Reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c.http.SetCookieJar(jar)
	c.loggedIn = false
	return nil
}

// Close releases the underlying transport. The client is not usable
// afterwards.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
	c.loggedIn = false
}
