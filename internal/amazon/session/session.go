package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/components/assert"
	"amazon-orders/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	report_session_login   = "session.login"
	report_session_logout  = "session.logout"
	report_session_form    = "session.form"
	report_session_cookies = "session.cookies"
	report_session_request = "session.request"
)

// maxChallengeSteps bounds how many forms a single login attempt walks through.
const maxChallengeSteps = 25

type AuthState int

const (
	Unauthenticated AuthState = iota
	ChallengeInProgress
	Authenticated
	Failed
)

func (s AuthState) String() string {
	switch s {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case ChallengeInProgress:
		return "CHALLENGE_IN_PROGRESS"
	case Authenticated:
		return "AUTHENTICATED"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

type Options struct {
	Username string
	Password string

	Constants selectors.Constants
	Selectors selectors.Selectors

	MaxAuthAttempts    int
	AuthRetryWait      time.Duration
	MaxCookieAttempts  int
	RequestTimeout     time.Duration
	RequestsPerSecond  float64
	ConnectionPoolSize int

	// WarnOnMissingRequired is handed to the entity parsers.
	WarnOnMissingRequired bool
	// Output receives request/response dumps and raw pages, it may be nil.
	Output *telemetry.FilesystemOutput

	CookieStore CookieStore
	IO          IO
	ImageSolver ImageSolver
	WAFSolver   WAFSolver
}

// Session is a signed in (or signing in) browser-like client. It is not safe for concurrent use,
// every request mutates the cookie jar.
type Session struct {
	Id string

	opts    Options
	baseUrl *url.URL
	client  *resty.Client
	jar     *cookiejar.Jar
	tel     telemetry.API
	forms   []Form
	waf     *wafForm

	state         AuthState
	authenticated bool
	pageCounter   int
}

// New creates a Session and seeds its cookie jar from the cookie store, if the stored cookies
// carry an auth marker the session starts out authenticated.
func New(ctx context.Context, opts Options, tel telemetry.API) (*Session, error) {
	assert.NotNil(tel)
	assert.NotNil(opts.CookieStore)
	assert.NotNil(opts.IO)
	assert.NotEmptyStr(opts.Constants.BaseURL)

	if opts.MaxAuthAttempts <= 0 {
		opts.MaxAuthAttempts = 1
	}
	if opts.MaxCookieAttempts <= 0 {
		opts.MaxCookieAttempts = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	baseUrl, err := url.Parse(opts.Constants.BaseURL)
	if err != nil {
		return nil, errs.Configf("base url %q: %s", opts.Constants.BaseURL, err.Error())
	}

	s := &Session{
		Id:      uuid.NewString(),
		opts:    opts,
		baseUrl: baseUrl,
		tel:     telemetry.NewScopedAPI("amazon_session", tel),
	}
	err = s.newClient()
	if err != nil {
		return nil, err
	}

	s.waf = &wafForm{formBase: formBase{session: s, kind: FormWAF, critical: true}}
	s.forms = []Form{
		s.waf,
		&jsBlockerForm{formBase: formBase{session: s, kind: FormJSBlocker, critical: true}},
		newSignInForm(s),
		newMFADeviceSelectForm(s),
		newOTPForm(s),
		newCaptchaForm(s),
	}

	cookies, err := opts.CookieStore.Load(ctx)
	if err != nil {
		s.tel.ReportBroken(report_session_cookies, fmt.Errorf("load: %w", err))
		return nil, err
	}
	if len(cookies) > 0 {
		s.seedCookies(cookies)
		if s.hasAuthCookie() {
			s.authenticated = true
			s.state = Authenticated
			s.tel.ReportDebug("authenticated from stored cookies", len(cookies))
		}
	}

	return s, nil
}

func (s *Session) newClient() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	client := resty.New()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.opts.ConnectionPoolSize > 0 {
		transport.MaxIdleConnsPerHost = s.opts.ConnectionPoolSize
		transport.MaxConnsPerHost = s.opts.ConnectionPoolSize
	}
	client.SetTransport(cloudflarebp.AddCloudFlareByPass(transport))
	client.SetCookieJar(jar)
	client.SetTimeout(s.opts.RequestTimeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	client.SetHeader("User-Agent", s.opts.Constants.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	client.SetHeader("Accept-Language", s.opts.Constants.AcceptLanguage)
	client.SetHeader("Origin", s.opts.Constants.BaseURL)

	if s.opts.RequestsPerSecond > 0 {
		burst := int(s.opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(s.opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	var output telemetry.Output
	if s.opts.Output != nil {
		output = *s.opts.Output
	}
	telemetry.InstrumentResty(client, s.tel, output)

	s.client = client
	s.jar = jar
	return nil
}

func (s *Session) State() AuthState {
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.authenticated
}

func (s *Session) Constants() selectors.Constants {
	return s.opts.Constants
}

func (s *Session) Selectors() selectors.Selectors {
	return s.opts.Selectors
}

// EntityContext is the parsing context of pages fetched through this session.
func (s *Session) EntityContext() entity.Context {
	return entity.NewContext(s.opts.Selectors, s.opts.Constants, s.tel, s.opts.WarnOnMissingRequired)
}

func (s *Session) seedCookies(cookies map[string]string) {
	var list []*http.Cookie
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	s.jar.SetCookies(s.baseUrl, list)
}

// Cookies returns the cookies the jar would send to the site.
func (s *Session) Cookies() map[string]string {
	out := map[string]string{}
	for _, c := range s.jar.Cookies(s.baseUrl) {
		out[c.Name] = c.Value
	}
	return out
}

func (s *Session) setCookie(name, value string) {
	s.jar.SetCookies(s.baseUrl, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// dropAuthCookies expires the auth markers so that only a marker set during sign in counts.
func (s *Session) dropAuthCookies() {
	var expired []*http.Cookie
	for _, name := range s.opts.Constants.AuthCookieNames {
		expired = append(expired, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
	}
	s.jar.SetCookies(s.baseUrl, expired)
}

func (s *Session) hasAuthCookie() bool {
	cookies := s.Cookies()
	for _, name := range s.opts.Constants.AuthCookieNames {
		if cookies[name] != "" {
			return true
		}
	}
	return false
}

// AuthCookiesPresent reports whether the jar holds an auth marker cookie, it says nothing about
// whether the site still accepts it.
func (s *Session) AuthCookiesPresent() bool {
	return s.hasAuthCookie()
}

func (s *Session) persistCookies(ctx context.Context) {
	err := s.opts.CookieStore.Save(ctx, s.Cookies())
	if err != nil {
		s.tel.ReportBroken(report_session_cookies, fmt.Errorf("save: %w", err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Login walks the sign in flow until the site sets an auth cookie. The whole flow is retried up
// to MaxAuthAttempts times, except when the site rejects the credentials.
func (s *Session) Login(ctx context.Context) error {
	if s.authenticated {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAuthAttempts; attempt++ {
		if attempt > 1 {
			err := sleep(ctx, s.opts.AuthRetryWait)
			if err != nil {
				s.state = Failed
				return err
			}
		}

		s.state = ChallengeInProgress
		err := s.attemptLogin(ctx)
		if err == nil {
			s.authenticated = true
			s.state = Authenticated
			s.persistCookies(ctx)
			s.tel.ReportDebug("login succeeded", attempt)
			return nil
		}
		lastErr = err

		var authErr errs.AuthError
		if errors.As(err, &authErr) && authErr.Critical {
			s.state = Failed
			return err
		}
		if ctx.Err() != nil {
			s.state = Failed
			return err
		}
		s.tel.ReportWarning(report_session_login, attempt, err)
	}

	s.state = Failed
	return errs.AuthError{
		Message:   fmt.Sprintf("authentication attempts exhausted (%d)", s.opts.MaxAuthAttempts),
		Exhausted: true,
		Err:       lastErr,
	}
}

func (s *Session) detectForm(page *Page) Form {
	for _, form := range s.forms {
		if form.Detect(page) {
			return form
		}
	}
	return nil
}

func runForm(ctx context.Context, form Form, page *Page) (*Page, error) {
	defer form.Clear()
	err := form.Fill(ctx)
	if err != nil {
		return nil, err
	}
	return form.Submit(ctx, page)
}

func (s *Session) attemptLogin(ctx context.Context) error {
	s.dropAuthCookies()
	page, err := s.authRequest(ctx, http.MethodGet, s.opts.Constants.SignInURL(), nil)
	if err != nil {
		return err
	}

	for step := 0; step < maxChallengeSteps; step++ {
		form := s.detectForm(page)
		if form == nil {
			if s.hasAuthCookie() {
				return nil
			}
			if selectors.JSRequiredRegex.Match(page.Body) {
				return errs.AuthError{Message: "a javascript-only page blocked sign in"}
			}
			return errs.AuthError{Message: fmt.Sprintf("sign in did not complete, no known form on %s", page.URL)}
		}

		s.tel.ReportDebug("challenge form", string(form.Kind()), page.URL.String())
		page, err = runForm(ctx, form, page)
		if err != nil {
			return err
		}
	}
	return errs.AuthError{Message: fmt.Sprintf("sign in did not complete after %d challenge steps", maxChallengeSteps)}
}

// Logout signs out, empties the cookie jar and clears the cookie store.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, s.opts.Constants.SignOutURL(), nil)
	if err != nil {
		s.tel.ReportWarning(report_session_logout, err)
	}

	err = s.newClient()
	if err != nil {
		return err
	}
	s.authenticated = false
	s.state = Unauthenticated

	err = s.opts.CookieStore.Clear(ctx)
	if err != nil {
		s.tel.ReportBroken(report_session_cookies, fmt.Errorf("clear: %w", err))
		return err
	}
	return nil
}

// Reauthenticate logs out and back in, used to recover from an expired session.
func (s *Session) Reauthenticate(ctx context.Context) error {
	err := s.Logout(ctx)
	if err != nil {
		return err
	}
	return s.Login(ctx)
}

// CheckSession asks the site whether the current cookies are still signed in.
func (s *Session) CheckSession(ctx context.Context) (bool, error) {
	if !s.authenticated {
		return false, nil
	}
	_, err := s.Get(ctx, s.opts.Constants.OrderHistoryURL("last30", 0))
	var expired errs.SessionExpiredError
	if errors.As(err, &expired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
