package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

type FormKind string

const (
	FormSignIn          FormKind = "sign_in"
	FormMFADeviceSelect FormKind = "mfa_device_select"
	FormOTP             FormKind = "otp"
	FormCaptcha         FormKind = "captcha"
	FormWAF             FormKind = "waf"
	FormJSBlocker       FormKind = "js_blocker"
)

// Form is one step of the sign in flow.
//
// Detect must succeed before Fill, Submit always clears the state Detect and Fill collected.
type Form interface {
	Kind() FormKind
	Critical() bool
	Detect(page *Page) bool
	Fill(ctx context.Context) error
	Submit(ctx context.Context, prev *Page) (*Page, error)
	Clear()
}

// formBase is the detect/fill/submit behavior shared by every html form step.
type formBase struct {
	session    *Session
	kind       FormKind
	critical   bool
	formQuery  selectors.Query
	errorQuery selectors.Query

	page *Page
	node *goquery.Selection
	data map[string]string
}

func (f *formBase) Kind() FormKind {
	return f.kind
}

func (f *formBase) Critical() bool {
	return f.critical
}

func (f *formBase) Clear() {
	f.page = nil
	f.node = nil
	f.data = nil
}

func (f *formBase) Detect(page *Page) bool {
	node := extract.First(page.Doc.Selection, f.formQuery)
	if node.Length() == 0 {
		return false
	}
	f.page = page
	f.node = node.First()
	return true
}

// fillInputs copies every input of the detected form into the payload.
func (f *formBase) fillInputs() error {
	if f.node == nil {
		return errs.ErrFormNotDetected
	}
	f.data = htmlutil.Inputs(f.node)
	return nil
}

// actionUrl resolves the form action against the page it was found on.
func actionUrl(prev *Page, action string) string {
	if action == "" {
		return prev.URL.String()
	}
	ref, err := url.Parse(action)
	if err != nil {
		return action
	}
	return prev.URL.ResolveReference(ref).String()
}

func (f *formBase) submit(ctx context.Context, prev *Page) (*Page, error) {
	defer f.Clear()
	if f.node == nil || f.data == nil {
		return nil, errs.ErrFormNotDetected
	}

	method := strings.ToUpper(f.node.AttrOr("method", http.MethodPost))
	target := actionUrl(prev, f.node.AttrOr("action", ""))

	page, err := f.session.authRequest(ctx, method, target, f.data)
	if err != nil {
		return nil, err
	}

	siteErr := f.siteError(page)
	if siteErr == "" {
		return page, nil
	}
	if f.critical {
		return nil, errs.AuthError{
			Message:  fmt.Sprintf("%s form was rejected", f.kind),
			SiteText: siteErr,
			Critical: true,
		}
	}
	f.session.tel.ReportWarning(report_session_form, string(f.kind), errs.SitePrefix+siteErr)
	f.session.opts.IO.Echo(errs.SitePrefix + siteErr)
	return page, nil
}

func (f *formBase) siteError(page *Page) string {
	if len(f.errorQuery) == 0 {
		return ""
	}
	return htmlutil.Text(extract.First(page.Doc.Selection, f.errorQuery))
}

type signInForm struct {
	formBase
}

func newSignInForm(s *Session) *signInForm {
	return &signInForm{formBase{
		session:    s,
		kind:       FormSignIn,
		critical:   true,
		formQuery:  s.opts.Selectors.SignInForm,
		errorQuery: s.opts.Selectors.SignInError,
	}}
}

func (f *signInForm) Fill(ctx context.Context) error {
	err := f.fillInputs()
	if err != nil {
		return err
	}
	f.data["email"] = f.session.opts.Username
	f.data["password"] = f.session.opts.Password
	f.data["rememberMe"] = "true"
	return nil
}

func (f *signInForm) Submit(ctx context.Context, prev *Page) (*Page, error) {
	return f.submit(ctx, prev)
}

type mfaDeviceSelectForm struct {
	formBase
}

func newMFADeviceSelectForm(s *Session) *mfaDeviceSelectForm {
	return &mfaDeviceSelectForm{formBase{
		session:    s,
		kind:       FormMFADeviceSelect,
		critical:   false,
		formQuery:  s.opts.Selectors.MFADeviceSelectForm,
		errorQuery: s.opts.Selectors.MFADeviceSelectError,
	}}
}

func (f *mfaDeviceSelectForm) Fill(ctx context.Context) error {
	err := f.fillInputs()
	if err != nil {
		return err
	}

	var values []string
	var labels []string
	for _, input := range extract.All(f.node, f.session.opts.Selectors.MFADeviceSelectInput) {
		value := input.AttrOr("value", "")
		if value == "" {
			continue
		}
		label := htmlutil.Text(input.Parent())
		if label == "" {
			label = value
		}
		values = append(values, value)
		labels = append(labels, label)
	}
	if len(values) == 0 {
		return errs.AuthError{Message: "no MFA devices were offered"}
	}

	choice := 0
	if len(values) > 1 {
		answer, err := f.session.opts.IO.Prompt(ctx, PromptMFADevice, "Choose where you would like your one-time passcode sent", labels)
		if err != nil {
			return err
		}
		choice, err = strconv.Atoi(strings.TrimSpace(answer))
		if err != nil || choice < 0 || choice >= len(values) {
			return errs.AuthError{Message: fmt.Sprintf("invalid MFA device choice %q", answer)}
		}
	}
	f.data["otpDeviceContext"] = values[choice]
	return nil
}

func (f *mfaDeviceSelectForm) Submit(ctx context.Context, prev *Page) (*Page, error) {
	return f.submit(ctx, prev)
}

type otpForm struct {
	formBase
}

func newOTPForm(s *Session) *otpForm {
	return &otpForm{formBase{
		session:    s,
		kind:       FormOTP,
		critical:   true,
		formQuery:  s.opts.Selectors.MFAForm,
		errorQuery: s.opts.Selectors.MFAError,
	}}
}

func (f *otpForm) Fill(ctx context.Context) error {
	err := f.fillInputs()
	if err != nil {
		return err
	}

	otp, err := f.session.opts.IO.Prompt(ctx, PromptOTP, "Enter the one-time passcode", nil)
	if err != nil {
		return err
	}

	field := "otpCode"
	if f.node.Find("input[name='code']").Length() > 0 {
		field = "code"
	}
	f.data[field] = strings.TrimSpace(otp)
	f.data["rememberDevice"] = ""
	return nil
}

func (f *otpForm) Submit(ctx context.Context, prev *Page) (*Page, error) {
	return f.submit(ctx, prev)
}

type captchaForm struct {
	formBase
}

func newCaptchaForm(s *Session) *captchaForm {
	return &captchaForm{formBase{
		session:    s,
		kind:       FormCaptcha,
		critical:   false,
		formQuery:  s.opts.Selectors.CaptchaForm,
		errorQuery: s.opts.Selectors.CaptchaError,
	}}
}

func (f *captchaForm) answerField() string {
	for _, query := range []string{
		"input[name='cvf_captcha_input']",
		"input[name='field-keywords']",
		"input[name='captchacharacters']",
		"input[type='text']",
	} {
		name := f.node.Find(query).First().AttrOr("name", "")
		if name != "" {
			return name
		}
	}
	return "cvf_captcha_input"
}

func (f *captchaForm) solve(ctx context.Context, imageUrl string) (string, error) {
	solver := f.session.opts.ImageSolver
	if solver != nil {
		res, err := f.session.client.R().SetContext(ctx).Get(imageUrl)
		if err != nil {
			return "", fmt.Errorf("fetch captcha image: %w", err)
		}
		answer, err := solver.Solve(ctx, imageUrl, res.Body())
		if err == nil && answer != "" {
			return answer, nil
		}
		if err != nil && !errors.Is(err, ErrUnsolved) {
			f.session.tel.ReportWarning(report_session_form, string(f.kind), err)
		}
	}

	f.session.opts.IO.Echo("Captcha image: " + imageUrl)
	return f.session.opts.IO.Prompt(ctx, PromptCaptcha, "Enter the characters shown in the captcha image", nil)
}

func (f *captchaForm) Fill(ctx context.Context) error {
	err := f.fillInputs()
	if err != nil {
		return err
	}

	imageField := extract.Field{
		Query:  f.session.opts.Selectors.CaptchaImage,
		Attr:   "src",
		Base:   f.page.URL.String(),
		Entity: "CaptchaForm",
		Name:   "image",
	}
	image := extract.Text(f.node, imageField)
	if !image.Present {
		// some variants render the image outside of the form
		image = extract.Text(f.page.Doc.Selection, imageField)
	}
	if !image.Present {
		return errs.AuthError{Message: "captcha form has no image"}
	}

	answer, err := f.solve(ctx, image.Value)
	if err != nil {
		return err
	}
	f.data[f.answerField()] = strings.TrimSpace(answer)
	return nil
}

func (f *captchaForm) Submit(ctx context.Context, prev *Page) (*Page, error) {
	return f.submit(ctx, prev)
}

// wafForm is the WAF interstitial, it has no html form. Its configuration is embedded in a
// script and the answer is a cookie, after which the original request is sent again.
type wafForm struct {
	formBase
	challenge *WAFChallenge
	filled    bool
}

func (f *wafForm) Clear() {
	f.formBase.Clear()
	f.challenge = nil
	f.filled = false
}

func (f *wafForm) Detect(page *Page) bool {
	query := f.session.opts.Selectors.WAFScript
	var script string
	extract.First(page.Doc.Selection, query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		script = s.Text()
		return false
	})
	if script == "" {
		return false
	}

	match := selectors.WAFPropsRegex.FindStringSubmatch(script)
	if match == nil {
		return false
	}
	var challenge WAFChallenge
	err := json5.Unmarshal([]byte(match[1]), &challenge)
	if err != nil || challenge.SiteKey == "" || challenge.IV == "" || challenge.Context == "" {
		return false
	}
	challenge.PageURL = page.URL.String()
	if js := selectors.WAFChallengeJS.FindSubmatch(page.Body); js != nil {
		challenge.ChallengeScriptURL = string(js[1])
	}

	f.challenge = &challenge
	return true
}

func (f *wafForm) Fill(ctx context.Context) error {
	if f.challenge == nil {
		return errs.ErrFormNotDetected
	}
	if f.session.opts.WAFSolver == nil {
		return errs.AuthError{Message: "a WAF challenge was encountered but no WAF solver is configured"}
	}
	f.filled = true
	return nil
}

func (f *wafForm) Submit(ctx context.Context, prev *Page) (*Page, error) {
	defer f.Clear()
	if f.challenge == nil || !f.filled {
		return nil, errs.ErrFormNotDetected
	}

	token, err := f.session.opts.WAFSolver.Solve(ctx, *f.challenge)
	if err != nil {
		return nil, errs.AuthError{Message: "WAF solver failed", Err: err}
	}
	if token == "" {
		return nil, errs.AuthError{Message: "WAF solver response did not include a token"}
	}
	f.session.setCookie(f.session.opts.Constants.WAFCookieName, token)
	f.session.tel.ReportDebug("WAF token set, retrying request", prev.requestUrl)

	return f.session.replay(ctx, prev)
}

// jsBlockerForm detects pages that refuse to continue without javascript, there is no way past
// them so submitting always fails.
type jsBlockerForm struct {
	formBase
	detected bool
}

func (f *jsBlockerForm) Clear() {
	f.detected = false
}

func (f *jsBlockerForm) Detect(page *Page) bool {
	if extract.Matches(page.Doc.Selection, f.session.opts.Selectors.JSRequired) ||
		selectors.JSRequiredRegex.Match(page.Body) {
		f.detected = true
		return true
	}
	return false
}

func (f *jsBlockerForm) Fill(ctx context.Context) error {
	if !f.detected {
		return errs.ErrFormNotDetected
	}
	return nil
}

func (f *jsBlockerForm) Submit(ctx context.Context, prev *Page) (*Page, error) {
	defer f.Clear()
	return nil, errs.AuthError{Message: fmt.Sprintf("a javascript-only page blocked sign in at %s", prev.URL)}
}
