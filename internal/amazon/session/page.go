package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed response along with the request that produced it.
type Page struct {
	// URL is where the response came from after following redirects.
	URL    *url.URL
	Status int
	Body   []byte
	Doc    *goquery.Document

	method     string
	requestUrl string
	form       map[string]string
}

func (s *Session) writeDebugPage(page *Page) {
	if s.opts.Output == nil {
		return
	}
	s.pageCounter++
	s.opts.Output.WritePage(s.Id+"-"+strconv.Itoa(s.pageCounter), page.Body)
}

// do performs a request with no checks on the response besides it being html.
func (s *Session) do(ctx context.Context, method, target string, form map[string]string) (*Page, error) {
	req := s.client.R().SetContext(ctx)
	if len(form) > 0 {
		if method == http.MethodGet {
			req.SetQueryParams(form)
		} else {
			req.SetFormData(form)
		}
	}

	res, err := req.Execute(method, target)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}

	finalUrl := res.Request.RawRequest.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL
	}
	doc, err := htmlutil.ParseDocument(res.Body(), finalUrl)
	if err != nil {
		s.tel.ReportBroken(report_session_request, fmt.Errorf("parse %s: %w", finalUrl, err))
		return nil, err
	}

	page := &Page{
		URL:        finalUrl,
		Status:     res.StatusCode(),
		Body:       res.Body(),
		Doc:        doc,
		method:     method,
		requestUrl: target,
		form:       form,
	}
	s.writeDebugPage(page)
	return page, nil
}

// replay sends the request that produced `page` again.
func (s *Session) replay(ctx context.Context, page *Page) (*Page, error) {
	return s.do(ctx, page.method, page.requestUrl, page.form)
}

// authRequest is a request made while signing in, server errors there mean the site is
// blocking or throttling us.
func (s *Session) authRequest(ctx context.Context, method, target string, form map[string]string) (*Page, error) {
	page, err := s.do(ctx, method, target, form)
	if err != nil {
		return nil, errs.AuthError{Message: "sign in request failed", Err: err}
	}
	if page.Status >= 500 {
		return nil, errs.AuthError{
			Message: "the site may be blocking or throttling sign in",
			Err:     errs.StatusError{URL: page.URL.String(), Status: page.Status},
		}
	}
	return page, nil
}

func (s *Session) isSignInPage(page *Page) bool {
	return s.opts.Constants.IsSignInURL(page.URL) ||
		extract.Matches(page.Doc.Selection, s.opts.Selectors.SignInForm)
}

// Get fetches an authenticated page.
func (s *Session) Get(ctx context.Context, target string) (*Page, error) {
	return s.Content(ctx, http.MethodGet, target, nil)
}

// Post submits a form to an authenticated page.
func (s *Session) Post(ctx context.Context, target string, form map[string]string) (*Page, error) {
	return s.Content(ctx, http.MethodPost, target, form)
}

// Content makes a request that requires being signed in. WAF challenges are solved along the
// way, being sent back to sign in marks the session as unauthenticated and returns
// errs.SessionExpiredError.
func (s *Session) Content(ctx context.Context, method, target string, form map[string]string) (*Page, error) {
	if !s.authenticated {
		return nil, errs.ErrNotAuthenticated
	}

	page, err := s.do(ctx, method, target, form)
	if err != nil {
		return nil, err
	}

	for attempt := 0; s.waf.Detect(page); attempt++ {
		if attempt >= s.opts.MaxCookieAttempts {
			s.waf.Clear()
			return nil, errs.AuthError{Message: fmt.Sprintf("WAF challenge still present after %d attempts", attempt)}
		}
		page, err = runForm(ctx, s.waf, page)
		if err != nil {
			return nil, err
		}
	}

	if s.isSignInPage(page) {
		s.authenticated = false
		s.state = Unauthenticated
		s.tel.ReportWarning(report_session_request, "session expired", target)
		return nil, errs.SessionExpiredError{URL: page.URL.String()}
	}
	if page.Status >= 400 {
		return nil, errs.StatusError{URL: page.URL.String(), Status: page.Status}
	}
	return page, nil
}

// RetryOnExpiry runs fn, when it fails because the session expired the session signs in again
// and fn runs once more.
func (s *Session) RetryOnExpiry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	var expired errs.SessionExpiredError
	if !errors.As(err, &expired) {
		return err
	}
	s.tel.ReportDebug("reauthenticating after expiry", expired.URL)
	err = s.Reauthenticate(ctx)
	if err != nil {
		return err
	}
	return fn(ctx)
}
