package session

import (
	"context"
	"errors"
)

// ErrUnsolved is returned by an ImageSolver that could not read the image, the captcha is then
// shown to a human instead.
var ErrUnsolved = errors.New("captcha could not be solved")

// ImageSolver reads the text out of a captcha image.
type ImageSolver interface {
	Solve(ctx context.Context, imageUrl string, image []byte) (string, error)
}

// WAFChallenge is the configuration embedded in a WAF interstitial.
type WAFChallenge struct {
	SiteKey            string `json:"key"`
	IV                 string `json:"iv"`
	Context            string `json:"context"`
	PageURL            string `json:"-"`
	ChallengeScriptURL string `json:"-"`
}

// WAFSolver exchanges a WAF challenge for the token the site expects in its WAF cookie. An error
// means the solver failed, an empty token means it succeeded but produced nothing usable.
type WAFSolver interface {
	Solve(ctx context.Context, challenge WAFChallenge) (string, error)
}
