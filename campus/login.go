package campus

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AuthState is the session's authentication state as decided by probing.
// It is derived, never stored across runs: the platform has no reliable
// "is logged in" signal, so the detector recomputes it on every attempt.
type AuthState int

const (
	StateUnknown AuthState = iota
	StateAtSignIn
	StateAtProvider
	StateAuthenticated
	StateUndetermined
)

func (s AuthState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAtSignIn:
		return "at_sign_in"
	case StateAtProvider:
		return "at_provider"
	case StateAuthenticated:
		return "authenticated"
	case StateUndetermined:
		return "undetermined"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// LoginDetector drives a session to the platform's authenticated landing
// state. It is a decision tree over cheap bounded probes rather than one
// long wait: an already-authenticated session must never pay the full
// identity-provider round-trip timeout.
type LoginDetector struct {
	page  Page
	cfg   *Config
	log   *slog.Logger
	state AuthState
}

// NewLoginDetector creates a detector for one login attempt.
func NewLoginDetector(page Page, cfg *Config) *LoginDetector {
	return &LoginDetector{page: page, cfg: cfg, log: cfg.Logger, state: StateUnknown}
}

// State returns the state the last Run ended in.
func (d *LoginDetector) State() AuthState { return d.state }

// Run executes the handshake: navigate to the platform root, decide the
// authentication state by probing, and either short-circuit (already
// authenticated) or perform the identity-provider round trip.
//
// Credentials are checked before any navigation; their absence fails fast
// without contacting the page.
func (d *LoginDetector) Run(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrConfiguration)
	}

	d.state = StateUnknown
	if err := d.page.Navigate(ctx, d.cfg.BaseURL); err != nil {
		return fmt.Errorf("%w: navigate to platform root: %v", ErrAuthentication, err)
	}

	// Guard 1: a sign-in affordance on the platform root.
	signIn, found, err := d.guardSignInAffordance(ctx)
	if err != nil {
		return err
	}
	if found {
		d.state = StateAtSignIn
		d.log.Debug("login: sign-in affordance found, activating")
		if err := signIn.Click(ctx); err != nil {
			return fmt.Errorf("%w: activate sign-in link: %v", ErrAuthentication, err)
		}
		return d.providerRoundTrip(ctx, creds, d.cfg.Timeouts.Redirect)
	}

	// Guard 2: already sitting on the identity provider (a previous attempt
	// or an expired-session redirect can land there directly).
	if _, found, err := d.guardProviderField(ctx, d.cfg.Timeouts.Probe); err != nil {
		return err
	} else if found {
		d.state = StateAtProvider
		return d.providerRoundTrip(ctx, creds, d.cfg.Timeouts.Probe)
	}

	// Guard 3: neither affordance — likely already authenticated. Probe the
	// post-login indicator for confidence before declaring success.
	if found, err := d.guardLoggedInIndicator(ctx); err != nil {
		return err
	} else if found {
		d.state = StateAuthenticated
		d.log.Info("login: session already authenticated")
		return nil
	}

	d.state = StateUndetermined
	return fmt.Errorf("%w: page shows neither a sign-in affordance, an identity-provider form, nor a logged-in indicator", ErrAuthentication)
}

// providerRoundTrip fills the identity-provider form and waits out the
// redirect chain back to the platform. fieldWait bounds how long the
// username field may take to appear (longer when we just clicked through
// from the platform, shorter when we are already on the provider page).
func (d *LoginDetector) providerRoundTrip(ctx context.Context, creds Credentials, fieldWait time.Duration) error {
	user, found, err := d.guardProviderField(ctx, fieldWait)
	if err != nil {
		return err
	}
	if !found {
		d.state = StateUndetermined
		return fmt.Errorf("%w: identity-provider username field did not appear", ErrAuthentication)
	}
	d.state = StateAtProvider

	if err := user.Fill(ctx, creds.Username); err != nil {
		return fmt.Errorf("%w: fill username: %v", ErrAuthentication, err)
	}

	pass, err := d.page.Probe(ctx, d.cfg.Selectors.ProviderPassword, d.cfg.Timeouts.Probe)
	if err != nil {
		return fmt.Errorf("%w: identity-provider password field: %v", ErrAuthentication, err)
	}
	if err := pass.Fill(ctx, creds.Password); err != nil {
		return fmt.Errorf("%w: fill password: %v", ErrAuthentication, err)
	}

	submit, err := d.page.Probe(ctx, d.cfg.Selectors.ProviderSubmit, d.cfg.Timeouts.Probe)
	if err != nil {
		return fmt.Errorf("%w: identity-provider submit control: %v", ErrAuthentication, err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("%w: activate identity-provider submit: %v", ErrAuthentication, err)
	}

	// The provider bounces through several redirects before returning to
	// the platform domain, hence the materially longer bound here.
	if err := d.page.WaitURLPrefix(ctx, d.cfg.BaseURL, d.cfg.Timeouts.Login); err != nil {
		return fmt.Errorf("%w: browser did not return to platform domain: %v", ErrAuthentication, err)
	}
	if _, err := d.page.Probe(ctx, d.cfg.Selectors.LoggedIn, d.cfg.Timeouts.Redirect); err != nil {
		return fmt.Errorf("%w: post-login indicator did not appear: %v", ErrAuthentication, err)
	}

	d.state = StateAuthenticated
	d.log.Info("login: identity-provider round trip completed")
	return nil
}

// --- transition guards, one bounded probe each ---

func (d *LoginDetector) guardSignInAffordance(ctx context.Context) (Element, bool, error) {
	return d.probeGuard(ctx, d.cfg.Selectors.SignInLink, d.cfg.Timeouts.Probe, "sign-in affordance")
}

func (d *LoginDetector) guardProviderField(ctx context.Context, wait time.Duration) (Element, bool, error) {
	return d.probeGuard(ctx, d.cfg.Selectors.ProviderUsername, wait, "identity-provider username field")
}

func (d *LoginDetector) guardLoggedInIndicator(ctx context.Context) (bool, error) {
	_, found, err := d.probeGuard(ctx, d.cfg.Selectors.LoggedIn, d.cfg.Timeouts.Probe, "logged-in indicator")
	return found, err
}

// probeGuard runs one bounded probe. A timeout is a negative guard result,
// not an error; anything else aborts the handshake.
func (d *LoginDetector) probeGuard(ctx context.Context, selector string, wait time.Duration, what string) (Element, bool, error) {
	el, err := d.page.Probe(ctx, selector, wait)
	if err != nil {
		if IsTimeout(err) {
			d.log.Debug("login: guard negative", "guard", what, "selector", selector)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: probe %s: %v", ErrAuthentication, what, err)
	}
	return el, true, nil
}
