package campus

import (
	"context"
	"errors"
	"testing"
)

func loginConfig() Config {
	cfg := testConfig()
	cfg.defaults()
	return cfg
}

func TestLoginDetector_AlreadyAuthenticated(t *testing.T) {
	// WHAT: When the root page shows the logged-in indicator and no sign-in
	// affordance, the detector declares success without a provider round trip.
	// WHY: An authenticated session must not pay the long login timeout, and
	// must never re-send credentials.
	cfg := loginConfig()
	logged := &fakeElement{ref: "e1"}
	page := &fakePage{probe: map[string]*fakeElement{
		cfg.Selectors.LoggedIn: logged,
	}}

	det := NewLoginDetector(page, &cfg)
	err := det.Run(context.Background(), Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if det.State() != StateAuthenticated {
		t.Fatalf("state: got %v", det.State())
	}
	if len(page.navigated) != 1 || page.navigated[0] != cfg.BaseURL {
		t.Fatalf("navigated: %v", page.navigated)
	}
}

func TestLoginDetector_FullRoundTrip(t *testing.T) {
	// WHAT: Sign-in affordance present: click it, fill the provider form,
	// submit, wait out the redirect, confirm the logged-in indicator.
	cfg := loginConfig()
	signIn := &fakeElement{ref: "signin"}
	user := &fakeElement{ref: "user"}
	pass := &fakeElement{ref: "pass"}
	submit := &fakeElement{ref: "submit"}
	page := &fakePage{probe: map[string]*fakeElement{
		cfg.Selectors.SignInLink:       signIn,
		cfg.Selectors.ProviderUsername: user,
		cfg.Selectors.ProviderPassword: pass,
		cfg.Selectors.ProviderSubmit:   submit,
		cfg.Selectors.LoggedIn:         {ref: "menu"},
	}}

	det := NewLoginDetector(page, &cfg)
	err := det.Run(context.Background(), Credentials{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}
	if det.State() != StateAuthenticated {
		t.Fatalf("state: got %v", det.State())
	}
	if signIn.clicks != 1 {
		t.Fatalf("sign-in clicks: got %d", signIn.clicks)
	}
	if len(user.filled) != 1 || user.filled[0] != "alice" {
		t.Fatalf("username fills: %v", user.filled)
	}
	if len(pass.filled) != 1 || pass.filled[0] != "s3cret" {
		t.Fatalf("password fills: %v", pass.filled)
	}
	if submit.clicks != 1 {
		t.Fatalf("submit clicks: got %d", submit.clicks)
	}
}

func TestLoginDetector_DirectlyOnProvider(t *testing.T) {
	// WHAT: No sign-in affordance but the provider's username field is
	// present: the session was redirected straight to the provider.
	cfg := loginConfig()
	user := &fakeElement{ref: "user"}
	page := &fakePage{probe: map[string]*fakeElement{
		cfg.Selectors.ProviderUsername: user,
		cfg.Selectors.ProviderPassword: {ref: "pass"},
		cfg.Selectors.ProviderSubmit:   {ref: "submit"},
		cfg.Selectors.LoggedIn:         {ref: "menu"},
	}}

	det := NewLoginDetector(page, &cfg)
	if err := det.Run(context.Background(), Credentials{Username: "u", Password: "p"}); err != nil {
		t.Fatal(err)
	}
	if det.State() != StateAuthenticated {
		t.Fatalf("state: got %v", det.State())
	}
	if len(user.filled) != 1 {
		t.Fatalf("username fills: %v", user.filled)
	}
}

func TestLoginDetector_MissingCredentials(t *testing.T) {
	// WHAT: Absent credentials fail before any navigation.
	// WHY: The browser must not be touched when the attempt cannot succeed.
	cfg := loginConfig()
	page := &fakePage{}

	det := NewLoginDetector(page, &cfg)
	err := det.Run(context.Background(), Credentials{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if len(page.navigated) != 0 {
		t.Fatalf("navigated despite missing credentials: %v", page.navigated)
	}
}

func TestLoginDetector_Undetermined(t *testing.T) {
	// WHAT: None of the three guards matches: the detector reports an
	// authentication error and the undetermined state, never a false positive.
	cfg := loginConfig()
	page := &fakePage{}

	det := NewLoginDetector(page, &cfg)
	err := det.Run(context.Background(), Credentials{Username: "u", Password: "p"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if det.State() != StateUndetermined {
		t.Fatalf("state: got %v", det.State())
	}
}

func TestLoginDetector_RedirectNeverReturns(t *testing.T) {
	// WHAT: The provider form submits but the browser never lands back on
	// the platform domain within the login timeout.
	cfg := loginConfig()
	page := &fakePage{
		probe: map[string]*fakeElement{
			cfg.Selectors.ProviderUsername: {ref: "user"},
			cfg.Selectors.ProviderPassword: {ref: "pass"},
			cfg.Selectors.ProviderSubmit:   {ref: "submit"},
		},
		waitPrefixErr: errors.New("deadline exceeded"),
	}

	det := NewLoginDetector(page, &cfg)
	err := det.Run(context.Background(), Credentials{Username: "u", Password: "p"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if det.State() == StateAuthenticated {
		t.Fatal("must not report authenticated after a failed redirect wait")
	}
}
