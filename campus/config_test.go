package campus

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	// WHAT: An empty config fills in selectors, phrases and timeouts.
	cfg := Config{BaseURL: "https://campus.example.edu"}
	cfg.defaults()

	if cfg.CoursesPath != "/my/" {
		t.Fatalf("CoursesPath: %q", cfg.CoursesPath)
	}
	if cfg.Selectors.ProviderUsername == "" || cfg.Selectors.LoggedIn == "" {
		t.Fatal("selector defaults missing")
	}
	if len(cfg.AcceptedPhrases) != 2 {
		t.Fatalf("AcceptedPhrases: %v", cfg.AcceptedPhrases)
	}
	if cfg.Timeouts.Probe != time.Second {
		t.Fatalf("Probe: %v", cfg.Timeouts.Probe)
	}
	if cfg.Timeouts.Login != 30*time.Second {
		t.Fatalf("Login: %v", cfg.Timeouts.Login)
	}
	if cfg.Timeouts.DialogGrace != 1500*time.Millisecond {
		t.Fatalf("DialogGrace: %v", cfg.Timeouts.DialogGrace)
	}
}

func TestConfig_TimeoutOverrides(t *testing.T) {
	// WHAT: Millisecond overrides replace defaults; zero keeps them.
	cfg := Config{Timeouts: Timeouts{ProbeMS: 250, LoginMS: 60000}}
	cfg.defaults()

	if cfg.Timeouts.Probe != 250*time.Millisecond {
		t.Fatalf("Probe: %v", cfg.Timeouts.Probe)
	}
	if cfg.Timeouts.Login != time.Minute {
		t.Fatalf("Login: %v", cfg.Timeouts.Login)
	}
	if cfg.Timeouts.Redirect != 10*time.Second {
		t.Fatalf("Redirect: %v", cfg.Timeouts.Redirect)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	// WHAT: YAML overrides land in the config; untouched fields keep their
	// values for defaults() to fill.
	path := filepath.Join(t.TempDir(), "cartable.yaml")
	data := `base_url: "https://lms.example.org"
courses_path: "/dashboard/"
selectors:
  sign_in_link: "a.login"
accepted_phrases:
  - "Saved."
timeouts:
  dialog_grace_ms: 3000
slides_dir: "/srv/slides"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg Config
	if err := LoadConfig(path, &cfg); err != nil {
		t.Fatal(err)
	}
	cfg.defaults()

	if cfg.BaseURL != "https://lms.example.org" {
		t.Fatalf("BaseURL: %q", cfg.BaseURL)
	}
	if cfg.CoursesPath != "/dashboard/" {
		t.Fatalf("CoursesPath: %q", cfg.CoursesPath)
	}
	if cfg.Selectors.SignInLink != "a.login" {
		t.Fatalf("SignInLink: %q", cfg.Selectors.SignInLink)
	}
	if len(cfg.AcceptedPhrases) != 1 || cfg.AcceptedPhrases[0] != "Saved." {
		t.Fatalf("AcceptedPhrases: %v", cfg.AcceptedPhrases)
	}
	if cfg.Timeouts.DialogGrace != 3*time.Second {
		t.Fatalf("DialogGrace: %v", cfg.Timeouts.DialogGrace)
	}
	if cfg.SlidesDir != "/srv/slides" {
		t.Fatalf("SlidesDir: %q", cfg.SlidesDir)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	var cfg Config
	if err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}
