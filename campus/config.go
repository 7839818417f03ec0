package campus

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Selectors are the fixed CSS selectors for the host platform. They are
// configuration inputs, not discovered: the platform's markup is stable
// enough that a YAML override per deployment covers theme differences.
type Selectors struct {
	// SignInLink is the platform root's "log in" affordance.
	SignInLink string `yaml:"sign_in_link"`

	// ProviderUsername, ProviderPassword and ProviderSubmit live on the
	// external identity provider's page, not on the platform itself.
	ProviderUsername string `yaml:"provider_username"`
	ProviderPassword string `yaml:"provider_password"`
	ProviderSubmit   string `yaml:"provider_submit"`

	// LoggedIn is a generic post-login indicator on the platform.
	LoggedIn string `yaml:"logged_in"`

	// Listing selectors for the static scrapers.
	CourseLink  string `yaml:"course_link"`
	LectureLink string `yaml:"lecture_link"`
	SlideLink   string `yaml:"slide_link"`
}

// Timeouts groups every bounded wait in the pipeline. Probes are short:
// the login decision tree pays them several times on the happy path.
// The login round trip is materially longer because the identity provider
// bounces through multiple redirects.
type Timeouts struct {
	Probe       time.Duration `yaml:"-"`
	Redirect    time.Duration `yaml:"-"`
	Login       time.Duration `yaml:"-"`
	FileChooser time.Duration `yaml:"-"`
	DialogGrace time.Duration `yaml:"-"`

	// YAML overrides, milliseconds. Zero keeps the default.
	ProbeMS       int `yaml:"probe_ms"`
	RedirectMS    int `yaml:"redirect_ms"`
	LoginMS       int `yaml:"login_ms"`
	FileChooserMS int `yaml:"file_chooser_ms"`
	DialogGraceMS int `yaml:"dialog_grace_ms"`
}

// Credentials identify the platform account. Supplied from the process
// environment, never from tool requests.
type Credentials struct {
	Username string
	Password string
}

// Config configures the campus service.
type Config struct {
	// BaseURL is the platform root, e.g. "https://campus.example.edu".
	BaseURL string `yaml:"base_url"`

	// CoursesPath is the listing page relative to BaseURL.
	CoursesPath string `yaml:"courses_path"`

	Selectors Selectors `yaml:"selectors"`

	// AcceptedPhrases is the post-submit confirmation allowlist, one phrase
	// per supported locale. Matching is case-sensitive substring.
	AcceptedPhrases []string `yaml:"accepted_phrases"`

	Timeouts Timeouts `yaml:"timeouts"`

	// SlidesDir is where downloaded slide decks land.
	SlidesDir string `yaml:"slides_dir"`

	Credentials Credentials `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.CoursesPath == "" {
		c.CoursesPath = "/my/"
	}
	if c.Selectors.SignInLink == "" {
		c.Selectors.SignInLink = `a[href*="/login"]`
	}
	if c.Selectors.ProviderUsername == "" {
		c.Selectors.ProviderUsername = `#username, #userNameInput, input[name="username"]`
	}
	if c.Selectors.ProviderPassword == "" {
		c.Selectors.ProviderPassword = `#password, #passwordInput, input[type="password"]`
	}
	if c.Selectors.ProviderSubmit == "" {
		c.Selectors.ProviderSubmit = `#loginbtn, #submitButton, button[type="submit"]`
	}
	if c.Selectors.LoggedIn == "" {
		c.Selectors.LoggedIn = `.usermenu, #user-menu-toggle`
	}
	if c.Selectors.CourseLink == "" {
		c.Selectors.CourseLink = `.coursebox .coursename a, a.aalink.coursename`
	}
	if c.Selectors.LectureLink == "" {
		c.Selectors.LectureLink = `.course-content li.activity .activityname a, .course-content a.aalink`
	}
	if c.Selectors.SlideLink == "" {
		c.Selectors.SlideLink = `.course-content a[href$=".pdf"], a.slide-link`
	}
	if len(c.AcceptedPhrases) == 0 {
		c.AcceptedPhrases = []string{
			"All your answers have been saved",
			"Toutes vos réponses ont été enregistrées",
		}
	}
	if c.SlidesDir == "" {
		c.SlidesDir = "data/slides"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Timeouts.defaults()
}

func (t *Timeouts) defaults() {
	ms := func(v int, def time.Duration) time.Duration {
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
		return def
	}
	t.Probe = ms(t.ProbeMS, time.Second)
	t.Redirect = ms(t.RedirectMS, 10*time.Second)
	t.Login = ms(t.LoginMS, 30*time.Second)
	t.FileChooser = ms(t.FileChooserMS, 5*time.Second)
	t.DialogGrace = ms(t.DialogGraceMS, 1500*time.Millisecond)
}

// LoadConfig reads a YAML config file into cfg, overriding its zero fields
// with the file's values. Missing file with empty path is not an error.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("campus: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("campus: parse config %s: %w", path, err)
	}
	return nil
}
