package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a stored profile: loader options plus the CLI runtime settings.
type Config struct {
	Loader Overrides `yaml:"loader"`

	Root     string `yaml:"root"`
	MaxPages int    `yaml:"max_pages"`
	Workers  int    `yaml:"workers"`
	Mode     string `yaml:"mode"`
	Output   string `yaml:"output"`
	Debug    bool   `yaml:"debug"`
	LogJSON  bool   `yaml:"log_json"`
	Timeout  string `yaml:"timeout"`

	DefaultURL string `yaml:"default_url"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`
	Cloudflare bool   `yaml:"cloudflare"`
}

// Flags carries command line values. Zero values mean "not set".
type Flags struct {
	IgnoreConfig bool
	Debug        bool
	LogJSON      bool
	Root         string
	MaxPages     int
	Workers      int
	Mode         string
	Output       string
	Timeout      string
	DefaultURL   string
	Cookie       string
	CookieFile   string
	UserAgent    string
	Cloudflare   bool

	Loader Overrides
}

const (
	ModeScroll = "scroll"
	ModeClick  = "click"
)

func DefaultConfig() *Config {
	return &Config{
		Root:     "body",
		MaxPages: 0,
		Workers:  2,
		Mode:     ModeScroll,
		Timeout:  "30s",
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// ResetProfile rewrites the profile at path with defaults. With loaderOnly
// the runtime settings (URL, credentials, output) survive and only the
// loader overrides are dropped.
func ResetProfile(path string, loaderOnly bool) error {
	if !loaderOnly {
		return SaveYAML(DefaultConfig(), path)
	}

	cfg, err := loadYAML(path)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	cfg.Loader = Overrides{}

	return SaveYAML(cfg, path)
}

func LoadMerged(f Flags) (*Config, string, error) {
	if f.IgnoreConfig {
		cfg := DefaultConfig()
		mergeFlags(cfg, f)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeFlags(cfg, f)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `lazyscroll config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeFlags(cfg, f)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeFlags(c *Config, f Flags) {
	if f.Debug {
		c.Debug = true
	}
	if f.LogJSON {
		c.LogJSON = true
	}
	if f.Root != "" {
		c.Root = f.Root
	}
	if f.MaxPages != 0 {
		c.MaxPages = f.MaxPages
	}
	if f.Workers != 0 {
		c.Workers = f.Workers
	}
	if f.Mode != "" {
		c.Mode = f.Mode
	}
	if f.Output != "" {
		c.Output = f.Output
	}
	if f.Timeout != "" {
		c.Timeout = f.Timeout
	}
	if f.DefaultURL != "" {
		c.DefaultURL = f.DefaultURL
	}
	if f.Cookie != "" {
		c.Cookie = f.Cookie
	}
	if f.CookieFile != "" {
		c.CookieFile = f.CookieFile
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Cloudflare {
		c.Cloudflare = true
	}

	c.Loader = c.Loader.Over(f.Loader)
}

func normalizeDefaults(c *Config) {
	if c.Root == "" {
		c.Root = "body"
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Mode == "" {
		c.Mode = ModeScroll
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

// Options resolves the loader options stored in the profile over the defaults.
func (c *Config) Options() Options {
	return Merge(Defaults(), c.Loader, Overrides{})
}

func (c *Config) Print() {
	o := c.Options()

	fmt.Printf(" -root: %s\n", c.Root)
	fmt.Printf(" -mode: %s\n", c.Mode)
	fmt.Printf(" -workers: %d\n", c.Workers)
	if c.MaxPages > 0 {
		fmt.Printf(" -max_pages: %d\n", c.MaxPages)
	}
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.DefaultURL != "" {
		fmt.Printf(" -url: %s\n", c.DefaultURL)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.Cloudflare {
		fmt.Printf(" -cloudflare: %t\n", c.Cloudflare)
	}
	fmt.Printf(" -container: %s\n", o.ContainerSelector)
	fmt.Printf(" -item: %s\n", o.ItemSelector)
	fmt.Printf(" -pagination: %s\n", orDisabled(o.PaginationContainerSelector))
	fmt.Printf(" -pagination_links: %s\n", orDisabled(o.PaginationLinksSelector))
	fmt.Printf(" -load_button: %s\n", orDisabled(o.LoadButton))
	fmt.Printf(" -load_on_scroll: %t\n", o.LoadOnScroll)
	if o.NumberOfPages > 0 {
		fmt.Printf(" -number_of_pages: %d\n", o.NumberOfPages)
	}
	if len(o.SyncSelectors) > 0 {
		fmt.Printf(" -sync: %s\n", strings.Join(o.SyncSelectors, ", "))
	}
	fmt.Printf(" -update_url: %t\n", o.UpdateURL)
	fmt.Printf(" -merge: %s\n", o.Merge)
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}

	return s
}
