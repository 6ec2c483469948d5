package profile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snipbox/snipbox/config"
)

// Default resource limits applied to profiles that do not override them.
const (
	DefaultCPUs     = 1.0
	DefaultMemoryMB = 128
	DefaultPids     = 64
)

// Profile is the static per-language runtime configuration: which image to
// run, how to invoke the submitted code inside it, and the resource limits
// the runtime enforces at creation time.
type Profile struct {
	Name        string
	Image       string
	Command     []string
	Env         []string
	CPUs        float64
	MemoryBytes int64
	PidsLimit   int64
	Timeout     time.Duration
}

// Registry maps language codes to runtime profiles. It is built once at
// process start and read-only afterwards, so lookups need no locking.
type Registry struct {
	byCode map[string]*Profile
}

// Lookup resolves a language code (case-insensitive) to its profile.
func (r *Registry) Lookup(code string) (*Profile, bool) {
	p, ok := r.byCode[strings.ToLower(code)]
	return p, ok
}

// Codes returns the sorted-insertion list of every registered language code.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}
	return codes
}

// Names returns the distinct profile names, one per language.
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, p := range r.byCode {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}

// builtin describes one default language entry. The code file is always
// injected at /tmp/code, so commands reference it by that name.
type builtin struct {
	name    string
	image   string
	command []string
	env     []string
	codes   []string
}

// Language codes follow the fence annotations supported by highlight.js,
// so whatever tag the chat client highlights with also runs here.
var builtins = []builtin{
	{
		name:    "bash",
		image:   "bash",
		command: []string{"bash", "code"},
		codes:   []string{"bash", "sh", "zsh"},
	},
	{
		name:    "c",
		image:   "gcc",
		command: []string{"sh", "-c", "gcc -Wall -Wextra -x c code -o exe && ./exe"},
		codes:   []string{"c", "h"},
	},
	{
		name:    "cpp",
		image:   "gcc",
		command: []string{"sh", "-c", "g++ -Wall -Wextra -x c++ code -o exe && ./exe"},
		codes:   []string{"cpp", "hpp", "cc", "hh", "c++", "h++", "cxx", "hxx"},
	},
	{
		name:  "fortran",
		image: "gcc",
		// Free-form must be forced because the injected file has no extension
		// for gfortran to infer it from.
		command: []string{"sh", "-c", "gfortran -Wall -Wextra -x f95 -ffree-form code -o exe && ./exe"},
		codes:   []string{"fortran", "f90", "f95"},
	},
	{
		name:    "go",
		image:   "golang:alpine",
		command: []string{"sh", "-c", "ln -s code code.go && go run code.go"},
		env:     []string{"GOCACHE=/tmp/.cache/go"},
		codes:   []string{"go", "golang"},
	},
	{
		name:  "java",
		image: "openjdk:alpine",
		command: []string{"sh", "-c",
			`class=$(sed -n 's/public\s\+class\s\+\(\w\+\).*/\1/p' code); ln -s code $class.java && javac $class.java && java $class`},
		codes: []string{"java", "jsp"},
	},
	{
		name:    "javascript",
		image:   "node:alpine",
		command: []string{"node", "code"},
		codes:   []string{"javascript", "js", "jsx"},
	},
	{
		name:    "perl",
		image:   "perl:slim",
		command: []string{"perl", "code"},
		codes:   []string{"perl", "pl", "pm"},
	},
	{
		name:    "python",
		image:   "python:alpine",
		command: []string{"python", "code"},
		// Unbuffered keeps stdout and stderr interleaved in submission order.
		env:   []string{"PYTHONUNBUFFERED=1"},
		codes: []string{"python", "py", "gyp"},
	},
	{
		name:    "ruby",
		image:   "ruby:alpine",
		command: []string{"ruby", "code"},
		codes:   []string{"ruby", "rb", "gemspec", "podspec", "thor", "irb"},
	},
	{
		name:    "rust",
		image:   "rust:alpine",
		command: []string{"sh", "-c", "rustc code -o exe && ./exe"},
		codes:   []string{"rust", "rs"},
	},
}

// overrideFile is the YAML shape of a profile override file.
type overrideFile struct {
	Languages map[string]overrideEntry `yaml:"languages"`
}

type overrideEntry struct {
	Image      string   `yaml:"image"`
	Command    []string `yaml:"command"`
	Env        []string `yaml:"env"`
	Codes      []string `yaml:"codes"`
	CPUs       float64  `yaml:"cpus"`
	MemoryMB   int64    `yaml:"memory_mb"`
	Pids       int64    `yaml:"pids"`
	TimeoutSec int      `yaml:"timeout_sec"`
}

// NewFromConfig builds the registry from the built-in language table,
// merged with the override file named in the configuration (if any).
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	return New(cfg.Profiles.File, cfg.DefaultTimeout())
}

// New builds the registry. defaultTimeout applies to every profile that
// does not set its own.
func New(overridePath string, defaultTimeout time.Duration) (*Registry, error) {
	r := &Registry{byCode: make(map[string]*Profile)}

	for _, b := range builtins {
		p := &Profile{
			Name:        b.name,
			Image:       b.image,
			Command:     b.command,
			Env:         b.env,
			CPUs:        DefaultCPUs,
			MemoryBytes: DefaultMemoryMB * 1024 * 1024,
			PidsLimit:   DefaultPids,
			Timeout:     defaultTimeout,
		}
		r.register(p, b.codes)
	}

	if overridePath == "" {
		return r, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile overrides: %w", err)
	}

	var overrides overrideFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse profile overrides: %w", err)
	}

	for name, entry := range overrides.Languages {
		if err := r.applyOverride(strings.ToLower(name), entry, defaultTimeout); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) register(p *Profile, codes []string) {
	for _, code := range codes {
		r.byCode[strings.ToLower(code)] = p
	}
}

func (r *Registry) applyOverride(name string, entry overrideEntry, defaultTimeout time.Duration) error {
	p, known := r.byCode[name]
	if !known {
		// A brand new language needs at least an image and a command.
		if entry.Image == "" || len(entry.Command) == 0 {
			return fmt.Errorf("profile override %q adds a language but lacks image or command", name)
		}
		p = &Profile{
			Name:        name,
			CPUs:        DefaultCPUs,
			MemoryBytes: DefaultMemoryMB * 1024 * 1024,
			PidsLimit:   DefaultPids,
			Timeout:     defaultTimeout,
		}
		r.byCode[name] = p
	}

	if entry.Image != "" {
		p.Image = entry.Image
	}
	if len(entry.Command) > 0 {
		p.Command = entry.Command
	}
	if len(entry.Env) > 0 {
		p.Env = entry.Env
	}
	if entry.CPUs > 0 {
		p.CPUs = entry.CPUs
	}
	if entry.MemoryMB > 0 {
		p.MemoryBytes = entry.MemoryMB * 1024 * 1024
	}
	if entry.Pids > 0 {
		p.PidsLimit = entry.Pids
	}
	if entry.TimeoutSec > 0 {
		p.Timeout = time.Duration(entry.TimeoutSec) * time.Second
	}
	if len(entry.Codes) > 0 {
		r.register(p, entry.Codes)
	}

	return nil
}
