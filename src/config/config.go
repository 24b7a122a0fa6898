package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar = "CAPCUT_BYPASS_ENV"

	DefaultTargetExe   = "capcut.exe"
	DefaultTargetTitle = "CapCut"
	DefaultSelfBrand   = "Bypass"
	DefaultHotkey      = "Ctrl+Alt+B"
)

type LoadOptions struct {
	// EnvPathOverride wins over the executable-adjacent .env and CAPCUT_BYPASS_ENV.
	EnvPathOverride string
	// BackupOverride forces BackupBeforeRun when non-nil.
	BackupOverride *bool
}

type Config struct {
	TargetExe   string
	TargetTitle string
	SelfBrand   string

	EnableFileLogging bool
	Hotkey            string
	BackupBeforeRun   bool

	BlockCeiling   time.Duration
	FocusTimeout   time.Duration
	AttemptWindow  time.Duration
	MaxRetries     int
	SearchTimeout  time.Duration
	ResolveTimeout time.Duration
	StuckAfter     time.Duration
	PollInterval   time.Duration

	DraftRoots      []string
	ExtraSearchDirs []string

	StateDir       string
	ShortcutDir    string
	DiagnosticsDir string

	InstallCandidates []string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) explicit override path
	// 2) .env in the application (executable) directory
	// 3) CAPCUT_BYPASS_ENV pointing at a config file
	envPath := strings.TrimSpace(opts.EnvPathOverride)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		TargetExe:         strings.ToLower(getEnvWithDefault("TARGET_EXE", DefaultTargetExe)),
		TargetTitle:       getEnvWithDefault("TARGET_TITLE", DefaultTargetTitle),
		SelfBrand:         getEnvWithDefault("SELF_BRAND", DefaultSelfBrand),
		EnableFileLogging: envBool("ENABLE_FILE_LOGGING"),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		BackupBeforeRun:   envBool("BACKUP_BEFORE_RUN"),

		BlockCeiling:   envSeconds("BLOCK_CEILING_SEC", 10),
		FocusTimeout:   envSeconds("FOCUS_TIMEOUT_SEC", 30),
		AttemptWindow:  envSeconds("ATTEMPT_WINDOW_SEC", 10),
		MaxRetries:     envInt("MAX_RETRIES", 2, 0),
		SearchTimeout:  envSeconds("SEARCH_TIMEOUT_SEC", 900),
		ResolveTimeout: envSeconds("RESOLVE_TIMEOUT_SEC", 600),
		StuckAfter:     envSeconds("STUCK_AFTER_SEC", 120),
		PollInterval:   time.Duration(envInt("POLL_INTERVAL_MS", 400, 1)) * time.Millisecond,

		DraftRoots:      defaultDraftRoots(),
		ExtraSearchDirs: extraSearchDirs(),

		StateDir:       expandOr(os.Getenv("STATE_DIR"), `%LOCALAPPDATA%\CapCutBypass`),
		ShortcutDir:    expandOr(os.Getenv("SHORTCUT_DIR"), `%LOCALAPPDATA%\CapCut\User Data\Config\Shortcut`),
		DiagnosticsDir: Expand(strings.TrimSpace(os.Getenv("DIAGNOSTICS_DIR"))),

		InstallCandidates: defaultInstallCandidates(),
	}

	if opts.BackupOverride != nil {
		cfg.BackupBeforeRun = *opts.BackupOverride
	}

	return cfg, nil
}

// StatePath is the flat key-value state file.
func (c *Config) StatePath() string { return filepath.Join(c.StateDir, "state.json") }

// HistoryPath is the sqlite run journal.
func (c *Config) HistoryPath() string { return filepath.Join(c.StateDir, "history.db") }

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func defaultDraftRoots() []string {
	return []string{
		Expand(`%LOCALAPPDATA%\CapCut\User Data\Projects\com.lveditor.draft`),
		Expand(`%USERPROFILE%\Documents\CapCut\Projects\CapCut Drafts`),
	}
}

// extraSearchDirs returns the motion-blur cache plus any env-supplied roots.
func extraSearchDirs() []string {
	dirs := []string{Expand(`%LOCALAPPDATA%\CapCut\User Data\Cache\MotionBlurCache`)}
	if v := os.Getenv("CAPCUT_EXTRA_SEARCH_DIRS"); v != "" {
		for _, p := range strings.Split(v, ";") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				dirs = append(dirs, Expand(trimmed))
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("CAPCUT_MOTIONBLUR_CACHE")); v != "" {
		dirs = append(dirs, Expand(v))
	}
	return dirs
}

func defaultInstallCandidates() []string {
	return []string{
		Expand(`%LOCALAPPDATA%\CapCut\Apps\CapCut.exe`),
		Expand(`%LOCALAPPDATA%\Programs\CapCut\CapCut.exe`),
		Expand(`%PROGRAMFILES%\CapCut\CapCut.exe`),
		Expand(`%PROGRAMFILES(X86)%\CapCut\CapCut.exe`),
		Expand(`%LOCALAPPDATA%\CapCut\CapCut.exe`),
	}
}

// Expand replaces Windows-style %VAR% references with environment values.
// Unknown variables are left untouched, like cmd.exe does.
func Expand(s string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			break
		}
		end += start + 1
		name := s[start+1 : end]
		if val, ok := os.LookupEnv(name); ok && name != "" {
			b.WriteString(s[:start])
			b.WriteString(val)
		} else {
			b.WriteString(s[:end])
			s = s[end:]
			continue
		}
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String()
}

func expandOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return Expand(v)
	}
	return Expand(fallback)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, def, min int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= min {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def, 1)) * time.Second
}
