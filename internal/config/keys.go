package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// Remote option keys.
const (
	KeyHostname           = "webdav_hostname"
	KeyLogin              = "webdav_login"
	KeyPassword           = "webdav_password"
	KeyRoot               = "webdav_root"
	KeyTimeout            = "webdav_timeout"
	KeyAuthenticationFile = "authenticationfile"
)

// RemoteOptions configures the WebDAV client.
type RemoteOptions struct {
	Hostname string
	Login    string
	Password string
	// Root is the path prefix of the storage on the server.
	Root    string
	Timeout time.Duration
}

// RemoteOptionsFromMap builds options from a key/value mapping. Unknown keys
// are ignored. A numeric timeout is read as seconds.
func RemoteOptionsFromMap(m map[string]any) (RemoteOptions, error) {
	var o RemoteOptions
	str := func(key string) string {
		v, ok := m[key]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}

	o.Hostname = str(KeyHostname)
	o.Login = str(KeyLogin)
	o.Password = str(KeyPassword)
	o.Root = str(KeyRoot)

	if raw := str(KeyTimeout); raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return RemoteOptions{}, failure.Configf("%s %q: %v", KeyTimeout, raw, err)
		}
		o.Timeout = d
	}
	return o, nil
}

// LoadRemoteOptions reads options from a file (YAML, JSON or TOML by
// extension). If the file names an authenticationfile, that file must exist;
// its keys are merged over the first file's and the authenticationfile key
// itself is dropped.
func LoadRemoteOptions(path string) (RemoteOptions, error) {
	m, err := readOptionsFile(path)
	if err != nil {
		return RemoteOptions{}, err
	}

	if auth, ok := m[KeyAuthenticationFile]; ok {
		authPath := expandPath(fmt.Sprint(auth))
		authMap, err := readOptionsFile(authPath)
		if err != nil {
			return RemoteOptions{}, fmt.Errorf("authentication file: %w", err)
		}
		delete(m, KeyAuthenticationFile)
		for k, v := range authMap {
			m[k] = v
		}
	}

	return RemoteOptionsFromMap(m)
}

func readOptionsFile(path string) (map[string]any, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFound("options file", path)
		}
		return nil, fmt.Errorf("stat options file: %w", err)
	}
	if fi.IsDir() {
		return nil, failure.Configf("options file %s is a directory", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading options from %s: %w", failure.ErrConfig, path, err)
	}
	return v.AllSettings(), nil
}

// parseTimeout accepts a duration ("30s") or a number of seconds ("30").
func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// Validate reports every missing mandatory option at once.
func (o RemoteOptions) Validate() error {
	var errs ValidationErrors
	for _, f := range []struct {
		key, value string
	}{
		{KeyHostname, o.Hostname},
		{KeyLogin, o.Login},
		{KeyPassword, o.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, ValidationError{Field: f.key, Value: "", Message: "is required"})
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: remote options insufficient to establish a client: %w", failure.ErrConfig, errs)
	}
	return nil
}

// MaskedPassword returns the password for display.
func (o RemoteOptions) MaskedPassword() string {
	return MaskSecret(o.Password)
}

// MaskSecret returns a masked version of a secret for display.
func MaskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:2] + "..." + s[len(s)-2:]
}
