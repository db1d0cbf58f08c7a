package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

var validate = validator.New()

var slugRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

func init() {
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		f, err := strconv.ParseFloat(fl.Field().String(), 64)
		return err == nil && f > 0 && !math.IsInf(f, 0)
	})
	validate.RegisterStructValidation(collectionStructLevel, CollectionSpec{})
}

func collectionStructLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(CollectionSpec)
	for name, d := range map[string]int64{
		"Timeout":         int64(c.Timeout.Duration),
		"PollInterval":    int64(c.PollInterval.Duration),
		"MaxPollInterval": int64(c.MaxPollInterval.Duration),
		"MinimumWait":     int64(c.MinimumWait.Duration),
	} {
		if d < 0 {
			sl.ReportError(d, name, name, "gte", "0")
		}
	}
	if c.MaxPollInterval.Duration > 0 && c.MaxPollInterval.Duration < c.PollInterval.Duration {
		sl.ReportError(c.MaxPollInterval, "MaxPollInterval", "MaxPollInterval", "gtefield", "PollInterval")
	}
	if c.Timeout.Duration > 0 && c.MinimumWait.Duration >= c.Timeout.Duration {
		sl.ReportError(c.MinimumWait, "MinimumWait", "MinimumWait", "ltfield", "Timeout")
	}
	if c.PrometheusQuery != "" && !strings.Contains(c.PrometheusQuery, "%s") {
		sl.ReportError(c.PrometheusQuery, "PrometheusQuery", "PrometheusQuery", "contains", "%s")
	}
}

// Load reads a profile from a YAML file
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	var profile Profile
	if err := yaml.UnmarshalStrict(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if err := Validate(&profile); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	return &profile, nil
}

// LoadAll reads all YAML profiles from a directory
func LoadAll(dir string) ([]*Profile, error) {
	names, err := ListProfileNames(dir)
	if err != nil {
		return nil, err
	}
	return LoadByNames(dir, names)
}

// LoadByNames loads specific profiles by name from a directory
func LoadByNames(dir string, names []string) ([]*Profile, error) {
	var profiles []*Profile
	seen := make(map[string]string)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		// Try with .yaml extension first, then .yml
		path := filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join(dir, name+".yml")
		}

		profile, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile %q: %w", name, err)
		}
		if prev, ok := seen[profile.Name]; ok {
			return nil, fmt.Errorf("profile name %q is used by both %s and %s", profile.Name, prev, path)
		}
		seen[profile.Name] = path
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// Validate checks a profile's fields
func Validate(p *Profile) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// ListProfileNames returns the names of all profiles in a directory
func ListProfileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") {
			names = append(names, strings.TrimSuffix(name, ".yaml"))
		} else if strings.HasSuffix(name, ".yml") {
			names = append(names, strings.TrimSuffix(name, ".yml"))
		}
	}

	return names, nil
}
