package typesys

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"staticreflect/internal/core/errors"
)

// Usage is a bitmask of the positions a builtin type name is valid in.
type Usage int

const (
	UsageParameter Usage = 1 << iota
	UsageReturn

	usageAll = UsageParameter | UsageReturn
)

// UsageProperty is the category property declarations are checked against.
const UsageProperty = UsageParameter

func (u Usage) String() string {
	var parts []string
	if u&UsageParameter != 0 {
		parts = append(parts, "parameter")
	}
	if u&UsageReturn != 0 {
		parts = append(parts, "return")
	}
	return strings.Join(parts, "|")
}

// ParseUsage maps "parameter"/"param"/"property" and "return" to bits.
func ParseUsage(name string) (Usage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "parameter", "param", "property":
		return UsageParameter, nil
	case "return":
		return UsageReturn, nil
	}
	return 0, errors.Newf(errors.CodeInvalidConfiguration, "unknown type usage %q", name)
}

// Version is a host language version.
type Version struct {
	Major, Minor, Patch int
}

// ID is the PHP_VERSION_ID form, e.g. 80102 for 8.1.2.
func (v Version) ID() int {
	return v.Major*10000 + v.Minor*100 + v.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports v >= major.minor.
func (v Version) AtLeast(major, minor int) bool {
	return v.ID() >= major*10000+minor*100
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?$`)

// ParseVersion accepts "8.1", "8.1.3" or a PHP_VERSION_ID such as "80103".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if m := versionPattern.FindStringSubmatch(s); m != nil {
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		patch := 0
		if m[3] != "" {
			patch, _ = strconv.Atoi(m[3])
		}
		if minor > 99 || patch > 99 {
			return Version{}, errors.Newf(errors.CodeInvalidConfiguration, "malformed version string %q", s)
		}
		return Version{Major: major, Minor: minor, Patch: patch}, nil
	}
	if id, err := strconv.Atoi(s); err == nil && id >= 10000 {
		return VersionFromID(id), nil
	}
	return Version{}, errors.Newf(errors.CodeInvalidConfiguration, "malformed version string %q", s)
}

// VersionFromID converts a PHP_VERSION_ID.
func VersionFromID(id int) Version {
	return Version{Major: id / 10000, Minor: id / 100 % 100, Patch: id % 100}
}

// Config enumerates the builtin type names and where each is valid. It is
// immutable after construction.
type Config struct {
	masks map[string]Usage
}

// NewConfig validates masks: every mask must be non-zero and use only known
// bits.
func NewConfig(masks map[string]Usage) (*Config, error) {
	out := make(map[string]Usage, len(masks))
	for name, mask := range masks {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, errors.New(errors.CodeInvalidConfiguration, "builtin type name must not be empty")
		}
		if mask == 0 {
			return nil, errors.Newf(errors.CodeInvalidConfiguration, "builtin type %q has an empty usage mask", name)
		}
		if mask&^usageAll != 0 {
			return nil, errors.Newf(errors.CodeInvalidConfiguration, "builtin type %q has unknown usage bits %d", name, int(mask))
		}
		out[key] = mask
	}
	return &Config{masks: out}, nil
}

// NewConfigFromRaw builds a Config from decoded configuration data. Each
// value must be an integer mask or a list of usage names.
func NewConfigFromRaw(raw map[string]any) (*Config, error) {
	masks := make(map[string]Usage, len(raw))
	for name, v := range raw {
		mask, err := rawMask(name, v)
		if err != nil {
			return nil, err
		}
		masks[name] = mask
	}
	return NewConfig(masks)
}

func rawMask(name string, v any) (Usage, error) {
	switch v := v.(type) {
	case int:
		return Usage(v), nil
	case int64:
		if v > math.MaxInt32 || v < 0 {
			return 0, errors.Newf(errors.CodeInvalidConfiguration, "builtin type %q has an out of range mask", name)
		}
		return Usage(v), nil
	case string:
		return ParseUsage(v)
	case []string:
		var mask Usage
		for _, item := range v {
			u, err := ParseUsage(item)
			if err != nil {
				return 0, err
			}
			mask |= u
		}
		return mask, nil
	case []any:
		var mask Usage
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return 0, errors.Newf(errors.CodeInvalidConfiguration, "builtin type %q has a non-scalar usage entry %v", name, item)
			}
			u, err := ParseUsage(s)
			if err != nil {
				return 0, err
			}
			mask |= u
		}
		return mask, nil
	}
	return 0, errors.Newf(errors.CodeInvalidConfiguration, "builtin type %q has a non-scalar mask of type %T", name, v)
}

// ConfigForVersion derives the builtin set available from the given minimum
// version onwards.
func ConfigForVersion(v Version) *Config {
	masks := map[string]Usage{
		"array":    usageAll,
		"callable": usageAll,
	}
	if v.AtLeast(7, 0) {
		for _, name := range []string{"bool", "float", "int", "string"} {
			masks[name] = usageAll
		}
	}
	if v.AtLeast(7, 1) {
		masks["iterable"] = usageAll
		masks["void"] = UsageReturn
	}
	if v.AtLeast(7, 2) {
		masks["object"] = usageAll
	}
	if v.AtLeast(8, 0) {
		masks["mixed"] = usageAll
		masks["static"] = UsageReturn
		masks["false"] = usageAll
		masks["null"] = usageAll
	}
	if v.AtLeast(8, 1) {
		masks["never"] = UsageReturn
	}
	if v.AtLeast(8, 2) {
		masks["true"] = usageAll
	}
	return &Config{masks: masks}
}

// ConfigForVersionString parses s and derives the builtin set.
func ConfigForVersionString(s string) (*Config, error) {
	v, err := ParseVersion(s)
	if err != nil {
		return nil, err
	}
	return ConfigForVersion(v), nil
}

// DefaultConfig targets the newest supported version.
func DefaultConfig() *Config {
	return ConfigForVersion(Version{Major: 8, Minor: 3})
}

// IsBuiltin reports whether name is a builtin at a use-site of category u.
func (c *Config) IsBuiltin(name string, u Usage) bool {
	mask, ok := c.masks[strings.ToLower(name)]
	return ok && mask&u != 0
}

// Mask returns the configured mask for name, zero when absent.
func (c *Config) Mask(name string) Usage {
	return c.masks[strings.ToLower(name)]
}

// Names lists configured builtin names in sorted order.
func (c *Config) Names() []string {
	out := make([]string, 0, len(c.masks))
	for name := range c.masks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
