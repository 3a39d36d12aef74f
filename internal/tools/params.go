package tools

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"summoner-insights/internal/fault"
)

type ParamType string

const (
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
)

// Param declares one tool argument. Min/Max bound integers; Pattern
// constrains strings.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Min, Max    int
	Pattern     *regexp.Regexp
	// Aliases are accepted in place of Name when Name is absent.
	Aliases []string
}

const (
	DefaultLimit = 10
	MaxLimit     = 500
)

// MatchIDPattern is a platform prefix, an underscore and the game number.
var MatchIDPattern = regexp.MustCompile(`^[A-Za-z]{2,4}[0-9]?_[0-9]+$`)

func limitParam(description string) Param {
	return Param{
		Name:        "limit",
		Type:        TypeInteger,
		Description: description,
		Default:     DefaultLimit,
		Min:         1,
		Max:         MaxLimit,
		Aliases:     []string{"matches"},
	}
}

// historyParam is a limit with no default, so an absent value reaches the
// handler as 0.
func historyParam(description string) Param {
	p := limitParam(description)
	p.Default = nil
	return p
}

// Args are validated tool arguments.
type Args map[string]any

func (a Args) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// bind validates raw against params and fills defaults. Unknown keys are
// ignored.
func bind(params []Param, raw map[string]any) (Args, error) {
	args := make(Args, len(params))
	for _, p := range params {
		v, ok := lookup(raw, p)
		if !ok || v == nil {
			if p.Required {
				return nil, fault.Validation("%s is required", p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}

		switch p.Type {
		case TypeInteger:
			n, err := toInt(p.Name, v)
			if err != nil {
				return nil, err
			}
			if n < p.Min || (p.Max > 0 && n > p.Max) {
				return nil, fault.Validation("%s must be between %d and %d, got %d", p.Name, p.Min, p.Max, n)
			}
			args[p.Name] = n
		case TypeString:
			s, ok := v.(string)
			if !ok {
				return nil, fault.Validation("%s must be a string", p.Name)
			}
			s = strings.TrimSpace(s)
			if s == "" {
				if p.Required {
					return nil, fault.Validation("%s is required", p.Name)
				}
				continue
			}
			if p.Pattern != nil && !p.Pattern.MatchString(s) {
				return nil, fault.Validation("%s %q is not in the expected format", p.Name, s)
			}
			args[p.Name] = s
		}
	}
	return args, nil
}

func lookup(raw map[string]any, p Param) (any, bool) {
	if v, ok := raw[p.Name]; ok {
		return v, true
	}
	for _, alias := range p.Aliases {
		if v, ok := raw[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// toInt accepts JSON numbers with no fractional part and numeric strings,
// which is what the CLI passes through.
func toInt(name string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fault.Validation("%s must be an integer, got %v", name, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fault.Validation("%s must be an integer, got %s", name, n)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fault.Validation("%s must be an integer, got %q", name, n)
		}
		return i, nil
	default:
		return 0, fault.Validation("%s must be an integer", name)
	}
}

// Schema renders params as a JSON schema object for tool listings.
func Schema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{"type": string(p.Type), "description": p.Description}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Type == TypeInteger {
			prop["minimum"] = p.Min
			if p.Max > 0 {
				prop["maximum"] = p.Max
			}
		}
		if p.Pattern != nil {
			prop["pattern"] = p.Pattern.String()
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
