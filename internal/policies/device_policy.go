package policies

import (
	"strings"

	"apk-installer/internal/types"
)

// DefaultDeviceRules lists vendors whose session installer is known to
// ignore the unattended flag or fail silently.
var DefaultDeviceRules = []types.DeviceRule{
	{
		Name:               "miui-session-installer",
		Installers:         []types.InstallerKind{types.InstallerSession},
		Matches:            []string{"xiaomi:*", "redmi:*"},
		RequiresAnyPackage: []string{"com.miui.securitycenter", "com.miui.packageinstaller"},
	},
}

type DevicePolicy struct {
	Rules        []types.DeviceRule
	exactByBrand map[string][]modelPattern
	anyBrand     []modelPattern
}

type modelPattern struct {
	kind      patternKind
	model     string
	ruleIndex int
}

func NewDevicePolicy(rules []types.DeviceRule) DevicePolicy {
	policy := DevicePolicy{Rules: rules}
	policy.compile()
	return policy
}

// Denied returns the first rule that excludes installer on device. hasPackage
// is consulted only for rules that also require a vendor package.
func (p DevicePolicy) Denied(installer types.InstallerKind, device types.DeviceInfo, hasPackage func(string) bool) (types.DeviceRule, bool) {
	brand := strings.ToLower(strings.TrimSpace(device.Brand))
	model := strings.ToLower(strings.TrimSpace(device.Model))
	best := -1
	for _, entry := range p.exactByBrand[brand] {
		if entry.matches(model) {
			best = minIndex(best, entry.ruleIndex)
		}
	}
	for _, entry := range p.anyBrand {
		if entry.matches(model) {
			best = minIndex(best, entry.ruleIndex)
		}
	}
	for idx := best; idx >= 0 && idx < len(p.Rules); idx = p.nextMatch(idx, brand, model) {
		rule := p.Rules[idx]
		if !ruleCovers(rule, installer) {
			continue
		}
		if len(rule.RequiresAnyPackage) == 0 || anyPackage(rule.RequiresAnyPackage, hasPackage) {
			return rule, true
		}
	}
	return types.DeviceRule{}, false
}

func (p DevicePolicy) nextMatch(after int, brand string, model string) int {
	next := -1
	for _, entry := range p.exactByBrand[brand] {
		if entry.ruleIndex > after && entry.matches(model) {
			next = minIndex(next, entry.ruleIndex)
		}
	}
	for _, entry := range p.anyBrand {
		if entry.ruleIndex > after && entry.matches(model) {
			next = minIndex(next, entry.ruleIndex)
		}
	}
	return next
}

func (m modelPattern) matches(model string) bool {
	switch m.kind {
	case patternWildcard:
		return true
	case patternPrefix:
		return strings.HasPrefix(model, m.model)
	case patternExact:
		return model == m.model
	default:
		return false
	}
}

func (p *DevicePolicy) compile() {
	p.exactByBrand = map[string][]modelPattern{}
	p.anyBrand = nil
	for idx, rule := range p.Rules {
		for _, pattern := range rule.Matches {
			brand, model, ok := parseDevicePattern(pattern)
			if !ok {
				continue
			}
			model.ruleIndex = idx
			if brand == "" {
				p.anyBrand = append(p.anyBrand, model)
				continue
			}
			p.exactByBrand[brand] = append(p.exactByBrand[brand], model)
		}
	}
}

type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternWildcard
	patternInvalid
)

func parseDevicePattern(pattern string) (string, modelPattern, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(pattern))
	if trimmed == "" {
		return "", modelPattern{kind: patternInvalid}, false
	}
	if trimmed == "*" {
		return "", modelPattern{kind: patternWildcard}, true
	}
	brand, model, found := strings.Cut(trimmed, ":")
	if !found {
		model = "*"
	}
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return "", modelPattern{kind: patternInvalid}, false
	}
	if brand == "*" {
		brand = ""
	}
	name, kind := parseNamePattern(model)
	if kind == patternInvalid {
		return "", modelPattern{kind: patternInvalid}, false
	}
	return brand, modelPattern{kind: kind, model: name}, true
}

func parseNamePattern(value string) (string, patternKind) {
	pattern := strings.TrimSpace(value)
	if pattern == "" {
		return "", patternInvalid
	}
	if pattern == "*" {
		return "", patternWildcard
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*"), patternPrefix
	}
	return pattern, patternExact
}

func ruleCovers(rule types.DeviceRule, installer types.InstallerKind) bool {
	if len(rule.Installers) == 0 {
		return true
	}
	for _, kind := range rule.Installers {
		if kind == installer {
			return true
		}
	}
	return false
}

func anyPackage(names []string, hasPackage func(string) bool) bool {
	if hasPackage == nil {
		return false
	}
	for _, name := range names {
		if hasPackage(name) {
			return true
		}
	}
	return false
}

func minIndex(current int, candidate int) int {
	if candidate < 0 {
		return current
	}
	if current < 0 || candidate < current {
		return candidate
	}
	return current
}
