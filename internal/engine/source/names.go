package source

import "strings"

// IsSpecialClassName reports self, parent and static.
func IsSpecialClassName(name string) bool {
	switch strings.ToLower(name) {
	case "self", "parent", "static":
		return true
	}
	return false
}

// Qualify joins a namespace and a name.
func Qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + `\` + name
}

// ShortName returns the last segment of a qualified name.
func ShortName(name string) string {
	if idx := strings.LastIndex(name, `\`); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// NamespaceOf returns everything before the last separator.
func NamespaceOf(name string) string {
	if idx := strings.LastIndex(name, `\`); idx >= 0 {
		return name[:idx]
	}
	return ""
}

// ResolveClass maps a class name as written inside ns to its fully
// qualified form. A nil namespace is the global one without imports.
func (ns *Namespace) ResolveClass(name string) string {
	if strings.HasPrefix(name, `\`) {
		return name[1:]
	}
	if IsSpecialClassName(name) {
		return name
	}
	prefix := ns.name()
	if strings.HasPrefix(strings.ToLower(name), `namespace\`) {
		return Qualify(prefix, name[len(`namespace\`):])
	}
	first, rest, qualified := strings.Cut(name, `\`)
	if imp := ns.lookupUse(UseClass, first); imp != nil {
		if qualified {
			return imp.Name + `\` + rest
		}
		return imp.Name
	}
	return Qualify(prefix, name)
}

// ResolveFunction returns the candidate fully qualified names for a function
// call, most specific first. Unqualified names fall back to the global scope.
func (ns *Namespace) ResolveFunction(name string) []string {
	return ns.resolveFallback(UseFunction, name)
}

// ResolveConstant is ResolveFunction for constants.
func (ns *Namespace) ResolveConstant(name string) []string {
	return ns.resolveFallback(UseConstant, name)
}

func (ns *Namespace) resolveFallback(kind UseKind, name string) []string {
	if strings.HasPrefix(name, `\`) {
		return []string{name[1:]}
	}
	prefix := ns.name()
	if strings.HasPrefix(strings.ToLower(name), `namespace\`) {
		return []string{Qualify(prefix, name[len(`namespace\`):])}
	}
	first, rest, qualified := strings.Cut(name, `\`)
	if qualified {
		if imp := ns.lookupUse(UseClass, first); imp != nil {
			return []string{imp.Name + `\` + rest}
		}
		return []string{Qualify(prefix, name)}
	}
	if imp := ns.lookupUse(kind, name); imp != nil {
		return []string{imp.Name}
	}
	if prefix == "" {
		return []string{name}
	}
	return []string{Qualify(prefix, name), name}
}

func (ns *Namespace) name() string {
	if ns == nil {
		return ""
	}
	return ns.Name
}

func (ns *Namespace) lookupUse(kind UseKind, local string) *UseImport {
	if ns == nil {
		return nil
	}
	for _, u := range ns.Uses {
		if u.Kind != kind {
			continue
		}
		// constant aliases are case-sensitive, everything else is not
		if kind == UseConstant {
			if u.LocalName() == local {
				return u
			}
			continue
		}
		if strings.EqualFold(u.LocalName(), local) {
			return u
		}
	}
	return nil
}
