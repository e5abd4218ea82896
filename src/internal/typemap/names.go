package typemap

import "strings"

// Visibility of a function or state variable
type Visibility string

const (
	Public   Visibility = "public"
	Private  Visibility = "private"
	Internal Visibility = "internal"
	External Visibility = "external"
)

// Mutability of a function. MutNone means state-mutating and renders nothing.
type Mutability string

const (
	MutNone    Mutability = ""
	MutPure    Mutability = "pure"
	MutView    Mutability = "view"
	MutPayable Mutability = "payable"
)

// MapVisibility maps a Ruby visibility keyword. Ruby protected becomes internal,
// empty or unknown input becomes public.
func MapVisibility(src string) Visibility {
	switch strings.ToLower(strings.TrimSpace(src)) {
	case "private":
		return Private
	case "protected", "internal":
		return Internal
	case "external":
		return External
	}
	return Public
}

// MapMutability picks the mutability from the markers declared on a method.
// payable wins over pure, pure over view.
func MapMutability(markers []string) Mutability {
	var pure, view bool
	for _, m := range markers {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "payable":
			return MutPayable
		case "pure":
			pure = true
		case "view":
			view = true
		}
	}
	switch {
	case pure:
		return MutPure
	case view:
		return MutView
	}
	return MutNone
}

// FunctionName converts a Ruby method name to Solidity camelCase.
//
//	balance_of  -> balanceOf
//	_mint       -> _mint
//	paused?     -> isPaused
//	is_owner?   -> isOwner
//	burn!       -> burn
//	name=       -> setName
func FunctionName(src string) string {
	src = strings.TrimPrefix(src, "self.")
	switch {
	case strings.HasSuffix(src, "?"):
		src = strings.TrimSuffix(src, "?")
		base := strings.TrimLeft(src, "_")
		if !strings.HasPrefix(base, "is_") && !strings.HasPrefix(base, "has_") && !strings.HasPrefix(base, "can_") {
			src = src[:len(src)-len(base)] + "is_" + base
		}
	case strings.HasSuffix(src, "!"):
		src = strings.TrimSuffix(src, "!")
	case strings.HasSuffix(src, "="):
		src = "set_" + strings.TrimSuffix(src, "=")
	}
	return Camel(src)
}

// Camel converts snake_case to lowerCamelCase, keeping leading underscores.
func Camel(s string) string {
	lead := len(s) - len(strings.TrimLeft(s, "_"))
	parts := strings.Split(s[lead:], "_")
	var sb strings.Builder
	sb.WriteString(s[:lead])
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			sb.WriteString(part)
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return sb.String()
}

// Pascal converts snake_case to PascalCase, used for events, enums and enum members.
func Pascal(s string) string {
	c := Camel(strings.TrimLeft(s, "_"))
	if c == "" {
		return c
	}
	return strings.ToUpper(c[:1]) + c[1:]
}
