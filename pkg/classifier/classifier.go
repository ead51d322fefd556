// Package classifier decides whether a command string matches one of a
// device's structured-parse signatures or must run as raw text.
package classifier

import (
	"strings"
)

// Kind is the classification outcome for a command.
type Kind string

const (
	KindStructured Kind = "structured"
	KindRaw        Kind = "raw"
	KindRejected   Kind = "rejected"
)

// Classification is immutable once produced.
type Classification struct {
	Kind      Kind
	Command   string
	Signature string
	Bindings  map[string]string
	Reason    string
}

// Policy carries the device context the classifier enforces.
type Policy struct {
	// AllowRedirection permits shell metacharacters (| > <). When
	// false, commands containing them are rejected outright.
	AllowRedirection bool
}

var forbiddenMetachars = []string{"|", ">", "<"}

// Classify matches a raw command against the signature list in
// declaration order, first match wins. Matching is case-sensitive and
// whitespace-normalized; {placeholder} tokens bind exactly one token
// each. The result is deterministic for identical inputs.
func Classify(command string, signatures []string, policy Policy) Classification {
	normalized := strings.Join(strings.Fields(command), " ")

	if !policy.AllowRedirection {
		for _, meta := range forbiddenMetachars {
			if strings.Contains(normalized, meta) {
				return Classification{
					Kind:    KindRejected,
					Command: normalized,
					Reason:  "command contains forbidden shell metacharacter '" + meta + "'",
				}
			}
		}
	}

	cmdTokens := strings.Fields(normalized)

	for _, sig := range signatures {
		bindings, ok := matchSignature(cmdTokens, strings.Fields(sig))
		if ok {
			return Classification{
				Kind:      KindStructured,
				Command:   normalized,
				Signature: sig,
				Bindings:  bindings,
			}
		}
	}

	return Classification{Kind: KindRaw, Command: normalized}
}

// matchSignature compares command tokens to signature tokens. Literal
// tokens must match exactly; {name} tokens bind the command token at
// that position.
func matchSignature(cmdTokens, sigTokens []string) (map[string]string, bool) {
	if len(cmdTokens) != len(sigTokens) {
		return nil, false
	}

	var bindings map[string]string
	for i, sigTok := range sigTokens {
		if name, ok := placeholderName(sigTok); ok {
			if bindings == nil {
				bindings = make(map[string]string)
			}
			bindings[name] = cmdTokens[i]
			continue
		}
		if sigTok != cmdTokens[i] {
			return nil, false
		}
	}

	return bindings, true
}

func placeholderName(token string) (string, bool) {
	if len(token) > 2 && strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
		return token[1 : len(token)-1], true
	}
	return "", false
}
