// Package pattern matches object keys against a source expression and
// derives the target key each match concatenates into.
package pattern

import (
	"regexp"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
)

// Pattern is a compiled source expression plus the target template.
// It holds no mutable state and is safe for concurrent use.
type Pattern struct {
	re       *regexp.Regexp
	template string
}

// Compile parses expr as a regular expression (RE2 syntax) and pairs it
// with template. The template may reference capture groups as $1 or ${name}.
func Compile(expr, template string) (*Pattern, error) {
	if expr == "" {
		return nil, errors.NewConfigurationError("compilePattern", errors.ErrMissingArgument).
			WithMessage("source pattern is empty")
	}
	if template == "" {
		return nil, errors.NewConfigurationError("compilePattern", errors.ErrMissingArgument).
			WithMessage("target template is empty")
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &errors.Error{
			Op:      "compilePattern",
			Kind:    errors.KindConfiguration,
			Message: err.Error(),
			Err:     errors.ErrInvalidPattern,
		}
	}

	return &Pattern{re: re, template: template}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr, template string) *Pattern {
	p, err := Compile(expr, template)
	if err != nil {
		panic(err)
	}
	return p
}

// Resolve returns the target key for key. ok is false when key does not
// match. The template is applied to every match in the key and the
// unmatched text is kept, so a key may resolve to itself.
func (p *Pattern) Resolve(key string) (target string, ok bool) {
	if !p.re.MatchString(key) {
		return "", false
	}
	return p.re.ReplaceAllString(key, p.template), true
}

// String returns the source expression.
func (p *Pattern) String() string {
	return p.re.String()
}

// Template returns the target template.
func (p *Pattern) Template() string {
	return p.template
}
