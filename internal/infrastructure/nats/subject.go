package nats

import (
	"fmt"
	"strings"
	"unicode"
)

// SubjectFromTopic maps a slash-separated topic onto a NATS subject.
// Every "/" becomes a token separator; the resulting subject must not
// contain empty tokens, wildcards ("*", ">") or whitespace.
func SubjectFromTopic(topic string) (string, error) {
	subject := strings.ReplaceAll(topic, "/", ".")
	if err := ValidateSubject(subject); err != nil {
		return "", err
	}
	return subject, nil
}

// ValidateSubject checks that subject is publishable.
func ValidateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: subject cannot be empty", ErrInvalidSubject)
	}
	if strings.IndexFunc(subject, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: subject contains whitespace", ErrInvalidSubject)
	}
	for _, token := range strings.Split(subject, ".") {
		switch {
		case token == "":
			return fmt.Errorf("%w: subject %q has an empty token", ErrInvalidSubject, subject)
		case strings.ContainsAny(token, "*>"):
			return fmt.Errorf("%w: wildcards are not allowed in %q", ErrInvalidSubject, subject)
		}
	}
	return nil
}
