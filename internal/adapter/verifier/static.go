package verifier

import (
	"context"
	"strings"

	"github.com/gabrieltemtsen/clenja/pkg/address"
)

// Static is a fixed allowlist, typically loaded from config.
type Static struct{ allowed map[string]struct{} }

func NewStatic(principals []string) (*Static, error) {
	s := &Static{allowed: make(map[string]struct{}, len(principals))}
	for _, p := range principals {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := address.Normalize(p)
		if err != nil {
			return nil, err
		}
		s.allowed[n] = struct{}{}
	}
	return s, nil
}

func (s *Static) IsVerified(_ context.Context, principal string) (bool, error) {
	n, err := address.Normalize(principal)
	if err != nil {
		return false, nil
	}
	_, ok := s.allowed[n]
	return ok, nil
}
