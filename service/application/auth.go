package application

import (
	"context"
	"fmt"
	"strings"

	"linkwithmentor/service/domain"
)

// ExtractBearer lê "Bearer <token>" do metadado de autorização.
// O esquema não diferencia maiúsculas; token vazio é inválido.
func ExtractBearer(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", domain.NewError(domain.KindUnauthenticated, "missing authorization")
	}
	scheme, token, ok := strings.Cut(authorization, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", domain.NewError(domain.KindUnauthenticated, "malformed authorization")
	}
	return token, nil
}

// CheckRole: admin satisfaz qualquer papel; fora isso, igualdade exata.
func CheckRole(p domain.Principal, required string) bool {
	return p.Role == domain.RoleAdmin || p.Role == required
}

// StaticVerifier mapeia tokens configurados para principals.
type StaticVerifier struct {
	tokens map[string]domain.Principal
}

func NewStaticVerifier(tokens map[string]domain.Principal) *StaticVerifier {
	cp := make(map[string]domain.Principal, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticVerifier{tokens: cp}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	p, ok := v.tokens[token]
	if !ok {
		return domain.Principal{}, domain.NewError(domain.KindUnauthenticated, "invalid token")
	}
	return p, nil
}

func (v *StaticVerifier) Len() int { return len(v.tokens) }

// ParseTokens lê "token:subject:role,token2:subject2:role2".
// Papel ausente vira "user"; subject ausente vira o próprio token.
func ParseTokens(raw string) (map[string]domain.Principal, error) {
	out := make(map[string]domain.Principal)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		token := strings.TrimSpace(parts[0])
		if token == "" {
			return nil, fmt.Errorf("invalid token entry %q", entry)
		}
		p := domain.Principal{Subject: token, Role: domain.RoleUser}
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			p.Subject = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			role := strings.TrimSpace(parts[2])
			switch role {
			case "":
			case domain.RoleUser, domain.RoleMentor, domain.RoleAdmin:
				p.Role = role
			default:
				return nil, fmt.Errorf("invalid role %q for token entry %q", role, entry)
			}
		}
		out[token] = p
	}
	return out, nil
}

// PermissiveVerifier aceita qualquer token não vazio como papel "user".
// Só para desenvolvimento.
type PermissiveVerifier struct{}

func (PermissiveVerifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.NewError(domain.KindUnauthenticated, "invalid token")
	}
	return domain.Principal{Subject: token, Role: domain.RoleUser}, nil
}
