package provider

import "github.com/holdfast/auth-service/internal/domain"

func str(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// Kakao OIDC ID tokens carry the profile nickname and picture directly.
func kakaoClaims(c map[string]any) domain.IdentityClaims {
	return domain.IdentityClaims{
		Provider:    string(Kakao),
		Subject:     str(c, "sub"),
		Email:       str(c, "email"),
		DisplayName: str(c, "nickname"),
		AvatarURL:   str(c, "picture"),
	}
}

func googleClaims(c map[string]any) domain.IdentityClaims {
	name := str(c, "name")
	if name == "" {
		name = str(c, "given_name")
	}
	return domain.IdentityClaims{
		Provider:    string(Google),
		Subject:     str(c, "sub"),
		Email:       str(c, "email"),
		DisplayName: name,
		AvatarURL:   str(c, "picture"),
	}
}

// Apple never puts the user's name in the ID token; it is only sent once to the client.
func appleClaims(c map[string]any) domain.IdentityClaims {
	return domain.IdentityClaims{
		Provider: string(Apple),
		Subject:  str(c, "sub"),
		Email:    str(c, "email"),
	}
}
