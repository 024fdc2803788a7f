package desensitize

const mask = "******"

var (
	PasswordRule     = MustNewFieldRule("password", "password", mask)
	TokenRule        = MustNewFieldRule("token", "token", mask)
	SecretRule       = MustNewFieldRule("secret", "secret", mask)
	AccessTokenRule  = MustNewFieldRule("access_token", "accessToken", mask)
	RefreshTokenRule = MustNewFieldRule("refresh_token", "refresh_token", mask)
	CSRFTokenRule    = MustNewFieldRule("csrf_token", "csrf_token", mask)

	// BearerRule masks credentials in Authorization header values that end up
	// in messages or error strings.
	BearerRule = MustNewContentRule("bearer", `(?i)(bearer\s+)[A-Za-z0-9\-_.~+/]+=*`, "${1}"+mask)

	// EmailRule (user@example.com -> u***r@e***.com)
	EmailRule = MustNewContentRule(
		"email",
		`\b([A-Za-z0-9])[A-Za-z0-9._%+-]*([A-Za-z0-9])@([A-Za-z0-9])[A-Za-z0-9.-]*\.([A-Za-z]{2,})\b`,
		"$1***$2@$3***.$4",
	)
)

// BuiltinRules returns the rules every service logger runs with.
func BuiltinRules() []Rule {
	return []Rule{
		PasswordRule,
		TokenRule,
		SecretRule,
		AccessTokenRule,
		RefreshTokenRule,
		CSRFTokenRule,
		BearerRule,
	}
}
