package config

import (
	"net/url"
	"strings"
)

const redacted = "***"

// RedactURL hides the password in a connection string before it is printed.
// Both the userinfo password and a "password" query parameter are replaced
// with "***". Keyword/value DSNs ("host=db password=secret") are handled too.
// Strings that cannot be parsed are returned unchanged.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		return redactKeywordDSN(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	out := raw

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			out = redactUserinfo(out)
		}
	}

	if u.Query().Has("password") {
		out = redactQueryPassword(out)
	}

	return out
}

// redactUserinfo replaces everything between "user:" and "@".
func redactUserinfo(raw string) string {
	afterScheme := strings.Index(raw, "://") + len("://")

	atIdx := strings.Index(raw[afterScheme:], "@")
	if atIdx < 0 {
		return raw
	}

	userinfo := raw[afterScheme : afterScheme+atIdx]

	user, _, found := strings.Cut(userinfo, ":")
	if !found {
		return raw
	}

	return raw[:afterScheme] + user + ":" + redacted + raw[afterScheme+atIdx:]
}

func redactQueryPassword(raw string) string {
	base, query, _ := strings.Cut(raw, "?")
	query, fragment, hasFragment := strings.Cut(query, "#")

	params := strings.Split(query, "&")
	for i, param := range params {
		if key, _, _ := strings.Cut(param, "="); key == "password" {
			params[i] = "password=" + redacted
		}
	}

	out := base + "?" + strings.Join(params, "&")
	if hasFragment {
		out += "#" + fragment
	}

	return out
}

func redactKeywordDSN(raw string) string {
	fields := strings.Fields(raw)
	changed := false

	for i, field := range fields {
		if strings.HasPrefix(field, "password=") {
			fields[i] = "password=" + redacted
			changed = true
		}
	}

	if !changed {
		return raw
	}

	return strings.Join(fields, " ")
}
