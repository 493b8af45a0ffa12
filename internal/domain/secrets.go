// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactString replaces a string with asterisks of the same length
func RedactString(s string) string {
	if len(s) == 0 {
		return ""
	}

	return strings.Repeat("*", len(s))
}

// RedactUserList keeps the user names of a "user:pass,user2:pass2" list and
// redacts every password.
func RedactUserList(users string) string {
	if strings.TrimSpace(users) == "" {
		return ""
	}

	entries := strings.Split(users, ",")
	redacted := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, pass, ok := strings.Cut(entry, ":")
		if !ok {
			redacted = append(redacted, RedactString(entry))
			continue
		}
		redacted = append(redacted, name+":"+RedactString(pass))
	}
	return strings.Join(redacted, ",")
}
