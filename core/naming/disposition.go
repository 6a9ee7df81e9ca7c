package naming

import "strings"

// ContentDisposition builds an attachment header value carrying the
// filename in both the legacy parameter and the UTF-8-aware RFC 5987
// form, percent-encoded for header transport.
func ContentDisposition(filename string) string {
	escaped := percentEncode(filename)
	var b strings.Builder
	b.WriteString(`attachment; filename="`)
	b.WriteString(escaped)
	b.WriteString(`"; filename*=UTF-8''`)
	b.WriteString(escaped)
	return b.String()
}

// percentEncode escapes everything outside the RFC 5987 attr-char set.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '&', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
