package jsonutil

import "strings"

const codeFence = "```"

// ExtractJSON pulls the first JSON array or object out of a model reply.
// Fenced blocks win over bare JSON embedded in prose.
func ExtractJSON(raw string) (string, bool) {
	out, _, ok := ExtractJSONWithOffset(raw)
	return out, ok
}

// ExtractJSONWithOffset is ExtractJSON plus the byte offset of the match in the trimmed input.
func ExtractJSONWithOffset(raw string) (string, int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", -1, false
	}
	if out, offset, ok := fromFence(raw); ok {
		return out, offset, true
	}
	return firstBalanced(raw)
}

func fromFence(raw string) (string, int, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", -1, false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", -1, false
	}
	block := rest[:end]
	offset := start + len(codeFence)
	// drop a language tag such as ```json
	if idx := strings.IndexAny(block, "\r\n"); idx != -1 {
		if first := strings.TrimSpace(block[:idx]); first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
			offset += idx + 1
		}
	}
	out, rel, ok := firstBalanced(block)
	if !ok {
		return "", -1, false
	}
	return out, offset + rel, true
}

// firstBalanced returns the bracket-balanced value starting at whichever of
// '[' or '{' occurs first.
func firstBalanced(raw string) (string, int, bool) {
	start := strings.IndexAny(raw, "[{")
	if start == -1 {
		return "", -1, false
	}
	open := raw[start]
	closer := byte(']')
	if open == '{' {
		closer = '}'
	}
	depth := 0
	inString, escape := false, false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return raw[start : i+1], start, true
			}
		}
	}
	return "", -1, false
}
