package telegram

import "strings"

const messageLimit = 4096

// SplitMessage делит ответ на части под лимит сообщения Telegram.
func SplitMessage(text string) []string {
	return SplitText(text, messageLimit)
}

// SplitText делит текст на куски не длиннее limit символов.
// Разрез ставится по последнему переводу строки в окне, иначе ровно по лимиту.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	push := func(chunk []rune) {
		if s := strings.Trim(string(chunk), "\n"); s != "" {
			parts = append(parts, s)
		}
	}
	for len(runes) > 0 {
		if len(runes) <= limit {
			push(runes)
			break
		}
		cut := lastNewline(runes[:limit])
		if cut <= 0 {
			cut = limit
		}
		push(runes[:cut])
		runes = trimLeadingNewlines(runes[cut:])
	}
	if len(parts) == 0 {
		return []string{text}
	}
	return parts
}

// lastNewline возвращает позицию сразу после последнего \n или -1.
func lastNewline(window []rune) int {
	for i := len(window); i > 0; i-- {
		if window[i-1] == '\n' {
			return i
		}
	}
	return -1
}

func trimLeadingNewlines(r []rune) []rune {
	for len(r) > 0 && r[0] == '\n' {
		r = r[1:]
	}
	return r
}
