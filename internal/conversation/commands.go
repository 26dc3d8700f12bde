package conversation

import (
	"strconv"
	"strings"
	"unicode"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdRegister
	cmdReport
)

// command is a parsed top-level SMS command. Args keeps the raw text after
// the keyword so report payloads retain their commas.
type command struct {
	kind commandKind
	args []string
	rest string
}

// parseCommand recognizes "register" and "report" as the first word,
// case-insensitively. Anything else is cmdNone.
func parseCommand(text string) command {
	keyword, rest := splitFirstWord(text)
	switch strings.ToLower(keyword) {
	case "register":
		return command{kind: cmdRegister, args: strings.Fields(rest), rest: rest}
	case "report":
		return command{kind: cmdReport, args: strings.Fields(rest), rest: rest}
	}
	return command{kind: cmdNone, args: strings.Fields(text), rest: text}
}

func splitFirstWord(text string) (string, string) {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// stripReportKeyword drops a leading "report" word from an answer payload.
func stripReportKeyword(text string) string {
	keyword, rest := splitFirstWord(text)
	if strings.EqualFold(keyword, "report") {
		return rest
	}
	return strings.TrimSpace(text)
}

// parseSelection reads a leading integer such as "2" or "2." from text.
func parseSelection(text string) (int, bool) {
	word, _ := splitFirstWord(text)
	word = strings.TrimRight(word, ".,:;)")
	n, err := strconv.Atoi(word)
	if err != nil {
		return 0, false
	}
	return n, true
}

type confirmation int

const (
	confirmAmbiguous confirmation = iota
	confirmYes
	confirmNo
)

var (
	affirmatives = map[string]bool{"yes": true, "y": true}
	negatives    = map[string]bool{"no": true, "n": true}
)

// parseConfirmation looks at the leading word only: leading non-letters are
// skipped and the first run of letters is compared, case-insensitively,
// against a fixed vocabulary. "Yes!", "...yes please" and "Y" confirm;
// "maybe" or "yesterday" do not.
func parseConfirmation(text string) confirmation {
	start := strings.IndexFunc(text, unicode.IsLetter)
	if start < 0 {
		return confirmAmbiguous
	}
	word := text[start:]
	if end := strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }); end >= 0 {
		word = word[:end]
	}
	word = strings.ToLower(word)
	switch {
	case affirmatives[word]:
		return confirmYes
	case negatives[word]:
		return confirmNo
	}
	return confirmAmbiguous
}
