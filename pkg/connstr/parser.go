package connstr

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// parserState is a state of the pair scanner.
type parserState int

const (
	stateNothingYet parserState = iota + 1
	stateKey
	stateKeyEqual
	stateKeyEnd
	stateUnquotedValue
	stateDoubleQuoteValue
	stateDoubleQuoteValueQuote
	stateSingleQuoteValue
	stateSingleQuoteValueQuote
	stateQuotedValueEnd
	stateNullTermination
)

// action tells the scan loop what to do with the current character.
type action int

const (
	actSkip       action = iota // consume, do not buffer
	actBuffer                   // consume and buffer
	actRedispatch               // feed the same character to the new state
	actExit                     // pair complete, stop before the character
)

// Parse parses a connection string into Options.
//
// Keys are lower-cased and resolved through synonyms. With a nil table keys
// are their own canonical form; with a non-nil table unknown keys fail with
// *KeywordError, whose Keyword is the case-folded key before synonym
// resolution ("Flavor" is reported as "flavor"). Grammar violations fail
// with *SyntaxError. The empty string parses to empty Options.
func Parse(connectionString string, synonyms Synonyms) (*Options, error) {
	opts := &Options{
		raw:     connectionString,
		entries: make(map[string]string),
	}
	if connectionString == "" {
		return opts, nil
	}

	p := &parser{
		input: []rune(connectionString),
		fold:  newFolder(),
	}
	for pos := 0; pos < len(p.input); {
		next, err := p.nextPair(pos)
		if err != nil {
			return nil, err
		}
		if p.key == "" {
			break
		}

		canonical, ok := synonyms.Resolve(p.key)
		if !ok || !isKeyNameValid(canonical) {
			return nil, &KeywordError{Keyword: p.key}
		}
		// last key-value pair wins
		opts.entries[canonical] = p.value
		opts.chain.add(canonical, p.value)
		pos = next
	}
	return opts, nil
}

// isKeyNameValid reports whether a canonical key is non-empty, does not
// start with ';' or whitespace and has no embedded NUL.
func isKeyNameValid(key string) bool {
	if key == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(key)
	if first == ';' || unicode.IsSpace(first) {
		return false
	}
	for _, r := range key {
		if r == 0 {
			return false
		}
	}
	return true
}

// parser holds the scratch state for one Parse call.
type parser struct {
	input []rune
	fold  cases.Caser

	buf   []rune
	state parserState
	start int // offset reported by syntax errors
	key   string
	value string
}

// nextPair scans one key/value pair starting at pos and returns the offset
// where the following pair starts. p.key is empty when no pair was found.
func (p *parser) nextPair(pos int) (int, error) {
	p.buf = p.buf[:0]
	p.state = stateNothingYet
	p.start = pos
	p.key = ""
	p.value = ""

	for ; pos < len(p.input); pos++ {
		c := p.input[pos]
		act, err := p.step(c, pos)
		for err == nil && act == actRedispatch {
			act, err = p.step(c, pos)
		}
		if err != nil {
			return 0, err
		}
		if act == actExit {
			break
		}
		if act == actBuffer {
			p.buf = append(p.buf, c)
		}
	}

	if err := p.finish(); err != nil {
		return 0, err
	}
	if pos < len(p.input) && p.input[pos] == ';' {
		pos++
	}
	return pos, nil
}

// step applies one transition of the state machine.
func (p *parser) step(c rune, pos int) (action, error) {
	switch p.state {
	case stateNothingYet:
		if c == ';' || unicode.IsSpace(c) {
			return actSkip, nil
		}
		if c == 0 {
			p.state = stateNullTermination
			return actSkip, nil
		}
		if unicode.IsControl(c) {
			return actSkip, p.syntaxError()
		}
		p.start = pos
		if c != '=' {
			p.state = stateKey
			return actBuffer, nil
		}
		p.state = stateKeyEqual
		return actSkip, nil

	case stateKey:
		if c == '=' {
			p.state = stateKeyEqual
			return actSkip, nil
		}
		if unicode.IsSpace(c) {
			return actBuffer, nil
		}
		if unicode.IsControl(c) {
			return actSkip, p.syntaxError()
		}
		return actBuffer, nil

	case stateKeyEqual:
		if c == '=' {
			// "==" is an escaped '=' inside the key
			p.state = stateKey
			return actBuffer, nil
		}
		p.key = p.keyName()
		if p.key == "" {
			return actSkip, p.syntaxError()
		}
		p.buf = p.buf[:0]
		p.state = stateKeyEnd
		return actRedispatch, nil

	case stateKeyEnd:
		if unicode.IsSpace(c) {
			return actSkip, nil
		}
		switch c {
		case '\'':
			p.state = stateSingleQuoteValue
			return actSkip, nil
		case '"':
			p.state = stateDoubleQuoteValue
			return actSkip, nil
		case ';', 0:
			return actExit, nil
		}
		if unicode.IsControl(c) {
			return actSkip, p.syntaxError()
		}
		p.state = stateUnquotedValue
		return actBuffer, nil

	case stateUnquotedValue:
		if unicode.IsSpace(c) {
			return actBuffer, nil
		}
		if unicode.IsControl(c) || c == ';' {
			return actExit, nil
		}
		return actBuffer, nil

	case stateDoubleQuoteValue:
		return p.quoted(c, '"', stateDoubleQuoteValueQuote)

	case stateDoubleQuoteValueQuote:
		return p.quoteSeen(c, '"', stateDoubleQuoteValue)

	case stateSingleQuoteValue:
		return p.quoted(c, '\'', stateSingleQuoteValueQuote)

	case stateSingleQuoteValueQuote:
		return p.quoteSeen(c, '\'', stateSingleQuoteValue)

	case stateQuotedValueEnd:
		if unicode.IsSpace(c) {
			return actSkip, nil
		}
		if c == ';' {
			return actExit, nil
		}
		if c == 0 {
			p.state = stateNullTermination
			return actSkip, nil
		}
		// unbalanced quote or garbage after the closing quote
		return actSkip, p.syntaxError()

	case stateNullTermination:
		if c == 0 || unicode.IsSpace(c) {
			return actSkip, nil
		}
		return actSkip, &SyntaxError{Offset: pos}
	}
	panic("connstr: invalid parser state")
}

// quoted handles a character inside a quoted value.
func (p *parser) quoted(c, quote rune, quoteState parserState) (action, error) {
	if c == quote {
		p.state = quoteState
		return actSkip, nil
	}
	if c == 0 {
		return actSkip, p.syntaxError()
	}
	return actBuffer, nil
}

// quoteSeen handles the character after a quote inside a quoted value: a
// second quote is an escaped literal, anything else closes the value.
func (p *parser) quoteSeen(c, quote rune, valueState parserState) (action, error) {
	if c == quote {
		p.state = valueState
		return actBuffer, nil
	}
	p.value = p.keyValue(false)
	p.state = stateQuotedValueEnd
	return actRedispatch, nil
}

// finish completes the pair according to the state the scan stopped in.
func (p *parser) finish() error {
	switch p.state {
	case stateKey, stateDoubleQuoteValue, stateSingleQuoteValue:
		// key without '=' or unterminated quote
		return p.syntaxError()

	case stateKeyEqual:
		// '=' at end of input
		p.key = p.keyName()
		if p.key == "" {
			return p.syntaxError()
		}

	case stateUnquotedValue:
		p.value = p.keyValue(true)
		last, _ := utf8.DecodeLastRuneInString(p.value)
		if last == '\'' || last == '"' {
			return p.syntaxError()
		}

	case stateDoubleQuoteValueQuote, stateSingleQuoteValueQuote, stateQuotedValueEnd:
		p.value = p.keyValue(false)
	}
	return nil
}

func (p *parser) syntaxError() error {
	return &SyntaxError{Offset: p.start}
}

// keyName returns the buffered key without trailing whitespace, lower-cased.
func (p *parser) keyName() string {
	end := len(p.buf)
	for end > 0 && unicode.IsSpace(p.buf[end-1]) {
		end--
	}
	return p.fold.String(string(p.buf[:end]))
}

// keyValue returns the buffered value, optionally trimmed of surrounding
// whitespace.
func (p *parser) keyValue(trim bool) string {
	begin, end := 0, len(p.buf)
	if trim {
		for begin < end && unicode.IsSpace(p.buf[begin]) {
			begin++
		}
		for end > begin && unicode.IsSpace(p.buf[end-1]) {
			end--
		}
	}
	return string(p.buf[begin:end])
}
