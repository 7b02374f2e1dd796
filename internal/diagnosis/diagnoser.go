package diagnosis

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ashureev/cadence/internal/codeinfo"
)

const defaultMemoSize = 256

// Diagnoser classifies runtime errors. It is safe for concurrent use.
type Diagnoser struct {
	isSample func(string) bool
	memo     *lru.Cache[string, Classification]
	log      *slog.Logger
}

// Option configures a Diagnoser.
type Option func(*Diagnoser)

// WithSampleLookup lets argument checks recognise sample constants.
func WithSampleLookup(fn func(string) bool) Option {
	return func(d *Diagnoser) {
		d.isSample = fn
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(d *Diagnoser) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMemoSize bounds the number of remembered diagnoses. Zero disables the memo.
func WithMemoSize(n int) Option {
	return func(d *Diagnoser) {
		d.memo = nil
		if n > 0 {
			d.memo, _ = lru.New[string, Classification](n)
		}
	}
}

// NewDiagnoser returns a Diagnoser.
func NewDiagnoser(opts ...Option) *Diagnoser {
	d := &Diagnoser{log: slog.Default()}
	d.memo, _ = lru.New[string, Classification](defaultMemoSize)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diagnose classifies err raised by text. Name errors are tried first, then
// the fitMedia call on the error line, then the first structural keyword
// line, then a whole-file brace count for syntax errors. The result depends
// only on its inputs, so repeated calls return the same classification.
func (d *Diagnoser) Diagnose(lang codeinfo.Language, err RuntimeError, text string) Classification {
	key := memoKey(lang, err, text)
	if d.memo != nil {
		if c, ok := d.memo.Get(key); ok {
			return c
		}
	}
	a := newAnalysis(lang, err, text, d.isSample)
	var c Classification
	if lang == codeinfo.JavaScript {
		c = a.diagnoseJavaScript()
	} else {
		c = a.diagnosePython()
	}
	d.log.Debug("diagnosed error", "language", lang.String(), "error", err.String(), "category", c.Category, "subtype", c.Subtype)
	if d.memo != nil {
		d.memo.Add(key, c)
	}
	return c
}

func memoKey(lang codeinfo.Language, err RuntimeError, text string) string {
	h := sha256.New()
	for _, part := range []string{lang.String(), err.Type, err.Message, strconv.Itoa(err.Line), text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// analysis holds one diagnosis run.
type analysis struct {
	lang      codeinfo.Language
	err       RuntimeError
	text      string
	lines     []string
	errIdx    int
	errorLine string
	src       *codeinfo.Source
	known     []string
	isSample  func(string) bool
}

func newAnalysis(lang codeinfo.Language, err RuntimeError, text string, isSample func(string) bool) *analysis {
	a := &analysis{
		lang:     lang,
		err:      err,
		text:     text,
		lines:    strings.Split(text, "\n"),
		errIdx:   err.Line - 1,
		known:    codeinfo.KnownNames(lang),
		isSample: isSample,
	}
	if a.errIdx >= 0 && a.errIdx < len(a.lines) {
		a.errorLine = a.lines[a.errIdx]
	}
	var opts []codeinfo.Option
	if isSample != nil {
		opts = append(opts, codeinfo.WithSampleLookup(isSample))
	}
	a.src = codeinfo.Scan(lang, text, opts...)
	return a
}

// checkName matches an unresolved name against the script's variables, then
// its functions, then the language keywords and API.
func (a *analysis) checkName(name string) Classification {
	for _, v := range a.src.Variables {
		if IsTypo(name, v.Name) {
			return classify("name", "typo: "+v.Name)
		}
	}
	for _, fn := range a.src.Functions {
		if IsTypo(name, fn.Name) {
			return classify("name", "typo: "+fn.Name)
		}
	}
	for _, known := range a.known {
		if IsTypo(name, known) {
			return classify("name", "typo: "+known)
		}
	}
	return classify("name", "unrecognized: "+name)
}

// braceFallback flags unbalanced curly braces for generic syntax errors.
func (a *analysis) braceFallback() Classification {
	if a.err.Type == "SyntaxError" && strings.Count(a.text, "{") != strings.Count(a.text, "}") {
		return classify("syntax", "mismatched curly braces")
	}
	return Classification{}
}
