package page

import (
	"strings"

	"golang.org/x/net/html"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// fullPageTags are tags that indicate the model returned a whole
// document instead of a fragment.
var fullPageTags = []string{"html", "head", "body"}

// voidElements never take a closing tag.
var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {},
	"hr": {}, "img": {}, "input": {}, "link": {}, "meta": {},
	"param": {}, "source": {}, "track": {}, "wbr": {},
}

// Validator applies the structural safety rules to candidate snippets
// before they are allowed anywhere near the published page.
type Validator struct {
	timestampID string
	forbidden   map[string]struct{}
}

// NewValidator builds a validator. timestampID is the id attribute of
// the element whose text the injector rewrites; forbiddenTags is the
// configured deny set (matched case-insensitively).
func NewValidator(timestampID string, forbiddenTags []string) *Validator {
	forbidden := make(map[string]struct{}, len(forbiddenTags))
	for _, tag := range forbiddenTags {
		forbidden[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	return &Validator{timestampID: timestampID, forbidden: forbidden}
}

// Validate decides whether candidate is safe to publish. It returns nil
// on accept or a *errors.Error whose code names the rejection kind.
// Checks run in order and short-circuit on the first failure; the
// routine never panics.
func (v *Validator) Validate(candidate string) error {
	if err := v.checkFence(candidate); err != nil {
		return err
	}
	if err := v.checkFullPage(candidate); err != nil {
		return err
	}
	if err := v.checkForbiddenTags(candidate); err != nil {
		return err
	}
	if err := v.checkTimestampMarker(candidate); err != nil {
		return err
	}
	return v.checkWellFormed(candidate)
}

// checkFence rejects markdown code-fence markers. Models that wrap
// their answer in ```html fences fail here before anything is parsed.
func (v *Validator) checkFence(candidate string) error {
	if strings.Contains(candidate, "```") {
		return pterrors.New(pterrors.ErrCodeValidationFence, "candidate contains a markdown code fence")
	}
	for _, line := range strings.Split(candidate, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "~~~") {
			return pterrors.New(pterrors.ErrCodeValidationFence, "candidate contains a markdown code fence")
		}
	}
	return nil
}

// checkFullPage rejects document-level markup: doctype declarations and
// html/head/body tags. Boundary-checked so <header> does not trip the
// <head> rule.
func (v *Validator) checkFullPage(candidate string) error {
	lower := strings.ToLower(candidate)
	if strings.Contains(lower, "<!doctype") {
		return pterrors.New(pterrors.ErrCodeValidationFullPage, "candidate contains a doctype declaration")
	}
	for _, tag := range fullPageTags {
		if containsTag(lower, tag) {
			return pterrors.New(pterrors.ErrCodeValidationFullPage, "candidate contains a full-document tag").
				WithContext("tag", tag)
		}
	}
	return nil
}

// containsTag reports whether lower contains an open or close tag with
// exactly the given name. lower must already be lowercased.
func containsTag(lower, name string) bool {
	for _, prefix := range []string{"<" + name, "</" + name} {
		from := 0
		for {
			idx := strings.Index(lower[from:], prefix)
			if idx < 0 {
				break
			}
			end := from + idx + len(prefix)
			if end >= len(lower) {
				return true
			}
			switch lower[end] {
			case ' ', '\t', '\n', '\r', '>', '/':
				return true
			}
			from = end
		}
	}
	return false
}

// checkForbiddenTags tokenizes the candidate and rejects on the first
// tag found in the deny set. The raw tokenizer catches forbidden tags
// even inside otherwise malformed markup.
func (v *Validator) checkForbiddenTags(candidate string) error {
	z := html.NewTokenizer(strings.NewReader(candidate))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return nil
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if _, bad := v.forbidden[string(name)]; bad {
				return pterrors.New(pterrors.ErrCodeValidationForbiddenTag, "candidate contains a forbidden tag").
					WithContext("tag", string(name))
			}
		}
	}
}

// checkTimestampMarker counts elements carrying the timestamp id; the
// count must be exactly one so the injector has an unambiguous target.
// Only start tags count: a self-closing target has no text span for
// the injector to rewrite, so it must reject here rather than surface
// later as a fatal injection error.
func (v *Validator) checkTimestampMarker(candidate string) error {
	count := 0
	z := html.NewTokenizer(strings.NewReader(candidate))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		if _, hasAttr := z.TagName(); !hasAttr {
			continue
		}
		if tokenHasID(z, v.timestampID) {
			count++
		}
	}
	if count != 1 {
		return pterrors.New(pterrors.ErrCodeValidationMarkerCount, "candidate must contain exactly one timestamp element").
			WithContext("id", v.timestampID).
			WithContext("count", count)
	}
	return nil
}

// tokenHasID reports whether the current tag token carries id=want.
// Call TagName first; this consumes the token's attributes.
func tokenHasID(z *html.Tokenizer, want string) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "id" && string(val) == want {
			return true
		}
		if !more {
			return false
		}
	}
}

// checkWellFormed verifies that every opened non-void tag is closed and
// properly nested.
func (v *Validator) checkWellFormed(candidate string) error {
	var stack []string
	z := html.NewTokenizer(strings.NewReader(candidate))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if len(stack) > 0 {
				return pterrors.New(pterrors.ErrCodeValidationMalformed, "candidate has unclosed tags").
					WithContext("open", strings.Join(stack, ", "))
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if _, void := voidElements[string(name)]; !void {
				stack = append(stack, string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if len(stack) == 0 || stack[len(stack)-1] != string(name) {
				return pterrors.New(pterrors.ErrCodeValidationMalformed, "candidate has mismatched closing tag").
					WithContext("tag", string(name))
			}
			stack = stack[:len(stack)-1]
		}
	}
}
